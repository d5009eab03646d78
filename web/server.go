package web

import (
	"context"
	"net/http"

	"kbreply/agent"
	"kbreply/config"
	"kbreply/web/handlers"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
	config *config.Config
}

func NewServer(replyAgent *agent.ReplyAgent, resolve handlers.PersonaResolver, ingestHandler *handlers.IngestHandler, logger *zap.Logger, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		router: router,
		logger: logger,
		config: cfg,
	}

	replyHandler := handlers.NewReplyHandler(replyAgent, resolve, logger)
	router.POST("/api/reply", replyHandler.SendReply)
	router.POST("/api/quiz", replyHandler.GenerateQuiz)
	if ingestHandler != nil {
		router.POST("/api/ingest", ingestHandler.IngestDocument)
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return server
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	return srv.Shutdown(context.Background())
}
