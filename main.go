package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kbreply/agent"
	"kbreply/blueprint"
	"kbreply/config"
	"kbreply/database"
	"kbreply/ingest"
	"kbreply/knowledge"
	"kbreply/llmclient"
	"kbreply/prompts"
	"kbreply/qualitygate"
	"kbreply/web"
	"kbreply/web/handlers"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	store, err := database.NewPostgresStore(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	client := llmclient.New(cfg, logger)
	retriever := knowledge.NewRetriever(client, store, logger)

	profiles, err := blueprint.LoadProfiles(cfg.ProfilePath)
	if err != nil {
		logger.Warn("No blueprint profiles loaded, rotation disabled", zap.Error(err))
		profiles = map[string]*blueprint.Profile{}
	}

	historyStore, err := blueprint.NewHistoryStore(cfg.MaxTrackedThreads)
	if err != nil {
		logger.Fatal("Failed to create blueprint history store", zap.Error(err))
	}
	selector := blueprint.NewSelector(historyStore, logger)

	semCache, err := qualitygate.NewSemanticCache(cfg.MaxTrackedThreads)
	if err != nil {
		logger.Fatal("Failed to create semantic cache", zap.Error(err))
	}
	gate := qualitygate.New(client, semCache, logger)

	replyAgent := agent.New(retriever, selector, gate, client, logger)

	kbs, err := store.ListKnowledgeBases(ctx)
	if err != nil {
		logger.Fatal("Failed to list knowledge bases", zap.Error(err))
	}
	logger.Info("Loaded knowledge bases", zap.Int("count", len(kbs)))

	resolve := handlers.PersonaResolver(func(profileID string) (*agent.Persona, error) {
		persona := &agent.Persona{
			Name:               "Knowledge Tutor",
			KBs:                kbs,
			Retrieval:          knowledge.RetrievalConfig{MinSimilarityThreshold: 1.0, MaxChunks: 3},
			HistoryTokenBudget: cfg.HistoryTokenBudget,
			Gate: qualitygate.Config{
				SemanticCheckEnabled:  true,
				EmbeddingProvider:     cfg.DefaultProvider,
				CorrectiveInstruction: prompts.SemanticCorrective(),
			},
		}
		if profileID == "" {
			return persona, nil
		}
		profile, ok := profiles[profileID]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", profileID)
		}
		persona.Profile = profile
		return persona, nil
	})

	ingester := ingest.NewIngester(client, store, logger)
	ingestHandler := handlers.NewIngestHandler(ingester, ingest.Options{
		ChunkChars:   cfg.IngestChunkChars,
		OverlapChars: cfg.IngestOverlapChars,
	}, logger)

	webServer := web.NewServer(replyAgent, resolve, ingestHandler, logger, cfg)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := fmt.Sprintf(":%d", cfg.WebPort)
	if err := webServer.Start(ctx, addr); err != nil {
		logger.Error("Web server shutdown error", zap.Error(err))
	}
}
