package handlers

import (
	"net/http"

	"kbreply/agent"
	"kbreply/llmclient"
	"kbreply/web/format"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PersonaResolver builds the persona for a request. An empty profile id
// yields the default persona without blueprint rotation.
type PersonaResolver func(profileID string) (*agent.Persona, error)

type ReplyHandler struct {
	agent   *agent.ReplyAgent
	resolve PersonaResolver
	logger  *zap.Logger
}

func NewReplyHandler(a *agent.ReplyAgent, resolve PersonaResolver, logger *zap.Logger) *ReplyHandler {
	return &ReplyHandler{agent: a, resolve: resolve, logger: logger}
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type replyRequest struct {
	ThreadID  string           `json:"thread_id" binding:"required"`
	Message   string           `json:"message" binding:"required"`
	History   []historyMessage `json:"history"`
	ProfileID string           `json:"profile_id"`
	HTML      bool             `json:"html"`
}

// SendReply handles POST /api/reply.
func (h *ReplyHandler) SendReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	persona, err := h.resolve(req.ProfileID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history := make([]llmclient.Message, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, llmclient.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := h.agent.Reply(c.Request.Context(), persona, agent.Request{
		ThreadID: req.ThreadID,
		Message:  req.Message,
		History:  history,
	})
	if err != nil {
		h.logger.Error("Reply generation failed",
			zap.String("thread_id", req.ThreadID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "reply generation failed"})
		return
	}

	resp := gin.H{"reply": reply}
	if req.HTML {
		resp["html"] = format.ToHTML(reply)
	}
	c.JSON(http.StatusOK, resp)
}

type quizRequest struct {
	Count     int    `json:"count"`
	ProfileID string `json:"profile_id"`
}

// GenerateQuiz handles POST /api/quiz.
func (h *ReplyHandler) GenerateQuiz(c *gin.Context) {
	var req quizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	persona, err := h.resolve(req.ProfileID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	questions, err := h.agent.GenerateQuiz(c.Request.Context(), persona, req.Count)
	if err != nil {
		h.logger.Error("Quiz generation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "quiz generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}
