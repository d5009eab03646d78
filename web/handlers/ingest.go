package handlers

import (
	"net/http"

	"kbreply/ingest"
	"kbreply/knowledge"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IngestHandler loads server-local documents into a knowledge base.
type IngestHandler struct {
	ingester *ingest.Ingester
	opts     ingest.Options
	logger   *zap.Logger
}

func NewIngestHandler(ingester *ingest.Ingester, opts ingest.Options, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingester: ingester, opts: opts, logger: logger}
}

type ingestRequest struct {
	KBID     string `json:"kb_id" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Provider string `json:"provider" binding:"required"`
	Role     string `json:"role"`
	Domain   string `json:"domain"`
	Path     string `json:"path" binding:"required"`
}

// IngestDocument handles POST /api/ingest.
func (h *IngestHandler) IngestDocument(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kb := knowledge.KBDescriptor{
		ID:       req.KBID,
		Title:    req.Title,
		Provider: req.Provider,
		Role:     req.Role,
		Domain:   req.Domain,
	}
	stored, err := h.ingester.IngestFile(c.Request.Context(), kb, req.Path, h.opts)
	if err != nil {
		h.logger.Error("Document ingestion failed",
			zap.String("kb_id", req.KBID),
			zap.String("path", req.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "chunks_stored": stored})
		return
	}
	c.JSON(http.StatusOK, gin.H{"kb_id": req.KBID, "chunks_stored": stored})
}
