package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// CollectionLogStore reads recent collection logs.
type CollectionLogStore interface {
	List(ctx context.Context, status string, limit int) ([]*domain.CollectionLog, error)
}

// IngestionHandler serves collection log queries.
type IngestionHandler struct {
	logs CollectionLogStore
}

// NewIngestionHandler creates an ingestion handler.
func NewIngestionHandler(logs CollectionLogStore) *IngestionHandler {
	return &IngestionHandler{logs: logs}
}

// ListLogs handles GET /api/ingestion/logs.
func (h *IngestionHandler) ListLogs(c *gin.Context) {
	status := c.Query("status")
	limit := intQuery(c, "limit", defaultLimit)

	logs, err := h.logs.List(c.Request.Context(), status, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, "failed to list collection logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}
