package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/collector"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// maxSearchLimit caps symbol search result counts.
const maxSearchLimit = 100

// CollectorsHandler serves collector metadata, options, symbol search
// and parameter validation.
type CollectorsHandler struct {
	registry *collector.Registry
}

// NewCollectorsHandler creates a collectors handler.
func NewCollectorsHandler(registry *collector.Registry) *CollectorsHandler {
	return &CollectorsHandler{registry: registry}
}

// Metadata handles GET /api/collectors/metadata.
func (h *CollectorsHandler) Metadata(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"collectors": h.registry.Metadata()})
}

// Options handles GET /api/collectors/:asset_type/options.
func (h *CollectorsHandler) Options(c *gin.Context) {
	coll, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": coll.Options()})
}

// Search handles GET /api/collectors/:asset_type/search.
func (h *CollectorsHandler) Search(c *gin.Context) {
	coll, ok := h.lookup(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		respondError(c, http.StatusBadRequest, CodeValidation, "query parameter q is required")
		return
	}
	limit := intQuery(c, "limit", defaultLimit)
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := coll.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.respondCollectorError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// Validate handles POST /api/collectors/validate.
func (h *CollectorsHandler) Validate(c *gin.Context) {
	var req ValidateParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, CodeValidation, "invalid request body: "+err.Error())
		return
	}

	assetType := domain.AssetType(req.AssetType)
	coll, found := h.registry.Get(assetType)
	if !found {
		respondError(c, http.StatusBadRequest, CodeValidation, "unknown asset_type: "+req.AssetType)
		return
	}

	if err := coll.ValidateParams(req.Symbol, req.Kwargs); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *CollectorsHandler) lookup(c *gin.Context) (collector.Collector, bool) {
	assetType := domain.AssetType(c.Param("asset_type"))
	coll, found := h.registry.Get(assetType)
	if !found {
		respondError(c, http.StatusBadRequest, CodeValidation, "unknown asset_type: "+string(assetType))
		return nil, false
	}
	return coll, true
}

// respondCollectorError maps classified collector errors: upstream
// failures are the collector's fault (502), bad input the caller's.
func (h *CollectorsHandler) respondCollectorError(c *gin.Context, err error) {
	var ingErr *domain.IngestError
	if errors.As(err, &ingErr) {
		switch ingErr.Category {
		case domain.ErrorCategoryValidation:
			respondError(c, http.StatusBadRequest, CodeValidation, ingErr.Message)
			return
		case domain.ErrorCategoryAPI, domain.ErrorCategoryRateLimit:
			respondError(c, http.StatusBadGateway, CodeUpstream, ingErr.Message)
			return
		}
	}
	respondError(c, http.StatusInternalServerError, CodeInternal, "collector error")
}
