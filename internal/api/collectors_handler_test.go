package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/collector"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

type stubCollector struct {
	meta        collector.Metadata
	options     []collector.Option
	results     []collector.SearchResult
	searchErr   error
	validateErr error
}

func (s *stubCollector) Collect(context.Context, string, time.Time, time.Time, map[string]any) ([]domain.DataPoint, error) {
	return nil, nil
}

func (s *stubCollector) Search(context.Context, string, int) ([]collector.SearchResult, error) {
	return s.results, s.searchErr
}

func (s *stubCollector) ValidateParams(string, map[string]any) error { return s.validateErr }
func (s *stubCollector) Options() []collector.Option                 { return s.options }
func (s *stubCollector) Metadata() collector.Metadata                { return s.meta }

func newCollectorsRouter(stub *stubCollector) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	registry := collector.NewRegistryWith(map[domain.AssetType]collector.Collector{
		domain.AssetTypeStock: stub,
	})
	handler := NewCollectorsHandler(registry)

	group := router.Group("/api/collectors")
	group.GET("/metadata", handler.Metadata)
	group.GET("/:asset_type/options", handler.Options)
	group.GET("/:asset_type/search", handler.Search)
	group.POST("/validate", handler.Validate)

	return router
}

func TestCollectorsMetadata(t *testing.T) {
	stub := &stubCollector{meta: collector.Metadata{Name: "stooq", AssetTypes: []string{"stock"}}}
	router := newCollectorsRouter(stub)

	w := doJSON(t, router, http.MethodGet, "/api/collectors/metadata", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Collectors []collector.Metadata `json:"collectors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Collectors, 1)
	assert.Equal(t, "stooq", body.Collectors[0].Name)
}

func TestCollectorsOptionsUnknownAssetType(t *testing.T) {
	router := newCollectorsRouter(&stubCollector{})

	w := doJSON(t, router, http.MethodGet, "/api/collectors/real_estate/options", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, errorCode(t, w))
}

func TestCollectorsSearch(t *testing.T) {
	stub := &stubCollector{results: []collector.SearchResult{{Symbol: "AAPL.US", Description: "Apple Inc"}}}
	router := newCollectorsRouter(stub)

	w := doJSON(t, router, http.MethodGet, "/api/collectors/stock/search?q=apple", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results []collector.SearchResult `json:"results"`
		Count   int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestCollectorsSearchMissingQuery(t *testing.T) {
	router := newCollectorsRouter(&stubCollector{})

	w := doJSON(t, router, http.MethodGet, "/api/collectors/stock/search", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCollectorsSearchUpstreamFailure(t *testing.T) {
	stub := &stubCollector{
		searchErr: domain.NewIngestError(domain.ErrorCategoryAPI, "upstream returned 500", nil),
	}
	router := newCollectorsRouter(stub)

	w := doJSON(t, router, http.MethodGet, "/api/collectors/stock/search?q=apple", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, CodeUpstream, errorCode(t, w))
}

func TestCollectorsValidate(t *testing.T) {
	router := newCollectorsRouter(&stubCollector{})

	w := doJSON(t, router, http.MethodPost, "/api/collectors/validate", map[string]any{
		"asset_type": "stock",
		"symbol":     "AAPL.US",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["valid"])
}

func TestCollectorsValidateRejectsBadParams(t *testing.T) {
	stub := &stubCollector{validateErr: errors.New("api key is required")}
	router := newCollectorsRouter(stub)

	w := doJSON(t, router, http.MethodPost, "/api/collectors/validate", map[string]any{
		"asset_type": "stock",
		"symbol":     "AAPL.US",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "api key is required", body["reason"])
}
