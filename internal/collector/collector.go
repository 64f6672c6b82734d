// Package collector implements the upstream data collectors, one per
// asset type, behind a common interface.
package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/config"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

// maxResponseBytes bounds upstream response bodies.
const maxResponseBytes = 16 << 20

// Metadata describes a collector for the metadata endpoint.
type Metadata struct {
	Name         string   `json:"name"`
	AssetTypes   []string `json:"asset_types"`
	Description  string   `json:"description"`
	RequiresAuth bool     `json:"requires_auth"`
}

// Option describes one accepted collector_kwargs key.
type Option struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// SearchResult is one symbol match from a collector's search.
type SearchResult struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description,omitempty"`
}

// Collector fetches a time window of observations for one symbol.
type Collector interface {
	// Collect returns observations in [start, end]. Errors are
	// classified IngestErrors.
	Collect(ctx context.Context, symbol string, start, end time.Time, kwargs map[string]any) ([]domain.DataPoint, error)

	// Search finds symbols matching a free-text query.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// ValidateParams checks symbol and kwargs without network I/O.
	ValidateParams(symbol string, kwargs map[string]any) error

	// Options lists the accepted collector_kwargs keys.
	Options() []Option

	// Metadata describes the collector.
	Metadata() Metadata
}

// Registry dispatches asset types to collectors.
type Registry struct {
	collectors map[domain.AssetType]Collector
}

// NewRegistry wires the production collectors from configuration.
func NewRegistry(cfg config.CollectorConfig, log logger.Interface) *Registry {
	client := &http.Client{Timeout: cfg.Timeout}

	stooq := NewStooq(client, log)
	fred := NewFRED(client, cfg.FredAPIKey, log)

	return &Registry{collectors: map[domain.AssetType]Collector{
		domain.AssetTypeStock:             stooq,
		domain.AssetTypeCommodity:         stooq,
		domain.AssetTypeForex:             NewFrankfurter(client, log),
		domain.AssetTypeCrypto:            NewCoinbase(client, log),
		domain.AssetTypeBond:              fred,
		domain.AssetTypeEconomicIndicator: fred,
	}}
}

// NewRegistryWith builds a registry from an explicit mapping, used by
// tests to install fakes.
func NewRegistryWith(collectors map[domain.AssetType]Collector) *Registry {
	return &Registry{collectors: collectors}
}

// Get returns the collector for an asset type.
func (r *Registry) Get(assetType domain.AssetType) (Collector, bool) {
	c, ok := r.collectors[assetType]
	return c, ok
}

// Metadata returns descriptors for all registered collectors, one per
// distinct collector instance.
func (r *Registry) Metadata() []Metadata {
	seen := make(map[string]bool, len(r.collectors))
	out := make([]Metadata, 0, len(r.collectors))
	for _, at := range domain.AssetTypes() {
		c, ok := r.collectors[at]
		if !ok {
			continue
		}
		meta := c.Metadata()
		if seen[meta.Name] {
			continue
		}
		seen[meta.Name] = true
		out = append(out, meta)
	}
	return out
}

// classifyStatus maps an upstream HTTP status to an error category.
func classifyStatus(status int) domain.ErrorCategory {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrorCategoryRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrorCategoryConfiguration
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return domain.ErrorCategoryValidation
	default:
		return domain.ErrorCategoryAPI
	}
}

// fetch performs a GET and returns the body, classifying transport and
// status errors.
func fetch(ctx context.Context, client *http.Client, url, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryValidation,
			fmt.Sprintf("%s: bad request url", source), err)
	}
	req.Header.Set("User-Agent", "market-scheduler/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI,
			fmt.Sprintf("%s: request failed", source), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewIngestError(classifyStatus(resp.StatusCode),
			fmt.Sprintf("%s: unexpected status %d", source, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI,
			fmt.Sprintf("%s: failed to read response", source), err)
	}

	return body, nil
}
