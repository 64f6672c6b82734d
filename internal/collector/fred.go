package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

const fredBaseURL = "https://api.stlouisfed.org/fred"

// FRED collects bond rates and economic indicator observations from
// the St. Louis Fed FRED API. Requires an API key.
type FRED struct {
	client *http.Client
	apiKey string
	logger logger.Interface
}

// NewFRED creates a FRED collector.
func NewFRED(client *http.Client, apiKey string, log logger.Interface) *FRED {
	return &FRED{client: client, apiKey: apiKey, logger: log.WithComponent("collector.fred")}
}

// Collect fetches series observations in [start, end]. Observations
// FRED reports as missing (".") are skipped.
func (f *FRED) Collect(
	ctx context.Context, symbol string, start, end time.Time, _ map[string]any,
) ([]domain.DataPoint, error) {
	if err := f.ValidateParams(symbol, nil); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("series_id", symbol)
	query.Set("api_key", f.apiKey)
	query.Set("file_type", "json")
	query.Set("observation_start", start.UTC().Format("2006-01-02"))
	query.Set("observation_end", end.UTC().Format("2006-01-02"))

	body, err := fetch(ctx, f.client, fredBaseURL+"/series/observations?"+query.Encode(), "fred")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Observations []struct {
			Date  string `json:"date"`
			Value string `json:"value"`
		} `json:"observations"`
	}
	if unmarshalErr := json.Unmarshal(body, &payload); unmarshalErr != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI, "fred: malformed observations response", unmarshalErr)
	}

	points := make([]domain.DataPoint, 0, len(payload.Observations))
	for _, obs := range payload.Observations {
		if obs.Value == "." {
			continue
		}

		ts, parseErr := time.ParseInLocation("2006-01-02", obs.Date, time.UTC)
		if parseErr != nil {
			continue
		}
		v, convErr := strconv.ParseFloat(obs.Value, 64)
		if convErr != nil {
			continue
		}

		points = append(points, domain.DataPoint{Time: ts, Values: map[string]float64{"value": v}})
	}

	f.logger.Debug("collected fred observations", "series", symbol, "rows", len(points))
	return points, nil
}

// Search queries FRED full-text series search.
func (f *FRED) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if f.apiKey == "" {
		return nil, domain.NewIngestError(domain.ErrorCategoryConfiguration, "fred: api key not configured", nil)
	}

	params := url.Values{}
	params.Set("search_text", query)
	params.Set("api_key", f.apiKey)
	params.Set("file_type", "json")
	params.Set("limit", strconv.Itoa(limit))

	body, err := fetch(ctx, f.client, fredBaseURL+"/series/search?"+params.Encode(), "fred")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Seriess []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"seriess"`
	}
	if unmarshalErr := json.Unmarshal(body, &payload); unmarshalErr != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI, "fred: malformed search response", unmarshalErr)
	}

	results := make([]SearchResult, 0, len(payload.Seriess))
	for _, s := range payload.Seriess {
		results = append(results, SearchResult{Symbol: s.ID, Description: s.Title})
	}

	return results, nil
}

// ValidateParams checks the series ID and credentials.
func (f *FRED) ValidateParams(symbol string, _ map[string]any) error {
	if symbol == "" {
		return domain.NewIngestError(domain.ErrorCategoryValidation, "fred: series id is required", nil)
	}
	if f.apiKey == "" {
		return domain.NewIngestError(domain.ErrorCategoryConfiguration, "fred: api key not configured", nil)
	}
	return nil
}

// Options lists accepted collector_kwargs.
func (f *FRED) Options() []Option {
	return []Option{}
}

// Metadata describes the collector.
func (f *FRED) Metadata() Metadata {
	return Metadata{
		Name:         "fred",
		AssetTypes:   []string{string(domain.AssetTypeBond), string(domain.AssetTypeEconomicIndicator)},
		Description:  "Series observations from the St. Louis Fed FRED API",
		RequiresAuth: true,
	}
}
