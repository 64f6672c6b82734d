package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

const (
	coinbaseBaseURL = "https://api.exchange.coinbase.com"

	// coinbaseDayGranularity requests daily candles.
	coinbaseDayGranularity = 86400

	// coinbaseCandleFields is [time, low, high, open, close, volume].
	coinbaseCandleFields = 6

	// coinbaseMaxCandles is the per-request candle cap imposed
	// upstream; longer windows are fetched in chunks.
	coinbaseMaxCandles = 300
)

// Coinbase collects daily crypto candles from the Coinbase Exchange
// public market-data API.
type Coinbase struct {
	client *http.Client
	logger logger.Interface
}

// NewCoinbase creates a Coinbase collector.
func NewCoinbase(client *http.Client, log logger.Interface) *Coinbase {
	return &Coinbase{client: client, logger: log.WithComponent("collector.coinbase")}
}

// Collect fetches daily candles in [start, end], chunked to the
// upstream per-request cap.
func (c *Coinbase) Collect(
	ctx context.Context, symbol string, start, end time.Time, _ map[string]any,
) ([]domain.DataPoint, error) {
	if err := c.ValidateParams(symbol, nil); err != nil {
		return nil, err
	}

	product := productID(symbol)
	var points []domain.DataPoint

	chunk := time.Duration(coinbaseMaxCandles) * 24 * time.Hour
	for cursor := start; cursor.Before(end); cursor = cursor.Add(chunk) {
		chunkEnd := cursor.Add(chunk)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		batch, err := c.fetchCandles(ctx, product, cursor, chunkEnd)
		if err != nil {
			return nil, err
		}
		points = append(points, batch...)
	}

	c.logger.Debug("collected coinbase candles", "product", product, "rows", len(points))
	return points, nil
}

func (c *Coinbase) fetchCandles(ctx context.Context, product string, start, end time.Time) ([]domain.DataPoint, error) {
	query := url.Values{}
	query.Set("start", start.UTC().Format(time.RFC3339))
	query.Set("end", end.UTC().Format(time.RFC3339))
	query.Set("granularity", fmt.Sprintf("%d", coinbaseDayGranularity))

	endpoint := fmt.Sprintf("%s/products/%s/candles?%s", coinbaseBaseURL, product, query.Encode())
	body, err := fetch(ctx, c.client, endpoint, "coinbase")
	if err != nil {
		return nil, err
	}

	var candles [][]float64
	if unmarshalErr := json.Unmarshal(body, &candles); unmarshalErr != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI, "coinbase: malformed candle response", unmarshalErr)
	}

	points := make([]domain.DataPoint, 0, len(candles))
	for _, candle := range candles {
		if len(candle) < coinbaseCandleFields {
			continue
		}
		points = append(points, domain.DataPoint{
			Time: time.Unix(int64(candle[0]), 0).UTC(),
			Values: map[string]float64{
				"low":    candle[1],
				"high":   candle[2],
				"open":   candle[3],
				"close":  candle[4],
				"volume": candle[5],
			},
		})
	}

	return points, nil
}

// Search queries the products list for matching product IDs.
func (c *Coinbase) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	body, err := fetch(ctx, c.client, coinbaseBaseURL+"/products", "coinbase")
	if err != nil {
		return nil, err
	}

	var products []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	if unmarshalErr := json.Unmarshal(body, &products); unmarshalErr != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI, "coinbase: malformed products response", unmarshalErr)
	}

	needle := strings.ToUpper(query)
	results := make([]SearchResult, 0, limit)
	for _, p := range products {
		if !strings.Contains(p.ID, needle) {
			continue
		}
		results = append(results, SearchResult{Symbol: p.ID, Description: p.DisplayName})
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}

// ValidateParams checks the symbol shape.
func (c *Coinbase) ValidateParams(symbol string, _ map[string]any) error {
	if symbol == "" {
		return domain.NewIngestError(domain.ErrorCategoryValidation, "coinbase: symbol is required", nil)
	}
	return nil
}

// Options lists accepted collector_kwargs.
func (c *Coinbase) Options() []Option {
	return []Option{
		{
			Name:        "quote_currency",
			Type:        "string",
			Description: "Quote currency appended when the symbol has no pair suffix",
			Default:     "USD",
		},
	}
}

// Metadata describes the collector.
func (c *Coinbase) Metadata() Metadata {
	return Metadata{
		Name:        "coinbase",
		AssetTypes:  []string{string(domain.AssetTypeCrypto)},
		Description: "Daily candles from the Coinbase Exchange market-data API",
	}
}

// productID normalizes "BTC" or "BTC-USD" to a Coinbase product ID.
func productID(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "-") {
		return s
	}
	return s + "-USD"
}
