package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

const frankfurterBaseURL = "https://api.frankfurter.app"

// currencyCodeLen is the length of one ISO 4217 code.
const currencyCodeLen = 3

// Frankfurter collects daily forex reference rates from the
// Frankfurter API. Symbols are currency pairs: "EURUSD" or "EUR/USD".
type Frankfurter struct {
	client *http.Client
	logger logger.Interface
}

// NewFrankfurter creates a Frankfurter collector.
func NewFrankfurter(client *http.Client, log logger.Interface) *Frankfurter {
	return &Frankfurter{client: client, logger: log.WithComponent("collector.frankfurter")}
}

// Collect fetches daily rates in [start, end].
func (f *Frankfurter) Collect(
	ctx context.Context, symbol string, start, end time.Time, _ map[string]any,
) ([]domain.DataPoint, error) {
	base, quote, err := splitPair(symbol)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s..%s?from=%s&to=%s",
		frankfurterBaseURL,
		start.UTC().Format("2006-01-02"),
		end.UTC().Format("2006-01-02"),
		base, quote)

	body, fetchErr := fetch(ctx, f.client, endpoint, "frankfurter")
	if fetchErr != nil {
		return nil, fetchErr
	}

	var payload struct {
		Rates map[string]map[string]float64 `json:"rates"`
	}
	if unmarshalErr := json.Unmarshal(body, &payload); unmarshalErr != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI, "frankfurter: malformed rates response", unmarshalErr)
	}

	points := make([]domain.DataPoint, 0, len(payload.Rates))
	for date, rates := range payload.Rates {
		rate, ok := rates[quote]
		if !ok {
			continue
		}
		ts, parseErr := time.ParseInLocation("2006-01-02", date, time.UTC)
		if parseErr != nil {
			continue
		}
		points = append(points, domain.DataPoint{Time: ts, Values: map[string]float64{"rate": rate}})
	}

	f.logger.Debug("collected frankfurter rates", "pair", base+quote, "rows", len(points))
	return points, nil
}

// Search lists supported currencies matching the query.
func (f *Frankfurter) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	body, err := fetch(ctx, f.client, frankfurterBaseURL+"/currencies", "frankfurter")
	if err != nil {
		return nil, err
	}

	var currencies map[string]string
	if unmarshalErr := json.Unmarshal(body, &currencies); unmarshalErr != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI, "frankfurter: malformed currencies response", unmarshalErr)
	}

	needle := strings.ToUpper(query)
	results := make([]SearchResult, 0, limit)
	for code, name := range currencies {
		if !strings.Contains(code, needle) && !strings.Contains(strings.ToUpper(name), needle) {
			continue
		}
		results = append(results, SearchResult{Symbol: code, Description: name})
		if len(results) >= limit {
			break
		}
	}

	return results, nil
}

// ValidateParams checks the pair shape.
func (f *Frankfurter) ValidateParams(symbol string, _ map[string]any) error {
	_, _, err := splitPair(symbol)
	return err
}

// Options lists accepted collector_kwargs.
func (f *Frankfurter) Options() []Option {
	return []Option{}
}

// Metadata describes the collector.
func (f *Frankfurter) Metadata() Metadata {
	return Metadata{
		Name:        "frankfurter",
		AssetTypes:  []string{string(domain.AssetTypeForex)},
		Description: "Daily ECB reference rates from the Frankfurter API",
	}
}

// splitPair parses "EURUSD" or "EUR/USD" into base and quote codes.
func splitPair(symbol string) (base, quote string, err error) {
	s := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
	if len(s) != 2*currencyCodeLen {
		return "", "", domain.NewIngestError(domain.ErrorCategoryValidation,
			fmt.Sprintf("frankfurter: invalid currency pair %q", symbol), nil)
	}
	return s[:currencyCodeLen], s[currencyCodeLen:], nil
}
