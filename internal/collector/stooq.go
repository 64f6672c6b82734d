package collector

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

const stooqBaseURL = "https://stooq.com/q/d/l/"

// stooqMinColumns is Date,Open,High,Low,Close; Volume is optional.
const stooqMinColumns = 5

// Stooq collects daily OHLCV bars for stocks and commodities from the
// Stooq CSV endpoint.
type Stooq struct {
	client *http.Client
	logger logger.Interface
}

// NewStooq creates a Stooq collector.
func NewStooq(client *http.Client, log logger.Interface) *Stooq {
	return &Stooq{client: client, logger: log.WithComponent("collector.stooq")}
}

// Collect fetches daily bars in [start, end].
func (s *Stooq) Collect(
	ctx context.Context, symbol string, start, end time.Time, _ map[string]any,
) ([]domain.DataPoint, error) {
	if err := s.ValidateParams(symbol, nil); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("s", strings.ToLower(symbol))
	query.Set("d1", start.UTC().Format("20060102"))
	query.Set("d2", end.UTC().Format("20060102"))
	query.Set("i", "d")

	body, err := fetch(ctx, s.client, stooqBaseURL+"?"+query.Encode(), "stooq")
	if err != nil {
		return nil, err
	}

	// Stooq answers unknown symbols with a plain "No data" body.
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("No data")) {
		return nil, nil
	}

	points, err := parseStooqCSV(body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("collected stooq bars", "symbol", symbol, "rows", len(points))
	return points, nil
}

// Search is not offered by the Stooq CSV endpoint.
func (s *Stooq) Search(_ context.Context, _ string, _ int) ([]SearchResult, error) {
	return []SearchResult{}, nil
}

// ValidateParams checks the symbol shape.
func (s *Stooq) ValidateParams(symbol string, _ map[string]any) error {
	if symbol == "" {
		return domain.NewIngestError(domain.ErrorCategoryValidation, "stooq: symbol is required", nil)
	}
	if strings.ContainsAny(symbol, " \t\n") {
		return domain.NewIngestError(domain.ErrorCategoryValidation,
			fmt.Sprintf("stooq: invalid symbol %q", symbol), nil)
	}
	return nil
}

// Options lists accepted collector_kwargs.
func (s *Stooq) Options() []Option {
	return []Option{}
}

// Metadata describes the collector.
func (s *Stooq) Metadata() Metadata {
	return Metadata{
		Name:        "stooq",
		AssetTypes:  []string{string(domain.AssetTypeStock), string(domain.AssetTypeCommodity)},
		Description: "Daily OHLCV bars from the Stooq CSV export",
	}
}

func parseStooqCSV(body []byte) ([]domain.DataPoint, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryAPI, "stooq: malformed csv", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	points := make([]domain.DataPoint, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < stooqMinColumns {
			continue
		}

		ts, parseErr := time.ParseInLocation("2006-01-02", rec[0], time.UTC)
		if parseErr != nil {
			return nil, domain.NewIngestError(domain.ErrorCategoryAPI,
				fmt.Sprintf("stooq: bad date %q", rec[0]), parseErr)
		}

		values := make(map[string]float64, 5)
		for i, col := range []string{"open", "high", "low", "close"} {
			v, convErr := strconv.ParseFloat(rec[i+1], 64)
			if convErr != nil {
				return nil, domain.NewIngestError(domain.ErrorCategoryAPI,
					fmt.Sprintf("stooq: bad %s value %q", col, rec[i+1]), convErr)
			}
			values[col] = v
		}
		if len(rec) > stooqMinColumns {
			if v, convErr := strconv.ParseFloat(rec[stooqMinColumns], 64); convErr == nil {
				values["volume"] = v
			}
		}

		points = append(points, domain.DataPoint{Time: ts, Values: values})
	}

	return points, nil
}
