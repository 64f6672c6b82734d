// Package ingest runs one end-to-end collection: resolve asset, pick
// collector, narrow the window, call upstream under the rate limit,
// map and load rows, record the outcome.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/assets"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/collector"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/mapper"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/tracker"
)

// UnknownCollector is recorded when no collector exists for the
// requested asset type.
const UnknownCollector = "Unknown"

// defaultWindow is the relative window when the caller gives no dates.
const defaultWindow = 24 * time.Hour

// Outcome statuses.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

// Request is one ingestion run. Nil Start/End mean the window is
// computed relative to now at call time.
type Request struct {
	Symbol          string
	AssetType       domain.AssetType
	Start           *time.Time
	End             *time.Time
	CollectorKwargs map[string]any
	AssetMetadata   domain.JSONBMap
}

// Outcome is the result of one ingestion run. Err is nil unless
// Status is failed; its category drives retry policy.
type Outcome struct {
	Status           string
	CollectorType    string
	RecordsCollected int
	ExecutionTimeMs  int64
	LogID            *int64
	Err              *domain.IngestError
}

// resolver resolves (symbol, asset_type) to an asset row.
type resolver interface {
	Resolve(ctx context.Context, symbol string, assetType domain.AssetType, metadata domain.JSONBMap) (*domain.Asset, error)
}

// registry dispatches asset types to collectors.
type registry interface {
	Get(assetType domain.AssetType) (collector.Collector, bool)
}

// narrower shrinks a requested window against stored coverage.
type narrower interface {
	Narrow(ctx context.Context, assetType domain.AssetType, assetID int64, start, end time.Time) (tracker.Window, error)
}

// limiter admits collector calls under the shared per-class limit.
type limiter interface {
	Acquire(ctx context.Context, class string) error
}

// loader persists mapped rows.
type loader interface {
	Upsert(ctx context.Context, table string, rows []domain.SeriesRow) (int, error)
}

// logStore records collector invocations.
type logStore interface {
	Create(ctx context.Context, log *domain.CollectionLog) error
}

// Engine performs ingestion runs. It never returns an error to its
// caller: failures are classified and carried inside the Outcome.
type Engine struct {
	assets     resolver
	collectors registry
	tracker    narrower
	limiter    limiter
	loader     loader
	logs       logStore
	timeout    time.Duration
	logger     logger.Interface
	now        func() time.Time
}

// NewEngine wires an ingestion engine.
func NewEngine(
	assetManager *assets.Manager,
	collectors *collector.Registry,
	windowTracker *tracker.Tracker,
	rateLimiter limiter,
	dataLoader loader,
	logs logStore,
	timeout time.Duration,
	log logger.Interface,
) *Engine {
	return &Engine{
		assets:     assetManager,
		collectors: collectors,
		tracker:    windowTracker,
		limiter:    rateLimiter,
		loader:     dataLoader,
		logs:       logs,
		timeout:    timeout,
		logger:     log.WithComponent("ingest"),
		now:        time.Now,
	}
}

// Ingest runs one collection for the request.
func (e *Engine) Ingest(ctx context.Context, req Request) Outcome {
	started := e.now()

	asset, err := e.assets.Resolve(ctx, req.Symbol, req.AssetType, req.AssetMetadata)
	if err != nil {
		// No asset row means no CollectionLog either.
		return e.failed(started, UnknownCollector, nil, err)
	}

	coll, ok := e.collectors.Get(req.AssetType)
	if !ok {
		failure := domain.NewIngestError(domain.ErrorCategoryValidation,
			"no collector for asset type "+string(req.AssetType), nil)
		return e.failed(started, UnknownCollector, nil, failure)
	}
	collectorType := coll.Metadata().Name

	// Window is computed fresh on every call, never captured at job
	// registration time.
	end := e.now().UTC()
	if req.End != nil {
		end = req.End.UTC()
	}
	start := end.Add(-defaultWindow)
	if req.Start != nil {
		start = req.Start.UTC()
	}

	window, err := e.tracker.Narrow(ctx, req.AssetType, asset.ID, start, end)
	if err != nil {
		failure := domain.NewIngestError(domain.ErrorCategoryPersistence, "failed to narrow window", err)
		return e.failed(started, collectorType, nil, failure)
	}

	if window.Empty {
		logID := e.writeLog(ctx, asset.ID, collectorType, start, end, 0,
			domain.CollectionStatusEmpty, nil, e.elapsedMs(started))
		e.logger.Debug("window already covered",
			"symbol", req.Symbol, "asset_type", string(req.AssetType))
		return Outcome{
			Status:          OutcomeEmpty,
			CollectorType:   collectorType,
			ExecutionTimeMs: e.elapsedMs(started),
			LogID:           logID,
		}
	}

	if err := e.limiter.Acquire(ctx, collectorType); err != nil {
		failure := domain.NewIngestError(domain.ErrorCategoryRateLimit, "rate limit wait aborted", err)
		return e.failed(started, collectorType, nil, failure)
	}

	collectCtx, cancel := context.WithTimeout(ctx, e.timeout)
	points, err := coll.Collect(collectCtx, req.Symbol, window.Start, window.End, req.CollectorKwargs)
	timedOut := errors.Is(collectCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if timedOut && ctx.Err() == nil {
			err = domain.NewIngestError(domain.ErrorCategoryAPI, "collector call timed out", err)
		}
		logID := e.writeFailureLog(ctx, asset.ID, collectorType, window, err, e.elapsedMs(started))
		return e.failed(started, collectorType, logID, err)
	}

	table, rows, err := mapper.Map(req.AssetType, asset.ID, points)
	if err != nil {
		failure := domain.NewIngestError(domain.ErrorCategoryMapping, "failed to map collector output", err)
		logID := e.writeFailureLog(ctx, asset.ID, collectorType, window, failure, e.elapsedMs(started))
		return e.failed(started, collectorType, logID, failure)
	}

	written, err := e.loader.Upsert(ctx, table, rows)
	if err != nil {
		failure := domain.NewIngestError(domain.ErrorCategoryPersistence, "failed to persist rows", err)
		logID := e.writeFailureLog(ctx, asset.ID, collectorType, window, failure, e.elapsedMs(started))
		return e.failed(started, collectorType, logID, failure)
	}

	status := domain.CollectionStatusSuccess
	if written == 0 {
		status = domain.CollectionStatusEmpty
	}
	elapsed := e.elapsedMs(started)
	logID := e.writeLog(ctx, asset.ID, collectorType, window.Start, window.End, written, status, nil, elapsed)

	e.logger.Info("ingestion complete",
		"symbol", req.Symbol,
		"asset_type", string(req.AssetType),
		"collector", collectorType,
		"records", written,
		"duration_ms", elapsed)

	outcomeStatus := OutcomeSuccess
	if written == 0 {
		outcomeStatus = OutcomeEmpty
	}
	return Outcome{
		Status:           outcomeStatus,
		CollectorType:    collectorType,
		RecordsCollected: written,
		ExecutionTimeMs:  elapsed,
		LogID:            logID,
	}
}

func (e *Engine) failed(started time.Time, collectorType string, logID *int64, err error) Outcome {
	var ingErr *domain.IngestError
	if !errors.As(err, &ingErr) {
		ingErr = domain.NewIngestError(domain.ClassifyError(err), err.Error(), err)
	}

	e.logger.Warn("ingestion failed",
		"collector", collectorType,
		"category", string(ingErr.Category),
		"error", ingErr.Error())

	return Outcome{
		Status:          OutcomeFailed,
		CollectorType:   collectorType,
		ExecutionTimeMs: e.elapsedMs(started),
		LogID:           logID,
		Err:             ingErr,
	}
}

func (e *Engine) writeFailureLog(
	ctx context.Context,
	assetID int64,
	collectorType string,
	window tracker.Window,
	cause error,
	elapsedMs int64,
) *int64 {
	msg := cause.Error()
	return e.writeLog(ctx, assetID, collectorType, window.Start, window.End, 0,
		domain.CollectionStatusFailed, &msg, elapsedMs)
}

func (e *Engine) writeLog(
	ctx context.Context,
	assetID int64,
	collectorType string,
	start, end time.Time,
	records int,
	status string,
	errMsg *string,
	elapsedMs int64,
) *int64 {
	entry := &domain.CollectionLog{
		AssetID:          assetID,
		CollectorType:    collectorType,
		StartDate:        start,
		EndDate:          end,
		RecordsCollected: records,
		Status:           status,
		ErrorMessage:     errMsg,
		ExecutionTimeMs:  &elapsedMs,
	}
	if err := e.logs.Create(ctx, entry); err != nil {
		e.logger.Error("failed to write collection log", "error", err)
		return nil
	}
	return &entry.ID
}

func (e *Engine) elapsedMs(started time.Time) int64 {
	return e.now().Sub(started).Milliseconds()
}
