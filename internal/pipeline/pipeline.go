// Package pipeline wires consolidation, outlier filtering and export
// into the single batch pass behind the export command.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketprice/internal/consolidate"
	"marketprice/internal/currency"
	"marketprice/internal/export"
	"marketprice/internal/model"
	"marketprice/internal/outlier"
)

// Store is the queryable record store the pipeline reads from.
type Store interface {
	FetchTasks(ctx context.Context) (map[string]model.Task, error)
	FetchReportsGrouped(ctx context.Context) (map[string][]model.RawReport, error)
}

// PricePoint is one filtered observation, flattened for analytics.
type PricePoint struct {
	Marketplace  string
	Date         string
	URL          string
	UnitPriceUSD decimal.Decimal
	InStock      bool
}

// Sink receives the filtered observation series after a successful
// file export. Optional.
type Sink interface {
	RecordPricePoints(ctx context.Context, runID string, points []PricePoint) error
}

// Options configures one pipeline run.
type Options struct {
	OutDir    string
	Analytics Sink
	Logger    *slog.Logger
}

// Result summarizes one pipeline run.
type Result struct {
	Tasks        int
	Observations int
	Filtered     int
	Marketplaces int
}

// Run executes the whole batch pass: fetch grouped reports, consolidate
// per task, filter outliers per (marketplace, day) bucket, then write
// the per-marketplace timeseries and latest-snapshot CSVs. Aggregations
// are computed before the output directory is cleared, so an upstream
// failure leaves the previous export untouched.
func Run(ctx context.Context, store Store, conv *currency.Converter, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tasks, err := store.FetchTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	grouped, err := store.FetchReportsGrouped(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch reports: %w", err)
	}

	// Task order is fixed so repeated runs over the same data produce
	// byte-identical exports.
	taskIDs := make([]string, 0, len(grouped))
	for id := range grouped {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)

	var observations []model.Observation
	for _, id := range taskIDs {
		task, ok := tasks[id]
		if !ok {
			logger.Warn("reports reference unknown task", "task_id", id)
			continue
		}
		if obs := consolidate.Consolidate(task, grouped[id]); obs != nil {
			observations = append(observations, *obs)
		}
	}
	logger.Info("consolidated reports",
		"tasks", len(grouped), "observations", len(observations))

	filtered, err := outlier.Filter(observations, conv)
	if err != nil {
		return nil, fmt.Errorf("filter outliers: %w", err)
	}
	logger.Info("filtered outliers",
		"kept", len(filtered), "dropped", len(observations)-len(filtered))

	series, err := export.Timeseries(filtered, conv)
	if err != nil {
		return nil, fmt.Errorf("build timeseries: %w", err)
	}
	latest, err := export.Latest(filtered, conv)
	if err != nil {
		return nil, fmt.Errorf("build latest snapshot: %w", err)
	}

	writer := export.NewWriter(opts.OutDir)
	if err := writer.Reset(); err != nil {
		return nil, err
	}
	if err := writer.WriteTimeseries(series); err != nil {
		return nil, err
	}
	if err := writer.WriteLatest(latest); err != nil {
		return nil, err
	}

	if opts.Analytics != nil {
		points, err := pricePoints(filtered, conv)
		if err != nil {
			return nil, fmt.Errorf("build analytics points: %w", err)
		}
		runID := uuid.New().String()
		if err := opts.Analytics.RecordPricePoints(ctx, runID, points); err != nil {
			return nil, fmt.Errorf("record analytics: %w", err)
		}
		logger.Info("recorded analytics", "run_id", runID, "points", len(points))
	}

	return &Result{
		Tasks:        len(grouped),
		Observations: len(observations),
		Filtered:     len(filtered),
		Marketplaces: len(series),
	}, nil
}

func pricePoints(observations []model.Observation, conv *currency.Converter) ([]PricePoint, error) {
	points := make([]PricePoint, 0, len(observations))
	for _, o := range observations {
		up, err := o.UnitPriceUSD(conv)
		if err != nil {
			return nil, err
		}
		points = append(points, PricePoint{
			Marketplace:  o.Marketplace(),
			Date:         o.DateString(),
			URL:          o.URL,
			UnitPriceUSD: up,
			InStock:      o.InStock,
		})
	}
	return points, nil
}
