// Package clickhouse provides the optional analytics sink: after a
// successful export the filtered observation series is appended to a
// columnar price_points table for ad-hoc analysis.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"marketprice/internal/pipeline"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "marketprice",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Sink implements pipeline.Sink using ClickHouse.
type Sink struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewSink connects to ClickHouse and ensures the price_points table
// exists.
func NewSink(ctx context.Context, cfg *Config) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: connect: %w", err)
	}

	s := &Sink{conn: conn, cfg: cfg}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse: schema: %w", err)
	}
	return s, nil
}

// Ping checks database connectivity.
func (s *Sink) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_points (
			id             UUID,
			run_id         UUID,
			marketplace    LowCardinality(String),
			date           Date,
			url            String,
			unit_price_usd Decimal(18, 6),
			in_stock       UInt8,
			exported_at    DateTime
		) ENGINE = MergeTree()
		ORDER BY (marketplace, date, run_id)
	`)
}

// RecordPricePoints appends the filtered observation series for one
// export run.
func (s *Sink) RecordPricePoints(ctx context.Context, runID string, points []pipeline.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	run, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("clickhouse: bad run id %q: %w", runID, err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (id, run_id, marketplace, date, url, unit_price_usd, in_stock, exported_at)
	`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare batch: %w", err)
	}

	exportedAt := time.Now().UTC()
	for _, p := range points {
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return fmt.Errorf("clickhouse: bad date %q: %w", p.Date, err)
		}
		if err := batch.Append(
			uuid.New(),
			run,
			p.Marketplace,
			date,
			p.URL,
			p.UnitPriceUSD,
			boolToUInt8(p.InStock),
			exportedAt,
		); err != nil {
			return fmt.Errorf("clickhouse: append point: %w", err)
		}
	}
	return batch.Send()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
