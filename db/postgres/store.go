// Package postgres provides the relational store holding raw crowd
// task and worker-report records.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"marketprice/internal/model"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "marketprice",
		Username: "marketprice",
		Password: "",
		SSLMode:  "disable",
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// Store implements the task/report record store on PostgreSQL.
type Store struct {
	db  *sql.DB
	cfg *Config
}

// NewStore opens a connection, verifies it and applies the schema.
func NewStore(cfg *Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id            SERIAL PRIMARY KEY,
			task_id       TEXT        UNIQUE NOT NULL,
			creation_time TIMESTAMPTZ NOT NULL,
			batch_name    TEXT        NOT NULL,
			url           TEXT        NOT NULL,
			domain_name   TEXT        NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reports (
			id          SERIAL PRIMARY KEY,
			report_id   TEXT        UNIQUE NOT NULL,
			task_id     TEXT        NOT NULL REFERENCES tasks(task_id),
			accept_time TIMESTAMPTZ NOT NULL,
			submit_time TIMESTAMPTZ NOT NULL,
			in_stock    BOOLEAN     NOT NULL,
			price_cents BIGINT,
			currency    TEXT,
			quantity    INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_domain   ON tasks(domain_name);
		CREATE INDEX IF NOT EXISTS idx_tasks_batch    ON tasks(batch_name);
		CREATE INDEX IF NOT EXISTS idx_reports_task   ON reports(task_id);
	`)
	return err
}

// InsertTasks stores tasks, skipping any task id already present.
func (s *Store) InsertTasks(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (task_id, creation_time, batch_name, url, domain_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx,
			t.TaskID, t.CreationTime.UTC(), t.BatchName, t.URL, t.DomainName,
		); err != nil {
			return fmt.Errorf("postgres: insert task %s: %w", t.TaskID, err)
		}
	}
	return tx.Commit()
}

// InsertReports stores worker reports, skipping duplicates.
func (s *Store) InsertReports(ctx context.Context, reports []model.RawReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reports (report_id, task_id, accept_time, submit_time, in_stock, price_cents, currency, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (report_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range reports {
		if _, err := stmt.ExecContext(ctx,
			r.ReportID, r.TaskID, r.AcceptTime.UTC(), r.SubmitTime.UTC(),
			r.InStock, nullInt64(r.PriceCents), nullString(r.Currency), nullInt(r.Quantity),
		); err != nil {
			return fmt.Errorf("postgres: insert report %s: %w", r.ReportID, err)
		}
	}
	return tx.Commit()
}

// FetchTasks returns every stored task keyed by task id.
func (s *Store) FetchTasks(ctx context.Context) (map[string]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, creation_time, batch_name, url, domain_name
		FROM tasks
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch tasks: %w", err)
	}
	defer rows.Close()

	tasks := make(map[string]model.Task)
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.TaskID, &t.CreationTime, &t.BatchName, &t.URL, &t.DomainName); err != nil {
			return nil, fmt.Errorf("postgres: scan task: %w", err)
		}
		t.CreationTime = t.CreationTime.UTC()
		tasks[t.TaskID] = t
	}
	return tasks, rows.Err()
}

// FetchReportsGrouped returns all worker reports partitioned by their
// parent task id. Within a task, reports come back in insertion order.
func (s *Store) FetchReportsGrouped(ctx context.Context) (map[string][]model.RawReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT report_id, task_id, accept_time, submit_time, in_stock, price_cents, currency, quantity
		FROM reports
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch reports: %w", err)
	}
	defer rows.Close()

	grouped := make(map[string][]model.RawReport)
	for rows.Next() {
		var (
			r        model.RawReport
			price    sql.NullInt64
			currency sql.NullString
			quantity sql.NullInt32
		)
		if err := rows.Scan(
			&r.ReportID, &r.TaskID, &r.AcceptTime, &r.SubmitTime,
			&r.InStock, &price, &currency, &quantity,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan report: %w", err)
		}
		r.AcceptTime = r.AcceptTime.UTC()
		r.SubmitTime = r.SubmitTime.UTC()
		if price.Valid {
			v := price.Int64
			r.PriceCents = &v
		}
		if currency.Valid {
			v := currency.String
			r.Currency = &v
		}
		if quantity.Valid {
			v := int(quantity.Int32)
			r.Quantity = &v
		}
		grouped[r.TaskID] = append(grouped[r.TaskID], r)
	}
	return grouped, rows.Err()
}

// ImportedBatches returns the batch names that already have reports in
// the store. Used by the prune command to decide which crowd tasks are
// safe to delete remotely.
func (s *Store) ImportedBatches(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.batch_name
		FROM reports r
		JOIN tasks t ON t.task_id = r.task_id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch imported batches: %w", err)
	}
	defer rows.Close()

	batches := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("postgres: scan batch: %w", err)
		}
		batches[name] = struct{}{}
	}
	return batches, rows.Err()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
