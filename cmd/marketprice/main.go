// marketprice CLI - crowd-sourced marketplace price pipeline
//
// Usage:
//   marketprice export ./out
//   marketprice crowd create --task-def data/mturk/hit.yml data/urls
//   marketprice import batch_2024-05-02.csv
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"marketprice/db/clickhouse"
	"marketprice/db/postgres"
	"marketprice/internal/config"
	"marketprice/internal/crowd"
	"marketprice/internal/currency"
	"marketprice/internal/pipeline"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "marketprice",
		Usage:   "Reconcile crowd-sourced marketplace price reports into cleaned per-marketplace price series",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Before: func(c *cli.Context) error {
			config.LoadDotenv()
			initLogger(c.String("log-level"))
			return nil
		},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"MARKETPRICE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "pg-host",
				Value:   "localhost",
				Usage:   "PostgreSQL host",
				EnvVars: []string{"POSTGRES_HOST"},
			},
			&cli.IntFlag{
				Name:    "pg-port",
				Value:   5432,
				Usage:   "PostgreSQL port",
				EnvVars: []string{"POSTGRES_PORT"},
			},
			&cli.StringFlag{
				Name:    "pg-database",
				Value:   "marketprice",
				Usage:   "PostgreSQL database",
				EnvVars: []string{"POSTGRES_DB"},
			},
			&cli.StringFlag{
				Name:    "pg-user",
				Value:   "marketprice",
				Usage:   "PostgreSQL user",
				EnvVars: []string{"POSTGRES_USER"},
			},
			&cli.StringFlag{
				Name:    "pg-password",
				Value:   "",
				Usage:   "PostgreSQL password",
				EnvVars: []string{"POSTGRES_PASSWORD"},
			},
			&cli.StringFlag{
				Name:    "pg-sslmode",
				Value:   "disable",
				Usage:   "PostgreSQL SSL mode",
				EnvVars: []string{"POSTGRES_SSLMODE"},
			},
		},

		Commands: []*cli.Command{
			exportCommand(),
			crowdCommand(),
			importCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// =============================================================================
// EXPORT COMMAND
// =============================================================================

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Consolidate all stored reports and export per-marketplace price series",
		ArgsUsage: "OUT_DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rates-url",
				Value:   currency.DefaultSourceURL,
				Usage:   "Historical exchange-rate archive URL",
				EnvVars: []string{"MARKETPRICE_RATES_URL"},
			},
			&cli.BoolFlag{
				Name:    "analytics",
				Value:   false,
				Usage:   "Also record the filtered price series in ClickHouse",
				EnvVars: []string{"MARKETPRICE_ANALYTICS"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-host",
				Value:   "localhost",
				Usage:   "ClickHouse host",
				EnvVars: []string{"CLICKHOUSE_HOST"},
			},
			&cli.IntFlag{
				Name:    "clickhouse-port",
				Value:   9000,
				Usage:   "ClickHouse native port",
				EnvVars: []string{"CLICKHOUSE_PORT"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-database",
				Value:   "marketprice",
				Usage:   "ClickHouse database",
				EnvVars: []string{"CLICKHOUSE_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-user",
				Value:   "default",
				Usage:   "ClickHouse user",
				EnvVars: []string{"CLICKHOUSE_USER"},
			},
			&cli.StringFlag{
				Name:    "clickhouse-password",
				Value:   "",
				Usage:   "ClickHouse password",
				EnvVars: []string{"CLICKHOUSE_PASSWORD"},
			},
		},
		Action: runExport,
	}
}

func runExport(c *cli.Context) error {
	outDir := c.Args().First()
	if outDir == "" {
		return fmt.Errorf("missing OUT_DIR argument")
	}

	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	conv := currency.NewConverter(c.String("rates-url"))

	opts := pipeline.Options{
		OutDir: outDir,
		Logger: slog.Default(),
	}

	if c.Bool("analytics") {
		sink, err := clickhouse.NewSink(ctx, &clickhouse.Config{
			Host:     c.String("clickhouse-host"),
			Port:     c.Int("clickhouse-port"),
			Database: c.String("clickhouse-database"),
			Username: c.String("clickhouse-user"),
			Password: c.String("clickhouse-password"),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer sink.Close()
		opts.Analytics = sink
	}

	result, err := pipeline.Run(ctx, store, conv, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "📊 Consolidated %d observations from %d tasks\n",
		result.Observations, result.Tasks)
	fmt.Fprintf(os.Stderr, "🧹 Outlier filter kept %d of %d observations\n",
		result.Filtered, result.Observations)
	fmt.Printf("Exported data for %d marketplaces to %s\n", result.Marketplaces, outDir)
	return nil
}

// =============================================================================
// CROWD COMMANDS
// =============================================================================

func crowdCommand() *cli.Command {
	return &cli.Command{
		Name:  "crowd",
		Usage: "Manage price-check tasks on the crowd marketplace",
		Subcommands: []*cli.Command{
			{
				Name:   "ls",
				Usage:  "List task batches",
				Action: runCrowdLs,
			},
			{
				Name:      "rm",
				Usage:     "Remove all tasks of a batch",
				ArgsUsage: "BATCH_NAME",
				Action:    runCrowdRm,
			},
			{
				Name:  "prune",
				Usage: "Remove remote tasks whose answers are already imported",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Delete all tasks regardless of import state",
					},
				},
				Action: runCrowdPrune,
			},
			{
				Name:      "create",
				Usage:     "Publish one task per product URL found in DATA_DIR",
				ArgsUsage: "DATA_DIR",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "task-def",
						Value:   "data/mturk/hit.yml",
						Usage:   "YAML task (HIT) definition",
						EnvVars: []string{"MARKETPRICE_TASK_DEF"},
					},
				},
				Action: runCrowdCreate,
			},
			{
				Name:      "create-hit-type",
				Usage:     "Register a HIT type from a YAML definition",
				ArgsUsage: "DEF_PATH",
				Action:    runCrowdCreateHITType,
			},
			{
				Name:      "fetch",
				Usage:     "Fetch a batch's worker answers into the store",
				ArgsUsage: "BATCH_NAME",
				Action:    runCrowdFetch,
			},
			{
				Name:   "approve-all",
				Usage:  "Approve all submitted assignments",
				Action: runCrowdApproveAll,
			},
		},
	}
}

func runCrowdLs(c *cli.Context) error {
	ctx := context.Background()
	client, err := crowd.NewClient(ctx)
	if err != nil {
		return err
	}

	batches, err := client.ListBatches(ctx)
	if err != nil {
		return err
	}
	for _, b := range batches {
		fmt.Println(b)
	}
	return nil
}

func runCrowdRm(c *cli.Context) error {
	batchName := c.Args().First()
	if batchName == "" {
		return fmt.Errorf("missing BATCH_NAME argument")
	}

	ctx := context.Background()
	client, err := crowd.NewClient(ctx)
	if err != nil {
		return err
	}

	n, err := client.DeleteBatch(ctx, batchName)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d tasks for batch: %s\n", n, batchName)
	return nil
}

func runCrowdPrune(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	imported, err := store.ImportedBatches(ctx)
	if err != nil {
		return err
	}

	client, err := crowd.NewClient(ctx)
	if err != nil {
		return err
	}

	n, err := client.Prune(ctx, imported, c.Bool("force"))
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d tasks.\n", n)
	return nil
}

func runCrowdCreate(c *cli.Context) error {
	dataDir := c.Args().First()
	if dataDir == "" {
		return fmt.Errorf("missing DATA_DIR argument")
	}

	ctx := context.Background()

	def, err := crowd.LoadTaskDefinition(c.String("task-def"))
	if err != nil {
		return err
	}

	urls, err := crowd.LoadURLs(dataDir)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no product URLs found in %s", dataDir)
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := crowd.NewClient(ctx)
	if err != nil {
		return err
	}

	batchName := "batch_" + time.Now().UTC().Format("2006-01-02_15_04_05")
	tasks, failed, err := client.CreateBatch(ctx, def, batchName, urls)
	if err != nil {
		return err
	}

	if err := store.InsertTasks(ctx, tasks); err != nil {
		return err
	}

	fmt.Printf("Created %d tasks for batch: %s\n", len(tasks), batchName)
	if len(failed) > 0 {
		fmt.Fprintln(os.Stderr, "Creating a task for the following urls failed:")
		for _, u := range failed {
			fmt.Fprintln(os.Stderr, u)
		}
	}
	return nil
}

func runCrowdCreateHITType(c *cli.Context) error {
	defPath := c.Args().First()
	if defPath == "" {
		return fmt.Errorf("missing DEF_PATH argument")
	}

	ctx := context.Background()

	def, err := crowd.LoadHITTypeDefinition(defPath)
	if err != nil {
		return err
	}

	client, err := crowd.NewClient(ctx)
	if err != nil {
		return err
	}

	id, err := client.CreateHITType(ctx, def)
	if err != nil {
		return err
	}
	fmt.Printf("Created new HIT type from %q with id: %s\n", defPath, id)
	return nil
}

func runCrowdFetch(c *cli.Context) error {
	batchName := c.Args().First()
	if batchName == "" {
		return fmt.Errorf("missing BATCH_NAME argument")
	}

	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := crowd.NewClient(ctx)
	if err != nil {
		return err
	}

	reports, err := client.FetchBatch(ctx, batchName)
	if err != nil {
		return err
	}
	if err := store.InsertReports(ctx, reports); err != nil {
		return err
	}

	fmt.Printf("Stored %d reports for batch: %s\n", len(reports), batchName)
	return nil
}

func runCrowdApproveAll(c *cli.Context) error {
	ctx := context.Background()
	client, err := crowd.NewClient(ctx)
	if err != nil {
		return err
	}

	n, err := client.ApproveAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Approved %d assignments.\n", n)
	return nil
}

// =============================================================================
// IMPORT COMMAND
// =============================================================================

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import tasks and answers from a requester GUI results CSV",
		ArgsUsage: "CSV_PATH",
		Action:    runImport,
	}
}

func runImport(c *cli.Context) error {
	csvPath := c.Args().First()
	if csvPath == "" {
		return fmt.Errorf("missing CSV_PATH argument")
	}

	ctx := context.Background()

	tasks, reports, err := crowd.ImportCSV(csvPath)
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InsertTasks(ctx, tasks); err != nil {
		return err
	}
	if err := store.InsertReports(ctx, reports); err != nil {
		return err
	}

	fmt.Printf("Imported %d reports across %d tasks from: %s\n",
		len(reports), len(tasks), csvPath)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func openStore(c *cli.Context) (*postgres.Store, error) {
	store, err := postgres.NewStore(&postgres.Config{
		Host:     c.String("pg-host"),
		Port:     c.Int("pg-port"),
		Database: c.String("pg-database"),
		Username: c.String("pg-user"),
		Password: c.String("pg-password"),
		SSLMode:  c.String("pg-sslmode"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return store, nil
}
