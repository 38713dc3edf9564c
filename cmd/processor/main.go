package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/config"
	"github.com/juank/cpa-dashboard/backend/internal/dashboard"
	"github.com/juank/cpa-dashboard/backend/internal/db"
	"github.com/juank/cpa-dashboard/backend/internal/logging"
	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/juank/cpa-dashboard/backend/internal/processor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	outPath  string
	format   string
	save     bool
	sheet    string
	debounce time.Duration

	cfg      *config.Config
	logger   *zap.Logger
	database db.Database
)

var rootCmd = &cobra.Command{
	Use:   "processor",
	Short: "Reconcile registrations and activity reports",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.Logging, verbose); err != nil {
			return err
		}
		if database, err = db.Connect(cmd.Context(), cfg.Database); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

var combineCmd = &cobra.Command{
	Use:   "combine [registrations-file] [activity-file]",
	Short: "Combine two report files and write the table",
	Long: `Reads a registrations export and an activity export (.xlsx or .csv),
reconciles them per User ID and writes the result as csv, xlsx or json.

Example:
  processor combine Registrati-2024.xlsx ActivityRe-2024.xlsx -o dashboard.csv`,
	Args: cobra.ExactArgs(2),
	RunE: runCombine,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process and save the newest report pair in the inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := newEngine().RunAll(cmd.Context(), cfg.Output.InboxDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d clients.\n", len(rows))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox and process new report pairs as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := os.MkdirAll(cfg.Output.InboxDir, 0755); err != nil {
			return err
		}
		return newEngine().Watch(ctx, cfg.Output.InboxDir, debounce)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	combineCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	combineCmd.Flags().StringVarP(&format, "format", "f", "", "csv, xlsx or json (default from --out extension, else csv)")
	combineCmd.Flags().BoolVar(&save, "save", false, "also upsert the rows into the database")
	combineCmd.Flags().StringVar(&sheet, "sheet", "", "worksheet to read from xlsx reports (default first)")

	watchCmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "quiet period before processing")

	rootCmd.AddCommand(combineCmd, runCmd, watchCmd)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	cleanup()
	if err != nil {
		os.Exit(1)
	}
}

// cleanup runs after the command whether it failed or not.
func cleanup() {
	if database != nil {
		database.Close()
		database = nil
	}
	if logger != nil {
		_ = logger.Sync()
		logger = nil
	}
}

func newEngine() *processor.Engine {
	return processor.NewEngine(cfg.Output.Dir, database, logger)
}

func runCombine(cmd *cobra.Command, args []string) error {
	engine := newEngine()
	engine.Sheet = sheet
	rows, err := engine.ProcessFiles(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if save {
		upload := processor.NewUpload(filepath.Base(args[0]), filepath.Base(args[1]))
		if err := engine.Save(cmd.Context(), rows, upload); err != nil {
			return err
		}
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return writeRows(w, outputFormat(), rows)
}

func outputFormat() string {
	if format != "" {
		return strings.ToLower(format)
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(outPath)), "."); ext != "" {
		return ext
	}
	return "csv"
}

func writeRows(w io.Writer, format string, rows []models.Row) error {
	switch format {
	case "csv":
		return dashboard.WriteCSV(w, dashboard.Columns(rows), rows)
	case "xlsx":
		return dashboard.WriteXLSX(w, dashboard.Columns(rows), rows)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return fmt.Errorf("unknown format %q", format)
}
