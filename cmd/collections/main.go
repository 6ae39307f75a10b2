// Command collections groups a folder of images into titled collections.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/formbricks/collections/internal/clustererrors"
	"github.com/formbricks/collections/internal/config"
	"github.com/formbricks/collections/internal/models"
	"github.com/formbricks/collections/internal/observability"
	"github.com/formbricks/collections/internal/service"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130

	shutdownTimeout = 10 * time.Second
)

type options struct {
	owner    string
	jsonOut  bool
	list     bool
	deleteID string
	paths    []string
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("collections", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: collections [flags] <file-or-dir>...\n\nFlags:\n")
		fs.PrintDefaults()
	}

	var opts options

	fs.StringVar(&opts.owner, "owner", "", "save the clusters as collections of this owner")
	fs.BoolVar(&opts.jsonOut, "json", false, "print the result as JSON")
	fs.BoolVar(&opts.list, "list", false, "list the owner's collections and exit")
	fs.StringVar(&opts.deleteID, "delete", "", "delete the owner's collection with this id and exit")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.paths = fs.Args()

	if (opts.list || opts.deleteID != "") && opts.owner == "" {
		return opts, errors.New("-list and -delete require -owner")
	}

	if !opts.list && opts.deleteID == "" && len(opts.paths) == 0 {
		fs.Usage()

		return opts, errors.New("no input files")
	}

	return opts, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}

		fmt.Fprintln(os.Stderr, err)

		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	setupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to start", "error", err)

		return exitFailure
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	switch {
	case opts.deleteID != "":
		return app.deleteCollection(ctx, opts)
	case opts.list:
		return app.listCollections(ctx, opts)
	default:
		return app.clusterFiles(ctx, opts)
	}
}

// result is the -json output of a clustering run.
type result struct {
	Summary  models.BatchSummary    `json:"summary"`
	Clusters []models.ClusterRecord `json:"clusters"`
	Saved    *service.SaveResult    `json:"saved,omitempty"`
}

func (a *App) clusterFiles(ctx context.Context, opts options) int {
	files, err := readInputs(opts.paths)
	if err != nil {
		color.Red("%v", err)

		return exitFailure
	}

	batch := a.engine.Submit(ctx, files)
	trackProgress(batch, countImages(files, a.cfg.MaxFileBytes), !opts.jsonOut)

	records, summary, err := batch.Result()

	switch {
	case errors.Is(err, clustererrors.ErrBatchCancelled):
		color.Yellow("cancelled")

		return exitCancelled
	case err != nil:
		color.Red("clustering failed: %v", err)

		return exitFailure
	}

	out := result{Summary: summary, Clusters: records}

	if opts.owner != "" && len(records) > 0 {
		saved, err := a.collections.Save(ctx, opts.owner, records)
		if err != nil {
			color.Red("saving collections failed: %v", err)

			return exitFailure
		}

		out.Saved = &saved
	}

	if opts.jsonOut {
		return printJSON(out)
	}

	printResult(os.Stdout, out)

	return exitOK
}

func (a *App) listCollections(ctx context.Context, opts options) int {
	records, err := a.collections.List(ctx, opts.owner)
	if err != nil {
		color.Red("listing collections failed: %v", err)

		return exitFailure
	}

	if opts.jsonOut {
		return printJSON(records)
	}

	printClusters(os.Stdout, records)

	return exitOK
}

func (a *App) deleteCollection(ctx context.Context, opts options) int {
	if err := a.collections.Delete(ctx, opts.owner, opts.deleteID); err != nil {
		color.Red("deleting collection failed: %v", err)

		return exitFailure
	}

	color.Green("✓ deleted %s", opts.deleteID)

	return exitOK
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		slog.Error("encode output", "error", err)

		return exitFailure
	}

	return exitOK
}

// setupLogging configures slog with the given level and format on stderr.
// Records carry trace_id, span_id and batch_id when present.
func setupLogging(level, format string) {
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(observability.NewTraceContextHandler(handler)))
}
