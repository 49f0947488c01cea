// # cmd/pyspect/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pyspect/internal/app"
	"pyspect/internal/config"
	"pyspect/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./pyspect.toml", "Path to config file")
	out        = flag.String("out", "", "Write the tree as JSON to a file ('-' for stdout)")
	storePath  = flag.String("store", "", "SQLite store path (overrides config)")
	lookup     = flag.String("lookup", "", "Resolve a qualified name and print matching objects")
	watch      = flag.Bool("watch", false, "Keep running and rebuild on source changes")
	metrics    = flag.String("metrics", "", "Serve /metrics and /health on this address")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("pyspect v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config; a missing default config file is fine, flags and
	// defaults carry the run.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath != "./pyspect.toml" {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}
	if flag.NArg() > 0 {
		cfg.Paths = flag.Args()
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *metrics != "" {
		cfg.MetricsAddr = *metrics
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TraceTarget != "" {
		shutdown, err := observability.InitTracing(ctx, cfg.TraceTarget)
		if err != nil {
			slog.Error("failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	if cfg.MetricsAddr != "" {
		server := observability.NewServer(cfg.MetricsAddr, a.Health)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			os.Exit(1)
		}
		defer server.Stop(context.Background())
	}

	if _, err := a.Build(ctx); err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}

	if *lookup != "" {
		records, err := a.Lookup(*lookup)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Fprintf(os.Stderr, "no object named %q\n", *lookup)
			os.Exit(1)
		}
		for _, rec := range records {
			fmt.Printf("%s\t%s\t%s:%d\n", rec.QualifiedName, rec.Kind, rec.FilePath, rec.Line)
		}
	}

	outPath := *out
	if outPath == "" {
		outPath = cfg.Output.JSON
	}
	if outPath != "" {
		if err := writeJSON(a, outPath); err != nil {
			slog.Error("failed to write output", "error", err)
			os.Exit(1)
		}
	}

	if *watch {
		if err := a.Watch(ctx); err != nil {
			slog.Error("watch failed", "error", err)
			os.Exit(1)
		}
	}
}

func writeJSON(a *app.App, path string) error {
	if path == "-" {
		return a.WriteJSON(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return a.WriteJSON(f)
}
