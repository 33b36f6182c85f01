package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/chronicle/api"
	"github.com/use-agent/chronicle/cache"
	"github.com/use-agent/chronicle/config"
	"github.com/use-agent/chronicle/coordinate"
	"github.com/use-agent/chronicle/correlate"
	"github.com/use-agent/chronicle/extract"
	"github.com/use-agent/chronicle/pool"
	"github.com/use-agent/chronicle/provider"
	"github.com/use-agent/chronicle/report"
	"github.com/use-agent/chronicle/surface"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("chronicle starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxSurfaces", cfg.Browser.MaxSurfaces,
	)

	// ── 3. Initialise surface manager (launches browser) ────────────
	surfaces, err := surface.NewRodManager(cfg.Browser, cfg.Surface)
	if err != nil {
		slog.Error("failed to initialise surface manager", "error", err)
		os.Exit(1)
	}
	defer surfaces.Close()

	// ── 4. Wire the collection pipeline ─────────────────────────────
	correlator := correlate.New()
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go correlator.Run(dispatchCtx, surfaces.Messages())

	lister, err := provider.New(surfaces, correlator, cfg.Provider, cfg.Surface, cfg.Browser.DefaultProxy)
	if err != nil {
		slog.Error("failed to initialise list provider", "error", err)
		os.Exit(1)
	}

	runner := pool.New(surfaces, correlator, extract.Extractor{}, cfg.Surface, cfg.Pool)
	co := coordinate.New(lister, runner, cfg.Coordinator)
	rd := report.NewRenderer()

	// ── 4b. Initialise cache ────────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(co, rd, surfaces, cfg, cc, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// surfaces.Close() runs via defer — releases open tabs and kills Chrome.
	slog.Info("chronicle stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
