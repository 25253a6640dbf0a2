package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tapefeed/internal/app"
	"tapefeed/internal/infra"
	"tapefeed/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize("configs/config.yaml"); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background Watchlist Sync (symbols + logos)
	go bootstrap.SyncSymbols(ctx)

	// 5. Metrics
	registry := prometheus.NewRegistry()
	metrics := infra.NewMetrics(registry)

	// 6. Board Service (engine + adapters host)
	board := service.New(cfg, bootstrap.Storage, metrics)
	board.Start(ctx)

	if err := board.Subscribe(ctx, cfg.Watch.Primary); err != nil {
		slog.Error("Failed to subscribe", slog.String("symbol", cfg.Watch.Primary), slog.Any("error", err))
		os.Exit(1)
	}
	defer board.Unsubscribe()
	slog.InfoContext(ctx, "✅ Board subscribed", slog.String("symbol", cfg.Watch.Primary))

	// 7. HTTP: board view model + metrics
	mux := http.NewServeMux()
	mux.Handle("/board", board.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		slog.Info("HTTP server started", slog.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	slog.InfoContext(ctx, "✨ TapeFeed fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	server.Close()
}
