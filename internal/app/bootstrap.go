package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tapefeed/internal/domain"
	"tapefeed/internal/infra"
	"tapefeed/internal/infra/storage"
)

// cacheKeyAuthToken is where the stream auth token is cached locally.
const cacheKeyAuthToken = "auth_token"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Downloader *infra.LogoDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (DB, Dir, etc.)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping TapeFeed...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Cache the auth token for the next cold start
	if cfg.API.Stream.AuthToken != "" {
		if err := store.SetCache(cacheKeyAuthToken, cfg.API.Stream.AuthToken); err != nil {
			slog.Warn("Failed to cache auth token", slog.Any("error", err))
		}
	} else if cached, _ := store.GetCache(cacheKeyAuthToken); cached != "" {
		cfg.API.Stream.AuthToken = cached
	}

	// 5. Initialize Logo Downloader
	if cfg.API.Logo.BaseURL != "" {
		downloader, err := infra.NewLogoDownloader(cfg.API.Logo.BaseURL)
		if err != nil {
			return err
		}
		b.Downloader = downloader
		slog.Info("✅ Logo downloader ready")
	}

	return nil
}

// SyncSymbols synchronizes the watchlist and company logos in the background
func (b *Bootstrap) SyncSymbols(ctx context.Context) {
	slog.Info("🔄 Starting watchlist synchronization...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, symbol := range b.Config.Watch.Symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			// 1. Upsert to DB
			info := &domain.SymbolInfo{
				Symbol:       sym,
				Name:         sym, // Default to symbol until dynamic lookup
				IsActive:     true,
				UpdatedAt:    time.Now(),
				LastSyncedAt: time.Time{}, // Force sync if needed
			}

			// Check if exists to preserve IsFavorite
			if existing, _ := b.Storage.GetSymbol(sym); existing != nil {
				info.IsFavorite = existing.IsFavorite
				info.LogoPath = existing.LogoPath
				info.LastSyncedAt = existing.LastSyncedAt
				info.Exchange = existing.Exchange
			}

			if err := b.Storage.UpsertSymbol(info); err != nil {
				slog.Error("Failed to upsert symbol", slog.String("symbol", sym), slog.Any("error", err))
			}

			// 2. Download Logo (if missing)
			if b.Downloader == nil {
				return
			}
			path, err := b.Downloader.DownloadLogo(sym)
			if err != nil {
				slog.Warn("Failed to download logo", slog.String("symbol", sym), slog.Any("error", err))
			} else if path != "" {
				// Update path in DB
				info.LogoPath = path
				info.LastSyncedAt = time.Now()
				b.Storage.UpsertSymbol(info)
			}
		}(symbol)
	}

	wg.Wait()
	slog.Info("✨ Watchlist synchronization completed")
}
