package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"tapefeed/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage defines the interface for data persistence
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return Open(dbPath)
}

// Open creates a storage backed by the given SQLite file.
func Open(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.SymbolInfo{}, &domain.CacheEntry{}, &domain.PrintRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "TapeFeed", "data", "tapefeed.db"), nil
}

// ======================================================================================
// Symbol Operations
// ======================================================================================

// UpsertSymbol creates or updates symbol metadata
func (s *Storage) UpsertSymbol(sym *domain.SymbolInfo) error {
	return s.db.Save(sym).Error
}

// GetSymbol retrieves symbol metadata by code
func (s *Storage) GetSymbol(symbol string) (*domain.SymbolInfo, error) {
	var sym domain.SymbolInfo
	err := s.db.First(&sym, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &sym, err
}

// GetAllSymbols retrieves the full watchlist
func (s *Storage) GetAllSymbols() ([]domain.SymbolInfo, error) {
	var syms []domain.SymbolInfo
	err := s.db.Find(&syms).Error
	return syms, err
}

// ToggleFavorite toggles the favorite status of a symbol
func (s *Storage) ToggleFavorite(symbol string) (bool, error) {
	var sym domain.SymbolInfo
	if err := s.db.First(&sym, "symbol = ?", symbol).Error; err != nil {
		return false, err
	}

	sym.IsFavorite = !sym.IsFavorite
	err := s.db.Save(&sym).Error
	return sym.IsFavorite, err
}

// DeleteSymbol removes a symbol from the watchlist
func (s *Storage) DeleteSymbol(symbol string) error {
	return s.db.Where("symbol = ?", symbol).Delete(&domain.SymbolInfo{}).Error
}

// ======================================================================================
// Cache Operations (string-keyed local cache: auth token, cached user, ...)
// ======================================================================================

// SetCache stores a value under the given key
func (s *Storage) SetCache(key, value string) error {
	entry := domain.CacheEntry{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&entry).Error
}

// GetCache retrieves the value for a key; empty string when absent
func (s *Storage) GetCache(key string) (string, error) {
	var entry domain.CacheEntry
	err := s.db.First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return entry.Value, err
}

// RemoveCache deletes a cache entry
func (s *Storage) RemoveCache(key string) error {
	return s.db.Where("key = ?", key).Delete(&domain.CacheEntry{}).Error
}

// ======================================================================================
// Print Operations (trade-history view)
// ======================================================================================

// SavePrints writes a batch of accepted trade prints
func (s *Storage) SavePrints(prints []domain.PrintRecord) error {
	if len(prints) == 0 {
		return nil
	}
	return s.db.Create(&prints).Error
}

// RecentPrints returns a page of prints for a symbol, newest first
func (s *Storage) RecentPrints(symbol string, limit, offset int) ([]domain.PrintRecord, error) {
	var prints []domain.PrintRecord
	err := s.db.Where("symbol = ?", symbol).
		Order("ts DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&prints).Error
	return prints, err
}

// PrunePrints keeps only the newest keep prints for a symbol
func (s *Storage) PrunePrints(symbol string, keep int) error {
	return s.db.Exec(
		"DELETE FROM print_records WHERE symbol = ? AND id NOT IN (SELECT id FROM print_records WHERE symbol = ? ORDER BY ts DESC, id DESC LIMIT ?)",
		symbol, symbol, keep,
	).Error
}
