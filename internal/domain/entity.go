package domain

import "time"

// SymbolInfo represents metadata for a watched stock symbol
type SymbolInfo struct {
	Symbol       string    `gorm:"primaryKey" json:"symbol"`
	Name         string    `json:"name"`
	Exchange     string    `json:"exchange"` // "HOSE", "HNX", "UPCOM"
	LogoPath     string    `json:"logo_path"`
	IsActive     bool      `json:"is_active" gorm:"index"`   // Active trading status
	IsFavorite   bool      `json:"is_favorite" gorm:"index"` // User favorite status
	LastSyncedAt time.Time `json:"last_synced_at"`           // Last logo sync time
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CacheEntry is the string-keyed local cache (auth token, cached user, ...)
type CacheEntry struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrintRecord is one accepted trade print persisted for the paginated
// trade-history view. Price and volume are stored as decimal strings to keep
// exact values across the SQLite round trip.
type PrintRecord struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Symbol   string `gorm:"index:idx_prints_symbol_ts" json:"symbol"`
	Price    string `json:"price"`
	Volume   string `json:"volume"`
	Side     string `json:"side"`
	Ts       int64  `gorm:"index:idx_prints_symbol_ts" json:"ts"`
	DedupKey string `json:"dedup_key"`
}
