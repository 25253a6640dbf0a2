package storage

import (
	"path/filepath"
	"testing"
	"time"

	"tapefeed/internal/domain"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return s
}

func TestUpsertAndGetSymbol(t *testing.T) {
	s := setupTestDB(t)

	info := &domain.SymbolInfo{
		Symbol:    "SSI",
		Name:      "SSI Securities",
		Exchange:  "HOSE",
		IsActive:  true,
		UpdatedAt: time.Now(),
	}

	// 1. Create
	if err := s.UpsertSymbol(info); err != nil {
		t.Fatalf("UpsertSymbol failed: %v", err)
	}

	// 2. Get
	fetched, err := s.GetSymbol("SSI")
	if err != nil {
		t.Fatalf("GetSymbol failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("fetched symbol is nil")
	}
	if fetched.Exchange != "HOSE" {
		t.Errorf("expected HOSE, got %s", fetched.Exchange)
	}

	// 3. Not found is not an error
	missing, err := s.GetSymbol("NOPE")
	if err != nil || missing != nil {
		t.Errorf("missing symbol must be (nil, nil), got (%v, %v)", missing, err)
	}
}

func TestToggleFavorite(t *testing.T) {
	s := setupTestDB(t)
	s.UpsertSymbol(&domain.SymbolInfo{Symbol: "VCB", Name: "Vietcombank"})

	fav, err := s.ToggleFavorite("VCB")
	if err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if !fav {
		t.Error("first toggle must favorite")
	}

	fav, _ = s.ToggleFavorite("VCB")
	if fav {
		t.Error("second toggle must unfavorite")
	}
}

func TestCacheOperations(t *testing.T) {
	s := setupTestDB(t)

	if err := s.SetCache("auth_token", "abc123"); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	v, err := s.GetCache("auth_token")
	if err != nil || v != "abc123" {
		t.Errorf("expected abc123, got %q (%v)", v, err)
	}

	// Overwrite
	s.SetCache("auth_token", "def456")
	if v, _ := s.GetCache("auth_token"); v != "def456" {
		t.Errorf("expected def456, got %q", v)
	}

	// Remove
	if err := s.RemoveCache("auth_token"); err != nil {
		t.Fatalf("RemoveCache failed: %v", err)
	}
	if v, _ := s.GetCache("auth_token"); v != "" {
		t.Errorf("removed key must read empty, got %q", v)
	}
}

func TestPrintOperations(t *testing.T) {
	s := setupTestDB(t)

	batch := make([]domain.PrintRecord, 0, 10)
	for i := 0; i < 10; i++ {
		batch = append(batch, domain.PrintRecord{
			Symbol: "SSI",
			Price:  "23800",
			Volume: "100",
			Side:   "B",
			Ts:     int64(1000 + i),
		})
	}
	if err := s.SavePrints(batch); err != nil {
		t.Fatalf("SavePrints failed: %v", err)
	}

	t.Run("Paginated Newest First", func(t *testing.T) {
		page, err := s.RecentPrints("SSI", 3, 0)
		if err != nil {
			t.Fatalf("RecentPrints failed: %v", err)
		}
		if len(page) != 3 || page[0].Ts != 1009 {
			t.Errorf("expected newest first, got %+v", page)
		}

		next, _ := s.RecentPrints("SSI", 3, 3)
		if len(next) != 3 || next[0].Ts != 1006 {
			t.Errorf("expected second page from ts 1006, got %+v", next)
		}
	})

	t.Run("Symbol Scoped", func(t *testing.T) {
		other, _ := s.RecentPrints("VCB", 10, 0)
		if len(other) != 0 {
			t.Errorf("expected no VCB prints, got %d", len(other))
		}
	})

	t.Run("Prune Keeps Newest", func(t *testing.T) {
		if err := s.PrunePrints("SSI", 4); err != nil {
			t.Fatalf("PrunePrints failed: %v", err)
		}
		left, _ := s.RecentPrints("SSI", 100, 0)
		if len(left) != 4 {
			t.Fatalf("expected 4 prints after prune, got %d", len(left))
		}
		if left[len(left)-1].Ts != 1006 {
			t.Errorf("oldest surviving print must be ts 1006, got %d", left[len(left)-1].Ts)
		}
	})

	t.Run("Empty Batch Is A NoOp", func(t *testing.T) {
		if err := s.SavePrints(nil); err != nil {
			t.Errorf("empty batch must not error: %v", err)
		}
	})
}
