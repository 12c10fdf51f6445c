package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"adaptive-trading-bot/internal/logging"
)

type wallet struct {
	Balance  float64 `json:"balance"`
	TotalPnL float64 `json:"totalPnL"`
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, KeyWallet); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store error = %v, want ErrNotFound", err)
	}

	var w wallet
	found, err := LoadJSON(ctx, s, KeyWallet, &w)
	if err != nil || found {
		t.Fatalf("LoadJSON on empty store = (%v, %v), want (false, nil)", found, err)
	}

	if err := SaveJSON(ctx, s, KeyWallet, wallet{Balance: 30.5, TotalPnL: 3.5}); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	if err := SaveJSON(ctx, s, KeyWallet, wallet{Balance: 31, TotalPnL: 4}); err != nil {
		t.Fatalf("SaveJSON overwrite: %v", err)
	}

	found, err = LoadJSON(ctx, s, KeyWallet, &w)
	if err != nil || !found {
		t.Fatalf("LoadJSON = (%v, %v), want (true, nil)", found, err)
	}
	if w.Balance != 31 || w.TotalPnL != 4 {
		t.Errorf("round trip = %+v", w)
	}

	if err := s.Put(ctx, KeyBrain, []byte("{not json")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var brain map[string]int
	if _, err := LoadJSON(ctx, s, KeyBrain, &brain); !errors.Is(err, ErrCorrupt) {
		t.Errorf("corrupt blob error = %v, want ErrCorrupt", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value := []byte(`{"a":1}`)
	_ = s.Put(ctx, "k", value)
	value[0] = 'X'

	got, _ := s.Get(ctx, "k")
	if got[0] != '{' {
		t.Error("stored value should not alias the caller's slice")
	}
}

func TestRedisStoreFallback(t *testing.T) {
	s := NewRedisStore(nil, "test", logging.Nop())
	if s.Available() {
		t.Fatal("nil client should never be available")
	}
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "engine.db")

	s, err := NewSQLiteStore(ctx, path, "BTCUSDT", logging.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	exerciseStore(t, s)
	s.Close()

	reopened, err := NewSQLiteStore(ctx, path, "BTCUSDT", logging.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	var w wallet
	if found, err := LoadJSON(ctx, reopened, KeyWallet, &w); err != nil || !found || w.Balance != 31 {
		t.Errorf("record should survive reopen: found=%v err=%v wallet=%+v", found, err, w)
	}

	other, err := NewSQLiteStore(ctx, path, "ETHUSDT", logging.Nop())
	if err != nil {
		t.Fatalf("open other namespace: %v", err)
	}
	defer other.Close()
	if found, _ := LoadJSON(ctx, other, KeyWallet, &w); found {
		t.Error("namespaces should be isolated")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "etcd"}, logging.Nop()); err == nil {
		t.Error("Should reject unknown backend")
	}
	s, err := Open(context.Background(), Options{}, logging.Nop())
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("default backend = %T, want *MemoryStore", s)
	}
}
