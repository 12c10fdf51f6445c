package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Persisted record keys. Each is rewritten in full on every mutation.
const (
	KeyWallet       = "wallet"
	KeyState        = "state"
	KeyBrain        = "brain"
	KeyPatternBrain = "pattern_brain"
	KeyJournal      = "journal"
	KeyBreaker      = "circuit_breaker"
)

var (
	// ErrNotFound is returned by Get when the key has never been written
	ErrNotFound = errors.New("key not found")

	// ErrCorrupt wraps a stored blob that no longer decodes
	ErrCorrupt = errors.New("corrupt record")
)

// Store is the key -> JSON blob persistence port used by the engine
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// LoadJSON decodes key into v. found is false when the key is absent; a
// blob that fails to decode yields an error wrapping ErrCorrupt.
func LoadJSON(ctx context.Context, s Store, key string, v interface{}) (found bool, err error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// SaveJSON encodes v and writes it under key
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
