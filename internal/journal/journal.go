// Package journal records closed trades in a bounded, persisted ring.
package journal

import (
	"context"
	"errors"
	"sort"
	"sync"

	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/logging"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of trades kept before the oldest is evicted
const DefaultCapacity = 5000

// Entry is an immutable closed-trade record
type Entry struct {
	ID         string          `json:"id"`
	Time       int64           `json:"time"`
	EntryTime  int64           `json:"entry_time"`
	Result     learning.Result `json:"result"`
	PnL        float64         `json:"pnl"`
	Hash       string          `json:"hash"`
	Pattern    string          `json:"pattern"`
	Rank       string          `json:"rank,omitempty"`
	Reason     string          `json:"reason"`
	EntryPrice float64         `json:"entry"`
	ExitPrice  float64         `json:"exit"`
	Quantity   float64         `json:"quantity"`
	Leverage   int             `json:"leverage"`
	Balance    float64         `json:"balance"`
}

// Journal is the trade ring buffer
type Journal struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	store    database.Store
	logger   *logging.Logger
}

// New creates an empty journal
func New(store database.Store, capacity int, logger *logging.Logger) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Journal{
		capacity: capacity,
		store:    store,
		logger:   logger.WithComponent("journal"),
	}
}

// Load restores persisted entries. Corrupt data leaves the journal empty
// and is reported.
func (j *Journal) Load(ctx context.Context) error {
	var entries []Entry
	_, err := database.LoadJSON(ctx, j.store, database.KeyJournal, &entries)

	j.mu.Lock()
	defer j.mu.Unlock()

	if err != nil {
		j.entries = nil
		if errors.Is(err, database.ErrCorrupt) {
			j.logger.Warn("Trade journal corrupt, starting empty", "error", err.Error())
		}
		return err
	}

	if len(entries) > j.capacity {
		entries = entries[len(entries)-j.capacity:]
	}
	j.entries = entries
	return nil
}

// Append stores a trade, evicting the oldest past capacity, and persists
// the journal. The stored entry is returned with its ID.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	j.mu.Lock()
	j.entries = append(j.entries, e)
	if len(j.entries) > j.capacity {
		j.entries = j.entries[len(j.entries)-j.capacity:]
	}
	snapshot := j.snapshotLocked()
	j.mu.Unlock()

	return e, database.SaveJSON(ctx, j.store, database.KeyJournal, snapshot)
}

func (j *Journal) snapshotLocked() []Entry {
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Entries returns up to limit most recent trades, oldest first. A limit of
// zero or less returns everything.
func (j *Journal) Entries(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entries := j.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Len returns the number of stored trades
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// PatternSummary aggregates the trades of one pattern
type PatternSummary struct {
	Pattern string  `json:"pattern"`
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	PnL     float64 `json:"pnl"`
}

// WinRate returns wins as a percentage
func (p PatternSummary) WinRate() float64 {
	if p.Trades == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Trades) * 100
}

// Summary aggregates a set of trades
type Summary struct {
	Trades       int              `json:"trades"`
	Wins         int              `json:"wins"`
	Losses       int              `json:"losses"`
	WinRate      float64          `json:"win_rate"`
	TotalPnL     float64          `json:"total_pnl"`
	Best         float64          `json:"best"`
	Worst        float64          `json:"worst"`
	Liquidations int              `json:"liquidations"`
	ByPattern    []PatternSummary `json:"by_pattern"`
}

// Summarize computes statistics over entries. Patterns are ordered by PnL,
// best first.
func Summarize(entries []Entry) Summary {
	var s Summary
	byPattern := make(map[string]*PatternSummary)

	for i, e := range entries {
		s.Trades++
		s.TotalPnL += e.PnL
		if e.Result == learning.Win {
			s.Wins++
		} else {
			s.Losses++
		}
		if i == 0 || e.PnL > s.Best {
			s.Best = e.PnL
		}
		if i == 0 || e.PnL < s.Worst {
			s.Worst = e.PnL
		}
		if e.Reason == "LIQUIDATION" {
			s.Liquidations++
		}

		ps, ok := byPattern[e.Pattern]
		if !ok {
			ps = &PatternSummary{Pattern: e.Pattern}
			byPattern[e.Pattern] = ps
		}
		ps.Trades++
		ps.PnL += e.PnL
		if e.Result == learning.Win {
			ps.Wins++
		}
	}

	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}

	s.ByPattern = make([]PatternSummary, 0, len(byPattern))
	for _, ps := range byPattern {
		s.ByPattern = append(s.ByPattern, *ps)
	}
	sort.Slice(s.ByPattern, func(a, b int) bool {
		if s.ByPattern[a].PnL != s.ByPattern[b].PnL {
			return s.ByPattern[a].PnL > s.ByPattern[b].PnL
		}
		return s.ByPattern[a].Pattern < s.ByPattern[b].Pattern
	})
	return s
}
