package learning

import (
	"context"
	"fmt"
	"sync"

	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/logging"
)

// Rank is the historical quality of a pattern
type Rank string

const (
	RankNew  Rank = "NEW"
	RankTest Rank = "TEST"
	RankF    Rank = "F"
	RankB    Rank = "B"
	RankA    Rank = "A"
	RankS    Rank = "S"
)

// IsElite reports ranks that earn the S/A rewards
func (r Rank) IsElite() bool {
	return r == RankS || r == RankA
}

// PatternStat accumulates outcomes for one pattern name
type PatternStat struct {
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	PnL           float64 `json:"pnl"`
	LastTradeTime int64   `json:"lastTradeTime"`
}

// Total returns the sample count
func (s PatternStat) Total() int {
	return s.Wins + s.Losses
}

// WinRate returns wins as a percentage of samples
func (s PatternStat) WinRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Total()) * 100
}

const (
	toxicMinSamples = 10
	toxicPnL        = -15.0
	minRankSamples  = 3

	// CooldownBars is how long a toxic pattern sits out before a TEST trade
	CooldownBars = 500

	// DefaultBarSeconds is the base timeframe when none is configured
	DefaultBarSeconds = 60
)

// PatternRanker grades patterns from their trade history
type PatternRanker struct {
	mu         sync.RWMutex
	stats      map[string]*PatternStat
	barSeconds int64
	store      database.Store
	logger     *logging.Logger
}

// NewPatternRanker creates an empty ranker. barSeconds converts the
// cooldown from bars to candle time.
func NewPatternRanker(store database.Store, barSeconds int64, logger *logging.Logger) *PatternRanker {
	if barSeconds <= 0 {
		barSeconds = DefaultBarSeconds
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PatternRanker{
		stats:      make(map[string]*PatternStat),
		barSeconds: barSeconds,
		store:      store,
		logger:     logger.WithComponent("pattern-ranker"),
	}
}

// Load restores the table. A missing or corrupt record leaves it empty.
func (r *PatternRanker) Load(ctx context.Context) error {
	stats := make(map[string]*PatternStat)
	_, err := database.LoadJSON(ctx, r.store, database.KeyPatternBrain, &stats)
	if err != nil {
		r.logger.Warn("Pattern stats unreadable, starting empty", "error", err)
		stats = make(map[string]*PatternStat)
	}
	if stats == nil {
		stats = make(map[string]*PatternStat)
	}
	for name, s := range stats {
		if s == nil {
			r.logger.Warn("Dropping empty pattern stat", "pattern", name)
			delete(stats, name)
		}
	}

	r.mu.Lock()
	r.stats = stats
	r.mu.Unlock()
	return err
}

// Rank grades the pattern at candle time now (unix seconds)
func (r *PatternRanker) Rank(name string, now int64) Rank {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[name]
	if !ok {
		return RankNew
	}

	total := s.Total()
	if total >= toxicMinSamples && s.PnL < toxicPnL {
		cooldown := CooldownBars * r.barSeconds
		if s.LastTradeTime > 0 && now-s.LastTradeTime > cooldown {
			return RankTest
		}
		return RankF
	}

	if total < minRankSamples {
		return RankNew
	}

	wr := s.WinRate()
	switch {
	case wr > 60 && s.PnL > 10:
		return RankS
	case wr > 50 && s.PnL > 0:
		return RankA
	default:
		return RankB
	}
}

// Learn records an outcome at candle time at and persists the table
func (r *PatternRanker) Learn(ctx context.Context, name string, result Result, pnl float64, at int64) error {
	if name == "" {
		return nil
	}

	r.mu.Lock()
	s, ok := r.stats[name]
	if !ok {
		s = &PatternStat{}
		r.stats[name] = s
	}
	if result == Win {
		s.Wins++
	} else {
		s.Losses++
	}
	s.PnL += pnl
	s.LastTradeTime = at
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := database.SaveJSON(ctx, r.store, database.KeyPatternBrain, snapshot); err != nil {
		return fmt.Errorf("failed to persist pattern stats: %w", err)
	}
	return nil
}

func (r *PatternRanker) snapshotLocked() map[string]PatternStat {
	out := make(map[string]PatternStat, len(r.stats))
	for k, v := range r.stats {
		out[k] = *v
	}
	return out
}

// Snapshot returns a copy of the table
func (r *PatternRanker) Snapshot() map[string]PatternStat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Stat returns one pattern's stats
func (r *PatternRanker) Stat(name string) (PatternStat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[name]
	if !ok {
		return PatternStat{}, false
	}
	return *s, true
}
