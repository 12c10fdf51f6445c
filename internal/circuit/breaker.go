package circuit

import (
	"fmt"
	"math"
	"sync"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Volatility guard forced on
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

const secondsPerDay = 86400

// CircuitBreakerConfig holds circuit breaker configuration. All times are
// candle time, so replays behave like live runs.
type CircuitBreakerConfig struct {
	Enabled              bool    `json:"enabled" yaml:"enabled"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses" default:"3" validate:"gte=1"` // Losing trades in a row before trip
	CooldownMinutes      int     `json:"cooldown_minutes" yaml:"cooldown_minutes" default:"60" validate:"gte=0"`             // Guard duration after trip
	MaxDailyLoss         float64 `json:"max_daily_loss" yaml:"max_daily_loss" validate:"gte=0"`                              // Realized loss per day that blocks entries, 0 = off
	MaxDailyTrades       int     `json:"max_daily_trades" yaml:"max_daily_trades" validate:"gte=0"`                          // Closed trades per day that block entries, 0 = off
}

// DefaultCircuitBreakerConfig returns the limits used once the breaker is
// enabled. It starts disabled: the volatility guard belongs to the operator
// unless the breaker is switched on.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxConsecutiveLosses: 3,
		CooldownMinutes:      60,
	}
}

// Stats is a point-in-time view of the breaker
type Stats struct {
	State             BreakerState `json:"state"`
	ConsecutiveLosses int          `json:"consecutive_losses"`
	DailyLoss         float64      `json:"daily_loss"`
	DailyTrades       int          `json:"daily_trades"`
	TripReason        string       `json:"trip_reason,omitempty"`
	LastTripTime      int64        `json:"last_trip_time,omitempty"`
	Trips             int          `json:"trips"`
}

// CircuitBreaker trips after a losing streak. While open the engine trades
// with the volatility guard on; the daily limits block new entries.
type CircuitBreaker struct {
	config            *CircuitBreakerConfig
	state             BreakerState
	consecutiveLosses int
	dailyLoss         float64
	dailyTrades       int
	day               int64
	lastTripTime      int64
	tripReason        string
	trips             int
	mu                sync.RWMutex
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// GuardActive reports whether the breaker is open at candle time now.
// An elapsed cooldown moves the breaker to half-open.
func (cb *CircuitBreaker) GuardActive(now int64) bool {
	if !cb.IsEnabled() {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return false
	}
	if now-cb.lastTripTime < cb.cooldownSeconds() {
		return true
	}
	cb.state = StateHalfOpen
	return false
}

// CanTrade checks the daily limits at candle time now
func (cb *CircuitBreaker) CanTrade(now int64) (bool, string) {
	if !cb.IsEnabled() {
		return true, ""
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.resetDailyIfNeeded(now)

	if cb.config.MaxDailyLoss > 0 && cb.dailyLoss >= cb.config.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f >= %.2f",
			cb.dailyLoss, cb.config.MaxDailyLoss)
	}

	if cb.config.MaxDailyTrades > 0 && cb.dailyTrades >= cb.config.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d trades",
			cb.dailyTrades)
	}

	return true, ""
}

// RecordTrade records a realized PnL at candle time at. It returns true
// when this trade tripped the breaker.
func (cb *CircuitBreaker) RecordTrade(pnl float64, at int64) bool {
	if !cb.IsEnabled() {
		return false
	}

	// NaN/Inf would poison the daily loss counter
	if math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.resetDailyIfNeeded(at)
	cb.dailyTrades++

	if pnl > 0 {
		cb.consecutiveLosses = 0
		if cb.state == StateHalfOpen {
			cb.state = StateClosed
			cb.tripReason = ""
		}
		return false
	}

	cb.consecutiveLosses++
	cb.dailyLoss += -pnl

	if cb.state == StateHalfOpen {
		cb.trip(at, "loss during recovery")
		return true
	}
	if cb.state == StateClosed && cb.consecutiveLosses >= cb.config.MaxConsecutiveLosses {
		cb.trip(at, fmt.Sprintf("consecutive losses: %d", cb.consecutiveLosses))
		return true
	}
	return false
}

// trip opens the circuit breaker
func (cb *CircuitBreaker) trip(at int64, reason string) {
	cb.state = StateOpen
	cb.lastTripTime = at
	cb.tripReason = reason
	cb.trips++
}

func (cb *CircuitBreaker) cooldownSeconds() int64 {
	return int64(cb.config.CooldownMinutes) * 60
}

// resetDailyIfNeeded resets counters on a new UTC day
func (cb *CircuitBreaker) resetDailyIfNeeded(now int64) {
	day := now - now%secondsPerDay
	if day != cb.day {
		cb.day = day
		cb.dailyLoss = 0
		cb.dailyTrades = 0
	}
}

// Snapshot is the persisted breaker state
type Snapshot struct {
	State             BreakerState `json:"state"`
	ConsecutiveLosses int          `json:"consecutive_losses"`
	DailyLoss         float64      `json:"daily_loss"`
	DailyTrades       int          `json:"daily_trades"`
	Day               int64        `json:"day"`
	LastTripTime      int64        `json:"last_trip_time"`
	TripReason        string       `json:"trip_reason,omitempty"`
	Trips             int          `json:"trips"`
}

// Snapshot captures the counters and state for persistence
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return Snapshot{
		State:             cb.state,
		ConsecutiveLosses: cb.consecutiveLosses,
		DailyLoss:         cb.dailyLoss,
		DailyTrades:       cb.dailyTrades,
		Day:               cb.day,
		LastTripTime:      cb.lastTripTime,
		TripReason:        cb.tripReason,
		Trips:             cb.trips,
	}
}

// Restore replaces the state with a snapshot. Unknown states and invalid
// counters fall back to a closed breaker with zeroed counters.
func (cb *CircuitBreaker) Restore(s Snapshot) {
	switch s.State {
	case StateClosed, StateOpen, StateHalfOpen:
	default:
		s = Snapshot{State: StateClosed}
	}
	if math.IsNaN(s.DailyLoss) || math.IsInf(s.DailyLoss, 0) || s.DailyLoss < 0 {
		s.DailyLoss = 0
	}
	if s.ConsecutiveLosses < 0 {
		s.ConsecutiveLosses = 0
	}
	if s.DailyTrades < 0 {
		s.DailyTrades = 0
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = s.State
	cb.consecutiveLosses = s.ConsecutiveLosses
	cb.dailyLoss = s.DailyLoss
	cb.dailyTrades = s.DailyTrades
	cb.day = s.Day
	cb.lastTripTime = s.LastTripTime
	cb.tripReason = s.TripReason
	cb.trips = s.Trips
}

// ForceReset manually resets the circuit breaker
func (cb *CircuitBreaker) ForceReset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.consecutiveLosses = 0
	cb.tripReason = ""
}

// GetState returns current breaker state
func (cb *CircuitBreaker) GetState() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current statistics
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return Stats{
		State:             cb.state,
		ConsecutiveLosses: cb.consecutiveLosses,
		DailyLoss:         cb.dailyLoss,
		DailyTrades:       cb.dailyTrades,
		TripReason:        cb.tripReason,
		LastTripTime:      cb.lastTripTime,
		Trips:             cb.trips,
	}
}

// IsEnabled returns if circuit breaker is enabled
func (cb *CircuitBreaker) IsEnabled() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.config.Enabled
}

// GetConfig returns a copy of the current configuration
func (cb *CircuitBreaker) GetConfig() CircuitBreakerConfig {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return *cb.config
}

// UpdateConfig updates the circuit breaker configuration
func (cb *CircuitBreaker) UpdateConfig(updates *CircuitBreakerConfig) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if updates.MaxConsecutiveLosses > 0 {
		cb.config.MaxConsecutiveLosses = updates.MaxConsecutiveLosses
	}
	if updates.CooldownMinutes > 0 {
		cb.config.CooldownMinutes = updates.CooldownMinutes
	}
	if updates.MaxDailyLoss > 0 {
		cb.config.MaxDailyLoss = updates.MaxDailyLoss
	}
	if updates.MaxDailyTrades > 0 {
		cb.config.MaxDailyTrades = updates.MaxDailyTrades
	}
}

// SetEnabled enables or disables the circuit breaker
func (cb *CircuitBreaker) SetEnabled(enabled bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.config.Enabled = enabled
}
