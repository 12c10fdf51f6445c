package bot

import (
	"time"

	"adaptive-trading-bot/internal/orders"
	"adaptive-trading-bot/internal/strategy"
)

// Clock supplies wall-clock time for wallet stamps and telemetry. Trading
// decisions use candle time only.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Log levels surfaced to observers
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Marker is a chart annotation for an entry or exit
type Marker struct {
	Time  int64   `json:"time"`
	Side  string  `json:"side"`
	Price float64 `json:"price"`
	Label string  `json:"label"`
}

// Stats counts signals across the session
type Stats struct {
	Found   int `json:"found"`
	Skipped int `json:"skipped"`
	Taken   int `json:"taken"`
}

// Heartbeat is the per-tick market view
type Heartbeat struct {
	Time            int64             `json:"time"`
	Price           float64           `json:"price"`
	Regime          strategy.Regime   `json:"regime"`
	HTFBias         string            `json:"htf_bias"`
	Indicators      strategy.Snapshot `json:"indicators"`
	Params          strategy.Params   `json:"params"`
	RSIBaseline     float64           `json:"rsi_baseline"`
	Trades24h       int               `json:"trades_24h"`
	Stats           Stats             `json:"stats"`
	VolatilityGuard bool              `json:"volatility_guard"`
}

// State is the durable engine snapshot
type State struct {
	Position  *orders.Position `json:"position"`
	IsRunning bool             `json:"isRunning"`
}

// StateUpdate is sent whenever state is persisted
type StateUpdate struct {
	State  State         `json:"state"`
	Wallet orders.Wallet `json:"wallet"`
}

// Observer receives engine output. Calls are made synchronously while the
// engine lock is held, so implementations must not call back into the
// engine.
type Observer interface {
	OnLog(level, message string)
	OnMarker(m Marker)
	OnHeartbeat(h Heartbeat)
	OnStateUpdate(u StateUpdate)
}

// NopObserver discards everything
type NopObserver struct{}

func (NopObserver) OnLog(level, message string) {}
func (NopObserver) OnMarker(m Marker)           {}
func (NopObserver) OnHeartbeat(h Heartbeat)     {}
func (NopObserver) OnStateUpdate(u StateUpdate) {}
