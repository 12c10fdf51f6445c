package orders

import (
	"errors"
	"fmt"
	"sync"

	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/risk"

	"github.com/rs/zerolog"
)

// PositionType is the side of a paper position. Only longs are traded.
type PositionType string

const PositionLong PositionType = "LONG"

// CloseReason explains why a position was closed
type CloseReason string

const (
	CloseStopLoss    CloseReason = "SL"
	CloseTakeProfit  CloseReason = "TP"
	CloseLiquidation CloseReason = "LIQUIDATION"
	CloseManual      CloseReason = "MANUAL"
)

// Leverage bounds accepted by Open
const (
	MinLeverage = 1
	MaxLeverage = 20
)

// Errors for position management
var (
	ErrPositionOpen    = errors.New("a position is already open")
	ErrNoPosition      = errors.New("no open position")
	ErrInvalidBracket  = errors.New("invalid stop/target bracket")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidLeverage = errors.New("invalid leverage")
)

// Position is the single open paper position
type Position struct {
	Type        PositionType `json:"type"`
	EntryPrice  float64      `json:"entry_price"`
	StopLoss    float64      `json:"stop_loss"`
	TakeProfit  float64      `json:"take_profit"`
	Quantity    float64      `json:"quantity"`
	ATR         float64      `json:"atr"`
	IsTrailed   bool         `json:"is_trailed"`
	MarketHash  string       `json:"market_hash"`
	PatternName string       `json:"pattern_name"`
	Rank        string       `json:"rank,omitempty"`
	Leverage    int          `json:"leverage"`
	EntryRSI    float64      `json:"entry_rsi"`
	EntryTime   int64        `json:"entry_time"`
}

// Margin is the collateral backing the position
func (p Position) Margin() float64 {
	return p.EntryPrice * p.Quantity / float64(p.Leverage)
}

// UnrealizedPnL at price
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity
}

// IsLiquidated reports whether the loss at price consumes the whole margin
func (p Position) IsLiquidated(price float64) bool {
	return p.UnrealizedPnL(price) <= -p.Margin()
}

// Wallet is the paper account. Balance only moves on close.
type Wallet struct {
	Balance   float64 `json:"balance"`
	TotalPnL  float64 `json:"totalPnL"`
	Timestamp int64   `json:"timestamp"`
}

// OpenRequest carries everything needed to open a position
type OpenRequest struct {
	Plan        risk.Plan
	ATR         float64
	RSI         float64
	MarketHash  string
	PatternName string
	Rank        learning.Rank
	Time        int64
}

// ClosedTrade is the realized outcome of a position
type ClosedTrade struct {
	Position  Position        `json:"position"`
	ExitPrice float64         `json:"exit_price"`
	ExitTime  int64           `json:"exit_time"`
	Reason    CloseReason     `json:"reason"`
	PnL       float64         `json:"pnl"`
	Result    learning.Result `json:"result"`
	Balance   float64         `json:"balance"`
}

// PositionManager owns the wallet and at most one position:
// FLAT -> OPEN -> TRAILED -> CLOSED (FLAT)
type PositionManager struct {
	mu       sync.RWMutex
	position *Position
	wallet   Wallet
	trail    *risk.BreakevenTrail
	logger   zerolog.Logger
}

// NewPositionManager creates a flat manager with the starting balance
func NewPositionManager(initialBalance float64, trail *risk.BreakevenTrail, logger zerolog.Logger) *PositionManager {
	if trail == nil {
		trail = risk.NewBreakevenTrail(risk.DefaultTrailingConfig())
	}
	return &PositionManager{
		wallet: Wallet{Balance: initialBalance},
		trail:  trail,
		logger: logger.With().Str("component", "PositionManager").Logger(),
	}
}

// Restore replaces wallet and position with persisted values
func (pm *PositionManager) Restore(wallet Wallet, position *Position) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.wallet = wallet
	pm.position = nil
	if position != nil {
		p := *position
		pm.position = &p
	}
}

// Open creates the position from a sized plan
func (pm *PositionManager) Open(req OpenRequest) (*Position, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.position != nil {
		return nil, ErrPositionOpen
	}

	plan := req.Plan
	if !(plan.StopLoss < plan.Price && plan.Price < plan.TakeProfit) {
		return nil, fmt.Errorf("%w: sl=%.4f entry=%.4f tp=%.4f", ErrInvalidBracket, plan.StopLoss, plan.Price, plan.TakeProfit)
	}
	if plan.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if plan.Leverage < MinLeverage || plan.Leverage > MaxLeverage {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLeverage, plan.Leverage)
	}

	pm.position = &Position{
		Type:        PositionLong,
		EntryPrice:  plan.Price,
		StopLoss:    plan.StopLoss,
		TakeProfit:  plan.TakeProfit,
		Quantity:    plan.Quantity,
		ATR:         req.ATR,
		MarketHash:  req.MarketHash,
		PatternName: req.PatternName,
		Rank:        string(req.Rank),
		Leverage:    plan.Leverage,
		EntryRSI:    req.RSI,
		EntryTime:   req.Time,
	}

	pm.logger.Info().
		Float64("entry_price", plan.Price).
		Float64("quantity", plan.Quantity).
		Int("leverage", plan.Leverage).
		Float64("stop_loss", plan.StopLoss).
		Float64("take_profit", plan.TakeProfit).
		Str("pattern", req.PatternName).
		Msg("Position opened")

	p := *pm.position
	return &p, nil
}

// Manage runs one tick of the open position: liquidation first, then the
// breakeven trail, then stop and target. It returns the closed trade when
// the position exits and the stop move when the trail fires.
func (pm *PositionManager) Manage(price float64, at int64) (*ClosedTrade, *risk.StopUpdate) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p := pm.position
	if p == nil {
		return nil, nil
	}

	if p.IsLiquidated(price) {
		pm.logger.Warn().
			Float64("price", price).
			Float64("pnl", p.UnrealizedPnL(price)).
			Msg("Position liquidated")
		return pm.closeLocked(price, CloseLiquidation, at), nil
	}

	update := pm.trail.Evaluate(p.EntryPrice, p.ATR, p.StopLoss, price, p.IsTrailed)
	if update != nil {
		p.StopLoss = update.NewStopLoss
		p.IsTrailed = true
		pm.logger.Info().
			Float64("old_stop", update.OldStopLoss).
			Float64("new_stop", update.NewStopLoss).
			Msg("Stop moved to breakeven")
	}

	switch {
	case price <= p.StopLoss:
		return pm.closeLocked(price, CloseStopLoss, at), update
	case price >= p.TakeProfit:
		return pm.closeLocked(price, CloseTakeProfit, at), update
	}
	return nil, update
}

// Close realizes the open position at price
func (pm *PositionManager) Close(price float64, reason CloseReason, at int64) (*ClosedTrade, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.position == nil {
		return nil, ErrNoPosition
	}
	return pm.closeLocked(price, reason, at), nil
}

func (pm *PositionManager) closeLocked(price float64, reason CloseReason, at int64) *ClosedTrade {
	p := *pm.position
	pnl := p.UnrealizedPnL(price)

	pm.wallet.Balance += pnl
	pm.wallet.TotalPnL += pnl
	pm.position = nil

	trade := &ClosedTrade{
		Position:  p,
		ExitPrice: price,
		ExitTime:  at,
		Reason:    reason,
		PnL:       pnl,
		Result:    learning.ResultFromPnL(pnl),
		Balance:   pm.wallet.Balance,
	}

	pm.logger.Info().
		Str("reason", string(reason)).
		Float64("exit_price", price).
		Float64("pnl", pnl).
		Float64("balance", pm.wallet.Balance).
		Msg("Position closed")

	return trade
}

// Position returns a copy of the open position, or nil when flat
func (pm *PositionManager) Position() *Position {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.position == nil {
		return nil
	}
	p := *pm.position
	return &p
}

// HasPosition reports whether a position is open
func (pm *PositionManager) HasPosition() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.position != nil
}

// Wallet returns the current wallet
func (pm *PositionManager) Wallet() Wallet {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.wallet
}
