// Package bot runs the paper-trading decision engine: it ingests candles,
// tunes itself to the market regime, and opens, trails and closes a single
// simulated long position while learning from every outcome.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"adaptive-trading-bot/internal/analysis"
	"adaptive-trading-bot/internal/circuit"
	"adaptive-trading-bot/internal/confluence"
	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/journal"
	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/logging"
	"adaptive-trading-bot/internal/market"
	"adaptive-trading-bot/internal/metrics"
	"adaptive-trading-bot/internal/orders"
	"adaptive-trading-bot/internal/patterns"
	"adaptive-trading-bot/internal/risk"
	"adaptive-trading-bot/internal/strategy"
)

const secondsPerDay = 86400

// Config holds engine configuration
type Config struct {
	Symbol          string                       `json:"symbol" yaml:"symbol" default:"BTCUSDT"`
	InitialBalance  float64                      `json:"initial_balance" yaml:"initial_balance" default:"27" validate:"gt=0"`
	BarSeconds      int64                        `json:"bar_seconds" yaml:"bar_seconds" default:"60" validate:"gt=0"`
	WarmupCandles   int                          `json:"warmup_candles" yaml:"warmup_candles" default:"70" validate:"gte=2"`
	BufferCapacity  int                          `json:"buffer_capacity" yaml:"buffer_capacity" default:"2000" validate:"gtefield=WarmupCandles"`
	JournalCapacity int                          `json:"journal_capacity" yaml:"journal_capacity" default:"5000" validate:"gt=0"`
	HTFCapacity     int                          `json:"htf_capacity" yaml:"htf_capacity" default:"200" validate:"gt=0"`
	HTFBiasPeriod   int                          `json:"htf_bias_period" yaml:"htf_bias_period" default:"50" validate:"gt=0"`
	VolatilityGuard bool                         `json:"volatility_guard" yaml:"volatility_guard"`
	Periods         strategy.Periods             `json:"periods" yaml:"periods"`
	Evaluator       confluence.Config            `json:"evaluator" yaml:"evaluator"`
	DevFlags        confluence.DevFlags          `json:"dev_flags" yaml:"dev_flags"`
	Risk            risk.Config                  `json:"risk" yaml:"risk"`
	Trailing        risk.TrailingConfig          `json:"trailing" yaml:"trailing"`
	CircuitBreaker  circuit.CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() Config {
	return Config{
		Symbol:          "BTCUSDT",
		InitialBalance:  27,
		BarSeconds:      learning.DefaultBarSeconds,
		WarmupCandles:   70,
		BufferCapacity:  market.DefaultBufferCapacity,
		JournalCapacity: journal.DefaultCapacity,
		HTFCapacity:     analysis.DefaultHTFCapacity,
		HTFBiasPeriod:   analysis.DefaultBiasPeriod,
		Periods:         strategy.DefaultPeriods(),
		Evaluator:       confluence.DefaultConfig(),
		Risk:            risk.DefaultConfig(),
		Trailing:        risk.DefaultTrailingConfig(),
		CircuitBreaker:  *circuit.DefaultCircuitBreakerConfig(),
	}
}

// Deps are the engine's collaborators. Only Store is required.
type Deps struct {
	Store    database.Store
	Clock    Clock
	Observer Observer
	Sink     events.Sink
	Metrics  *metrics.Recorder
	Logger   *logging.Logger
}

// Status is a point-in-time view for the API
type Status struct {
	Symbol          string                       `json:"symbol"`
	Running         bool                         `json:"running"`
	Wallet          orders.Wallet                `json:"wallet"`
	Position        *orders.Position             `json:"position"`
	Candles         int                          `json:"candles"`
	LastCandleTime  int64                        `json:"last_candle_time"`
	Regime          strategy.Regime              `json:"regime,omitempty"`
	HTFBias         string                       `json:"htf_bias,omitempty"`
	Indicators      strategy.Snapshot            `json:"indicators"`
	Params          strategy.Params              `json:"params"`
	RSIBaseline     float64                      `json:"rsi_baseline"`
	Trades24h       int                          `json:"trades_24h"`
	Stats           Stats                        `json:"stats"`
	VolatilityGuard bool                         `json:"volatility_guard"`
	DevFlags        confluence.DevFlags          `json:"dev_flags"`
	Breaker         circuit.Stats                `json:"circuit_breaker"`
	BreakerConfig   circuit.CircuitBreakerConfig `json:"circuit_breaker_config"`
}

// Engine owns the wallet, the position and the learning tables. Every
// entry point is serialized by one mutex.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	store    database.Store
	clock    Clock
	observer Observer
	sink     events.Sink
	metrics  *metrics.Recorder
	logger   *logging.Logger

	candles   *market.Buffer
	htf       *analysis.HigherTimeframe
	brain     *learning.Brain
	ranker    *learning.PatternRanker
	journal   *journal.Journal
	positions *orders.PositionManager
	sizer     *risk.Sizer
	evaluator *confluence.SignalEvaluator
	breaker   *circuit.CircuitBreaker

	running         bool
	volatilityGuard bool
	flags           confluence.DevFlags
	stats           Stats
	tradeTimes      []int64
	last            Heartbeat
}

// New wires an engine. Call Restore before feeding candles.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine requires a store")
	}
	if cfg.InitialBalance <= 0 || math.IsNaN(cfg.InitialBalance) {
		return nil, fmt.Errorf("invalid initial balance %v", cfg.InitialBalance)
	}
	if cfg.WarmupCandles < 2 {
		cfg.WarmupCandles = 2
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRecorder()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	logger := deps.Logger.WithComponent("engine").WithField("symbol", cfg.Symbol)

	brain := learning.NewBrain(deps.Store, deps.Logger)
	ranker := learning.NewPatternRanker(deps.Store, cfg.BarSeconds, deps.Logger)
	breakerCfg := cfg.CircuitBreaker

	e := &Engine{
		cfg:             cfg,
		store:           deps.Store,
		clock:           deps.Clock,
		observer:        deps.Observer,
		sink:            deps.Sink,
		metrics:         deps.Metrics,
		logger:          logger,
		candles:         market.NewBuffer(cfg.BufferCapacity),
		htf:             analysis.NewHigherTimeframe(cfg.HTFCapacity, analysis.TF4h),
		brain:           brain,
		ranker:          ranker,
		journal:         journal.New(deps.Store, cfg.JournalCapacity, deps.Logger),
		positions:       orders.NewPositionManager(cfg.InitialBalance, risk.NewBreakevenTrail(cfg.Trailing), logger.Zerolog()),
		sizer:           risk.NewSizer(cfg.Risk),
		evaluator:       confluence.NewSignalEvaluator(cfg.Evaluator, patterns.NewPatternDetector(patterns.DefaultBreakoutLookback), ranker, brain, deps.Logger),
		breaker:         circuit.NewCircuitBreaker(&breakerCfg),
		volatilityGuard: cfg.VolatilityGuard,
		flags:           cfg.DevFlags,
	}
	return e, nil
}

// Restore loads wallet, state and learning tables. Each record falls back
// to its default independently; the returned error only reports what was
// unreadable.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error

	wallet := orders.Wallet{Balance: e.cfg.InitialBalance}
	var stored storedWallet
	found, err := database.LoadJSON(ctx, e.store, database.KeyWallet, &stored)
	switch {
	case err != nil:
		e.logf(LevelWarn, "Wallet unreadable, using starting balance: %v", err)
		errs = append(errs, err)
	case !found:
	case stored.Balance == nil || math.IsNaN(*stored.Balance) || math.IsInf(*stored.Balance, 0):
		err := fmt.Errorf("%w: %s: missing or invalid balance", database.ErrCorrupt, database.KeyWallet)
		e.logf(LevelWarn, "Wallet unreadable, using starting balance: %v", err)
		errs = append(errs, err)
	default:
		wallet = orders.Wallet{Balance: *stored.Balance, TotalPnL: stored.TotalPnL, Timestamp: stored.Timestamp}
	}

	var state State
	if _, err := database.LoadJSON(ctx, e.store, database.KeyState, &state); err != nil {
		e.logf(LevelWarn, "Engine state unreadable, starting flat: %v", err)
		errs = append(errs, err)
		state = State{}
	}
	if state.Position != nil && !validPosition(state.Position) {
		e.logf(LevelWarn, "Discarding invalid persisted position")
		state.Position = nil
	}

	e.positions.Restore(wallet, state.Position)
	e.running = state.IsRunning

	if err := e.brain.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.ranker.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := e.journal.Load(ctx); err != nil {
		errs = append(errs, err)
	}

	var breaker circuit.Snapshot
	found, err = database.LoadJSON(ctx, e.store, database.KeyBreaker, &breaker)
	switch {
	case err != nil:
		e.logf(LevelWarn, "Circuit breaker state unreadable, starting closed: %v", err)
		errs = append(errs, err)
	case found:
		e.breaker.Restore(breaker)
	}

	e.metrics.Wallet(wallet.Balance, wallet.TotalPnL)
	e.metrics.State(e.running, state.Position != nil)

	e.logger.Info("Engine restored",
		"balance", wallet.Balance,
		"running", e.running,
		"position_open", state.Position != nil,
		"journal", e.journal.Len())

	return errors.Join(errs...)
}

// storedWallet tells an absent balance apart from a zero one
type storedWallet struct {
	Balance   *float64 `json:"balance"`
	TotalPnL  float64  `json:"totalPnL"`
	Timestamp int64    `json:"timestamp"`
}

func validPosition(p *orders.Position) bool {
	return p.Quantity > 0 && p.EntryPrice > 0 && p.Leverage >= orders.MinLeverage && p.Leverage <= orders.MaxLeverage
}

// Start enables trading and persists the flag
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = true
	e.logf(LevelInfo, "Engine started")
	e.publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{"symbol": e.cfg.Symbol}})
	return e.saveState(ctx)
}

// Stop disables trading and persists the flag. An open position stays open.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = false
	e.logf(LevelInfo, "Engine stopped")
	e.publish(events.Event{Type: events.EventBotStopped, Data: map[string]interface{}{"symbol": e.cfg.Symbol}})
	return e.saveState(ctx)
}

// OnCandle ingests one live candle update and runs a tick. Stale candles
// are ignored.
func (e *Engine) OnCandle(ctx context.Context, c market.Candle) error {
	if err := c.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.candles.Push(c) == market.UpdateIgnored {
		return nil
	}
	e.htf.Update(c)
	e.tick(ctx)
	return nil
}

// LoadHistory merges a historical batch into the window and rebuilds the
// higher timeframes. It does not tick. Invalid candles are dropped.
func (e *Engine) LoadHistory(ctx context.Context, batch []market.Candle) int {
	valid := make([]market.Candle, 0, len(batch))
	for _, c := range batch {
		if c.Validate() == nil {
			valid = append(valid, c)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.candles.Merge(valid)
	e.htf.Rebuild(e.candles.Snapshot())
	e.logger.Info("History loaded", "received", len(batch), "kept", n)
	return n
}

// Tick re-evaluates the current window
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tick(ctx)
}

func (e *Engine) tick(ctx context.Context) {
	if !e.running {
		return
	}

	window := e.candles.Snapshot()
	if len(window) < e.cfg.WarmupCandles {
		return
	}

	snap, series, ok := strategy.Compute(window, e.cfg.Periods)
	if !ok {
		e.logger.Debug("Indicators not ready", "candles", len(window))
		return
	}
	now := window[len(window)-1].Time

	regime := strategy.DetectRegime(snap.ADX, snap.ATR, series.ATR)
	guard := e.volatilityGuard || e.breaker.GuardActive(now)
	params := strategy.Tune(regime, guard)
	htfBias := e.htf.Bias(analysis.TF4h, snap.Price, e.cfg.HTFBiasPeriod)

	e.last = Heartbeat{
		Time:            now,
		Price:           snap.Price,
		Regime:          regime,
		HTFBias:         htfBias,
		Indicators:      snap,
		Params:          params,
		RSIBaseline:     strategy.RollingRSIBaseline(series.RSI),
		Trades24h:       e.trades24h(now),
		Stats:           e.stats,
		VolatilityGuard: guard,
	}
	e.emitHeartbeat(e.last)

	if e.positions.HasPosition() {
		e.manage(ctx, snap.Price, now)
		return
	}

	if ok, reason := e.breaker.CanTrade(now); !ok {
		e.logger.Debug("Entries blocked", "reason", reason)
		return
	}

	decision := e.evaluator.Evaluate(confluence.Input{
		Candles:  window,
		Snapshot: snap,
		Regime:   regime,
		Params:   params,
		HTFBias:  htfBias,
		Balance:  e.positions.Wallet().Balance,
		Time:     now,
	}, e.flags)

	if decision.Found {
		e.stats.Found++
		e.metrics.Signal("found")
	}
	if decision.Skipped {
		e.stats.Skipped++
		e.metrics.Signal("skipped")
	}
	if !decision.Approved {
		if decision.Found {
			e.metrics.Signal(string(decision.Reason))
		}
		return
	}

	e.open(ctx, decision, snap, regime, now)
}

func (e *Engine) open(ctx context.Context, d confluence.Decision, snap strategy.Snapshot, regime strategy.Regime, now int64) {
	wallet := e.positions.Wallet()
	leverage := e.sizer.Leverage(d.Rank, regime, snap.RSI)

	plan, err := e.sizer.Plan(snap.Price, snap.ATR, d.Params, wallet.Balance, leverage)
	if err != nil {
		e.logf(LevelWarn, "Cannot size %s: %v", d.Pattern, err)
		return
	}

	pos, err := e.positions.Open(orders.OpenRequest{
		Plan:        plan,
		ATR:         snap.ATR,
		RSI:         snap.RSI,
		MarketHash:  d.Hash,
		PatternName: string(d.Pattern),
		Rank:        d.Rank,
		Time:        now,
	})
	if err != nil {
		e.logf(LevelWarn, "Cannot open position: %v", err)
		return
	}

	e.stats.Taken++
	e.tradeTimes = append(e.tradeTimes, now)
	e.metrics.Signal("taken")

	e.logf(LevelInfo, "[SIGNAL] %s detected (Str:%d) entry %.4f lev %dx", d.Label(), d.Strength, pos.EntryPrice, pos.Leverage)
	logging.PositionContext(e.cfg.Symbol, pos.EntryPrice, pos.Quantity, pos.Leverage).
		Debug("Position opened", "pattern", pos.PatternName, "rank", pos.Rank, "hash", pos.MarketHash)
	e.emitMarker(Marker{Time: now, Side: events.SideBuy, Price: pos.EntryPrice, Label: fmt.Sprintf("LONG (%s)", regime)})
	e.publish(events.Event{
		Type: events.EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      e.cfg.Symbol,
			"side":        string(pos.Type),
			"entry_price": pos.EntryPrice,
			"quantity":    pos.Quantity,
			"leverage":    pos.Leverage,
			"stop_loss":   pos.StopLoss,
			"take_profit": pos.TakeProfit,
			"pattern":     pos.PatternName,
			"rank":        pos.Rank,
			"setup":       string(d.Setup),
			"strength":    d.Strength,
		},
	})

	if err := e.saveState(ctx); err != nil {
		e.logf(LevelError, "Failed to persist state: %v", err)
	}
}

func (e *Engine) manage(ctx context.Context, price float64, now int64) {
	trade, update := e.positions.Manage(price, now)

	if update != nil {
		e.logf(LevelInfo, "[TRAIL] Stop moved %.4f -> %.4f", update.OldStopLoss, update.NewStopLoss)
		if trade == nil {
			if err := e.saveState(ctx); err != nil {
				e.logf(LevelError, "Failed to persist state: %v", err)
			}
		}
	}

	if trade != nil {
		e.settle(ctx, trade)
	}
}

// settle learns from a closed trade and persists everything it touched
func (e *Engine) settle(ctx context.Context, trade *orders.ClosedTrade) {
	p := trade.Position
	level := LevelInfo
	if trade.Reason == orders.CloseLiquidation {
		level = LevelWarn
	}
	e.logf(level, "[%s] Closed %s at %.4f PnL %.4f (%s)", trade.Reason, p.PatternName, trade.ExitPrice, trade.PnL, trade.Result)

	if err := e.brain.Learn(ctx, p.MarketHash, trade.Result); err != nil {
		e.persistFailed(database.KeyBrain, err)
	}
	if err := e.ranker.Learn(ctx, p.PatternName, trade.Result, trade.PnL, trade.ExitTime); err != nil {
		e.persistFailed(database.KeyPatternBrain, err)
	}
	logging.PatternContext(p.PatternName, p.Rank).Debug("Pattern outcome recorded", "result", trade.Result, "pnl", trade.PnL)
	logging.TradeContext(e.cfg.Symbol, events.SideSell, p.Quantity, trade.ExitPrice).Debug("Trade settled", "reason", trade.Reason)

	entry := journal.Entry{
		Time:       trade.ExitTime,
		EntryTime:  p.EntryTime,
		Result:     trade.Result,
		PnL:        trade.PnL,
		Hash:       p.MarketHash,
		Pattern:    p.PatternName,
		Rank:       p.Rank,
		Reason:     string(trade.Reason),
		EntryPrice: p.EntryPrice,
		ExitPrice:  trade.ExitPrice,
		Quantity:   p.Quantity,
		Leverage:   p.Leverage,
		Balance:    trade.Balance,
	}
	if _, err := e.journal.Append(ctx, entry); err != nil {
		e.persistFailed(database.KeyJournal, err)
	}

	tripped := e.breaker.RecordTrade(trade.PnL, trade.ExitTime)
	if err := e.saveBreaker(ctx); err != nil {
		e.persistFailed(database.KeyBreaker, err)
	}
	if tripped {
		stats := e.breaker.GetStats()
		e.logf(LevelWarn, "[BREAKER] %s, volatility guard forced on", stats.TripReason)
		e.publish(events.Event{
			Type: events.EventCircuitBreakerUpdate,
			Data: map[string]interface{}{
				"state":              string(stats.State),
				"action":             "tripped",
				"reason":             stats.TripReason,
				"consecutive_losses": stats.ConsecutiveLosses,
			},
		})
	}

	e.emitMarker(Marker{Time: trade.ExitTime, Side: events.SideSell, Price: trade.ExitPrice, Label: fmt.Sprintf("PnL: %.2f", trade.PnL)})
	e.publish(events.Event{
		Type: events.EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":      e.cfg.Symbol,
			"entry_price": p.EntryPrice,
			"exit_price":  trade.ExitPrice,
			"quantity":    p.Quantity,
			"pnl":         trade.PnL,
			"result":      string(trade.Result),
			"reason":      string(trade.Reason),
			"pattern":     p.PatternName,
		},
	})

	wallet := e.positions.Wallet()
	e.metrics.TradeClosed(string(trade.Reason), string(trade.Result), trade.PnL)
	e.metrics.Wallet(wallet.Balance, wallet.TotalPnL)

	if err := e.saveWallet(ctx); err != nil {
		e.logf(LevelError, "Failed to persist wallet: %v", err)
	}
	if err := e.saveState(ctx); err != nil {
		e.logf(LevelError, "Failed to persist state: %v", err)
	}
}

func (e *Engine) trades24h(now int64) int {
	kept := e.tradeTimes[:0]
	for _, t := range e.tradeTimes {
		if now-t < secondsPerDay {
			kept = append(kept, t)
		}
	}
	e.tradeTimes = kept
	return len(kept)
}

func (e *Engine) saveWallet(ctx context.Context) error {
	wallet := e.positions.Wallet()
	wallet.Timestamp = e.clock.Now().UnixMilli()
	if err := database.SaveJSON(ctx, e.store, database.KeyWallet, wallet); err != nil {
		e.metrics.PersistError(database.KeyWallet)
		return err
	}
	return nil
}

func (e *Engine) saveState(ctx context.Context) error {
	state := State{Position: e.positions.Position(), IsRunning: e.running}
	wallet := e.positions.Wallet()

	e.metrics.State(state.IsRunning, state.Position != nil)
	e.observer.OnStateUpdate(StateUpdate{State: state, Wallet: wallet})
	e.publish(events.Event{
		Type: events.EventStateUpdate,
		Data: map[string]interface{}{
			"position":  state.Position,
			"isRunning": state.IsRunning,
			"balance":   wallet.Balance,
			"totalPnL":  wallet.TotalPnL,
		},
	})

	if err := database.SaveJSON(ctx, e.store, database.KeyState, state); err != nil {
		e.metrics.PersistError(database.KeyState)
		return err
	}
	return nil
}

func (e *Engine) saveBreaker(ctx context.Context) error {
	if !e.breaker.IsEnabled() {
		return nil
	}
	return database.SaveJSON(ctx, e.store, database.KeyBreaker, e.breaker.Snapshot())
}

func (e *Engine) persistFailed(key string, err error) {
	e.metrics.PersistError(key)
	e.logf(LevelError, "Failed to persist %s: %v", key, err)
	e.publish(events.NewErrorEvent("engine", "persist "+key, err))
}

func (e *Engine) logf(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelError:
		e.logger.Error(msg)
	case LevelWarn:
		e.logger.Warn(msg)
	case LevelDebug:
		e.logger.Debug(msg)
	default:
		e.logger.Info(msg)
	}
	e.observer.OnLog(level, msg)
	e.publish(events.NewLogEvent(level, msg))
}

func (e *Engine) emitMarker(m Marker) {
	e.observer.OnMarker(m)
	e.publish(events.NewMarkerEvent(m.Time, m.Side, m.Price, m.Label))
}

func (e *Engine) emitHeartbeat(h Heartbeat) {
	e.metrics.Tick()
	e.metrics.Regime(string(h.Regime), []string{
		string(strategy.RegimeTrending), string(strategy.RegimeRanging),
		string(strategy.RegimeVolatile), string(strategy.RegimeNormal),
	})
	e.metrics.Indicator("rsi", h.Indicators.RSI)
	e.metrics.Indicator("adx", h.Indicators.ADX)
	e.metrics.Indicator("atr", h.Indicators.ATR)

	e.observer.OnHeartbeat(h)
	e.publish(events.Event{
		Type: events.EventHeartbeat,
		Data: map[string]interface{}{
			"time":             h.Time,
			"price":            h.Price,
			"regime":           string(h.Regime),
			"htf_bias":         h.HTFBias,
			"rsi":              h.Indicators.RSI,
			"ema":              h.Indicators.EMA,
			"adx":              h.Indicators.ADX,
			"atr":              h.Indicators.ATR,
			"macd_histogram":   h.Indicators.MACDHistogram,
			"params":           h.Params,
			"rsi_baseline":     h.RSIBaseline,
			"trades_24h":       h.Trades24h,
			"stats":            h.Stats,
			"volatility_guard": h.VolatilityGuard,
		},
	})
}

func (e *Engine) publish(event events.Event) {
	if e.sink == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.clock.Now()
	}
	e.sink.Publish(event)
}

// Status returns the engine snapshot
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	last, _ := e.candles.Last()
	return Status{
		Symbol:          e.cfg.Symbol,
		Running:         e.running,
		Wallet:          e.positions.Wallet(),
		Position:        e.positions.Position(),
		Candles:         e.candles.Len(),
		LastCandleTime:  last.Time,
		Regime:          e.last.Regime,
		HTFBias:         e.last.HTFBias,
		Indicators:      e.last.Indicators,
		Params:          e.last.Params,
		RSIBaseline:     e.last.RSIBaseline,
		Trades24h:       e.trades24h(last.Time),
		Stats:           e.stats,
		VolatilityGuard: e.volatilityGuard,
		DevFlags:        e.flags,
		Breaker:         e.breaker.GetStats(),
		BreakerConfig:   e.breaker.GetConfig(),
	}
}

// SetVolatilityGuard forces the wide-stop parameters on or off
func (e *Engine) SetVolatilityGuard(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volatilityGuard = on
	e.logf(LevelInfo, "Volatility guard set to %v", on)
}

// SetDevFlags replaces the gate bypass flags
func (e *Engine) SetDevFlags(flags confluence.DevFlags) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flags = flags
	e.logf(LevelInfo, "Dev flags updated: fee=%v htf=%v brain=%v", flags.SkipFeeGuard, flags.SkipHTFFilter, flags.SkipBrainVeto)
}

// BreakerUpdate changes the breaker limits. Zero fields keep their value.
type BreakerUpdate struct {
	Enabled              *bool   `json:"enabled"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" binding:"gte=0"`
	CooldownMinutes      int     `json:"cooldown_minutes" binding:"gte=0"`
	MaxDailyLoss         float64 `json:"max_daily_loss" binding:"gte=0"`
	MaxDailyTrades       int     `json:"max_daily_trades" binding:"gte=0"`
}

// ConfigureCircuitBreaker applies an update and returns the resulting limits
func (e *Engine) ConfigureCircuitBreaker(update BreakerUpdate) circuit.CircuitBreakerConfig {
	e.mu.Lock()
	defer e.mu.Unlock()

	if update.Enabled != nil {
		e.breaker.SetEnabled(*update.Enabled)
	}
	e.breaker.UpdateConfig(&circuit.CircuitBreakerConfig{
		MaxConsecutiveLosses: update.MaxConsecutiveLosses,
		CooldownMinutes:      update.CooldownMinutes,
		MaxDailyLoss:         update.MaxDailyLoss,
		MaxDailyTrades:       update.MaxDailyTrades,
	})
	cfg := e.breaker.GetConfig()
	e.logf(LevelInfo, "Circuit breaker configured: enabled=%v losses=%d cooldown=%dm", cfg.Enabled, cfg.MaxConsecutiveLosses, cfg.CooldownMinutes)
	return cfg
}

// ResetCircuitBreaker closes the breaker and persists its state
func (e *Engine) ResetCircuitBreaker(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.breaker.ForceReset()
	e.logf(LevelInfo, "Circuit breaker reset")
	e.publish(events.Event{
		Type: events.EventCircuitBreakerUpdate,
		Data: map[string]interface{}{
			"state":  string(e.breaker.GetState()),
			"action": "reset",
		},
	})
	if err := e.saveBreaker(ctx); err != nil {
		e.persistFailed(database.KeyBreaker, err)
		return err
	}
	return nil
}

// Journal returns up to limit recent trades
func (e *Engine) Journal(limit int) []journal.Entry {
	return e.journal.Entries(limit)
}

// Brain exposes the market memory
func (e *Engine) Brain() *learning.Brain {
	return e.brain
}

// Ranker exposes the pattern ranker
func (e *Engine) Ranker() *learning.PatternRanker {
	return e.ranker
}

// PatternView is one pattern's stats with its current rank
type PatternView struct {
	learning.PatternStat
	Rank    learning.Rank `json:"rank"`
	WinRate float64       `json:"win_rate"`
}

// Patterns ranks every known pattern at the latest candle time
func (e *Engine) Patterns() map[string]PatternView {
	last, _ := e.candles.Last()

	out := make(map[string]PatternView)
	for name, stat := range e.ranker.Snapshot() {
		out[name] = PatternView{
			PatternStat: stat,
			Rank:        e.ranker.Rank(name, last.Time),
			WinRate:     stat.WinRate(),
		}
	}
	return out
}

// Memory returns the market memory table
func (e *Engine) Memory() map[string]learning.MemoryEntry {
	return e.brain.Snapshot()
}
