// Package metrics exposes engine counters and gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "adaptive_engine"

// Recorder owns the engine collectors on a private registry
type Recorder struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	signals      *prometheus.CounterVec
	trades       *prometheus.CounterVec
	tradePnL     prometheus.Histogram
	balance      prometheus.Gauge
	totalPnL     prometheus.Gauge
	positionOpen prometheus.Gauge
	running      prometheus.Gauge
	regime       *prometheus.GaugeVec
	indicators   *prometheus.GaugeVec
	persistErrs  *prometheus.CounterVec
}

// NewRecorder creates and registers all collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ticks evaluated after warmup",
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signal outcomes by stage",
		}, []string{"outcome"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Closed trades by reason and result",
		}, []string{"reason", "result"}),
		tradePnL: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_pnl",
			Help:      "Realized PnL per trade",
			Buckets:   []float64{-20, -10, -5, -2, -1, 0, 1, 2, 5, 10, 20},
		}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_balance",
			Help:      "Paper wallet balance",
		}),
		totalPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_total_pnl",
			Help:      "Cumulative realized PnL",
		}),
		positionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "position_open",
			Help:      "1 while a position is open",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the engine is running",
		}),
		regime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "regime",
			Help:      "1 for the current market regime",
		}, []string{"regime"}),
		indicators: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indicator",
			Help:      "Latest indicator values",
		}, []string{"name"}),
		persistErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed store writes by key",
		}, []string{"key"}),
	}

	r.registry.MustRegister(
		r.ticks, r.signals, r.trades, r.tradePnL, r.balance, r.totalPnL,
		r.positionOpen, r.running, r.regime, r.indicators, r.persistErrs,
		prometheus.NewGoCollector(),
	)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Tick counts one evaluated tick
func (r *Recorder) Tick() {
	r.ticks.Inc()
}

// Signal counts a signal outcome: found, skipped, taken or a reject reason
func (r *Recorder) Signal(outcome string) {
	r.signals.WithLabelValues(outcome).Inc()
}

// TradeClosed records a realized trade
func (r *Recorder) TradeClosed(reason, result string, pnl float64) {
	r.trades.WithLabelValues(reason, result).Inc()
	r.tradePnL.Observe(pnl)
}

// Wallet sets the wallet gauges
func (r *Recorder) Wallet(balance, totalPnL float64) {
	r.balance.Set(balance)
	r.totalPnL.Set(totalPnL)
}

// State sets the running and position gauges
func (r *Recorder) State(running, positionOpen bool) {
	r.running.Set(boolGauge(running))
	r.positionOpen.Set(boolGauge(positionOpen))
}

// Regime marks the current regime
func (r *Recorder) Regime(current string, all []string) {
	for _, name := range all {
		r.regime.WithLabelValues(name).Set(boolGauge(name == current))
	}
}

// Indicator sets one indicator gauge
func (r *Recorder) Indicator(name string, value float64) {
	r.indicators.WithLabelValues(name).Set(value)
}

// PersistError counts a failed store write
func (r *Recorder) PersistError(key string) {
	r.persistErrs.WithLabelValues(key).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
