package risk

// TrailingConfig holds breakeven trail configuration, in ATR units
type TrailingConfig struct {
	ActivationATR float64 `json:"activation_atr" yaml:"activation_atr" default:"0.8"` // profit distance that arms the trail
	LockATR       float64 `json:"lock_atr" yaml:"lock_atr" default:"0.1"`             // profit locked above entry
}

// DefaultTrailingConfig returns the standard breakeven trail
func DefaultTrailingConfig() TrailingConfig {
	return TrailingConfig{ActivationATR: 0.8, LockATR: 0.1}
}

// StopUpdate represents a stop loss update
type StopUpdate struct {
	OldStopLoss  float64 `json:"old_stop_loss"`
	NewStopLoss  float64 `json:"new_stop_loss"`
	TriggerPrice float64 `json:"trigger_price"`
}

// BreakevenTrail moves the stop of a long position above entry once, after
// price has run far enough
type BreakevenTrail struct {
	config TrailingConfig
}

// NewBreakevenTrail creates a trail
func NewBreakevenTrail(config TrailingConfig) *BreakevenTrail {
	return &BreakevenTrail{config: config}
}

// Evaluate returns the stop move for a long, or nil. A position that has
// already trailed never trails again.
func (t *BreakevenTrail) Evaluate(entry, atr, stopLoss, price float64, trailed bool) *StopUpdate {
	if trailed {
		return nil
	}
	if price < entry+t.config.ActivationATR*atr {
		return nil
	}
	return &StopUpdate{
		OldStopLoss:  stopLoss,
		NewStopLoss:  entry + t.config.LockATR*atr,
		TriggerPrice: price,
	}
}
