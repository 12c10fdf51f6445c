package market

import (
	"errors"
	"math"
	"testing"
)

func TestBufferPush(t *testing.T) {
	b := NewBuffer(3)

	if got := b.Push(Candle{Time: 60, Close: 1}); got != UpdateAppended {
		t.Fatalf("first push = %v, want appended", got)
	}
	if got := b.Push(Candle{Time: 60, Close: 2}); got != UpdateReplaced {
		t.Fatalf("same timestamp = %v, want replaced", got)
	}
	if last, _ := b.Last(); last.Close != 2 {
		t.Errorf("replaced close = %v, want 2", last.Close)
	}
	if got := b.Push(Candle{Time: 0, Close: 9}); got != UpdateIgnored {
		t.Errorf("older push = %v, want ignored", got)
	}

	b.Push(Candle{Time: 120})
	b.Push(Candle{Time: 180})
	b.Push(Candle{Time: 240})

	if b.Len() != 3 {
		t.Fatalf("len = %d, want capacity 3", b.Len())
	}
	if first := b.Snapshot()[0]; first.Time != 120 {
		t.Errorf("oldest retained = %d, want 120", first.Time)
	}
}

func TestBufferMerge(t *testing.T) {
	b := NewBuffer(10)
	b.Push(Candle{Time: 180, Close: 3})

	n := b.Merge([]Candle{
		{Time: 120, Close: 2},
		{Time: 60, Close: 1},
		{Time: 180, Close: 30},
	})
	if n != 3 {
		t.Fatalf("merged len = %d, want 3", n)
	}

	got := b.Snapshot()
	for i, want := range []int64{60, 120, 180} {
		if got[i].Time != want {
			t.Errorf("candle %d time = %d, want %d", i, got[i].Time, want)
		}
	}
	if got[2].Close != 30 {
		t.Errorf("batch should win on collision, close = %v", got[2].Close)
	}
}

func TestCandleGeometry(t *testing.T) {
	c := Candle{Open: 10, High: 15, Low: 5, Close: 12}

	if c.Body() != 2 || c.UpperWick() != 3 || c.LowerWick() != 5 || c.Range() != 10 {
		t.Errorf("unexpected geometry: body=%v upper=%v lower=%v range=%v",
			c.Body(), c.UpperWick(), c.LowerWick(), c.Range())
	}
	if !c.IsBullish() || c.IsBearish() {
		t.Error("Should be bullish")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		candle  Candle
		wantErr bool
	}{
		{"valid", Candle{Time: 60, Open: 10, High: 11, Low: 9, Close: 10.5}, false},
		{"zero price", Candle{Time: 60, Open: 0, High: 11, Low: 9, Close: 10.5}, true},
		{"high below close", Candle{Time: 60, Open: 10, High: 10.2, Low: 9, Close: 10.5}, true},
		{"low above open", Candle{Time: 60, Open: 10, High: 11, Low: 10.1, Close: 10.5}, true},
		{"nan", Candle{Time: 60, Open: 10, High: 11, Low: 9, Close: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candle.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCandle) {
				t.Errorf("error should wrap ErrInvalidCandle, got %v", err)
			}
		})
	}
}
