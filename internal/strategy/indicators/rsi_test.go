package indicators

import (
	"math"
	"testing"
)

func TestRSISeries(t *testing.T) {
	// Deltas: +2, -1, +2, -1, +2 over a 5-period window.
	closes := []float64{100, 102, 101, 103, 102, 104}
	out := RSISeries(closes, 5)

	for i := 0; i < 5; i++ {
		if !math.IsNaN(out[i]) {
			t.Errorf("index %d: expected NaN before the window fills, got %f", i, out[i])
		}
	}
	// avgGain = 6/5, avgLoss = 2/5, RS = 3, RSI = 75.
	if got := out[5]; math.Abs(got-75.0) > tolerance {
		t.Errorf("expected RSI 75, got %f", got)
	}
}

func TestRSISeries_AllGains(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105}
	out := RSISeries(closes, 5)

	// No losses: the epsilon floor pushes RSI to the top of the range.
	if got := out[5]; got < 99.9 || got > 100 {
		t.Errorf("expected RSI near 100 for a loss-free window, got %f", got)
	}
}

func TestRSISeries_AllLosses(t *testing.T) {
	closes := []float64{105, 104, 103, 102, 101, 100}
	out := RSISeries(closes, 5)

	if got := out[5]; got < 0 || got > 0.1 {
		t.Errorf("expected RSI near 0 for a gain-free window, got %f", got)
	}
}

func TestRSISeries_Range(t *testing.T) {
	closes := []float64{100, 130, 70, 140, 60, 150, 50, 160, 40, 170}
	out := RSISeries(closes, 3)

	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if v < 0 || v > 100 {
			t.Errorf("index %d: RSI %f outside [0,100]", i, v)
		}
	}
}

func TestRSISeries_InsufficientData(t *testing.T) {
	out := RSISeries([]float64{100, 101}, 14)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Errorf("index %d: expected NaN for short series, got %f", i, v)
		}
	}
}
