package indicators

import (
	"math"

	"stockpilot/internal/domain"
)

// MinDataPoints is the minimum number of valid daily closes required before
// any signal snapshot is computed. Below this the ticker is skipped for the
// cycle rather than scored on thin data.
const MinDataPoints = 50

// Closes extracts the close series from price points, oldest first.
func Closes(points []domain.PricePoint) []float64 {
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Close
	}
	return closes
}

// FillGaps repairs non-positive or NaN closes by carrying the previous valid
// value forward, then filling any remaining leading gap backward from the
// first valid value. A series with no valid value at all is returned as-is.
func FillGaps(closes []float64) []float64 {
	out := make([]float64, len(closes))
	copy(out, closes)

	last := math.NaN()
	for i, v := range out {
		if v > 0 && !math.IsNaN(v) {
			last = v
		} else if !math.IsNaN(last) {
			out[i] = last
		} else {
			out[i] = math.NaN()
		}
	}
	// Backward fill the leading gap.
	next := math.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if !math.IsNaN(out[i]) && out[i] > 0 {
			next = out[i]
		} else if !math.IsNaN(next) {
			out[i] = next
		}
	}
	return out
}

// validCount counts usable values in the series.
func validCount(closes []float64) int {
	n := 0
	for _, v := range closes {
		if v > 0 && !math.IsNaN(v) {
			n++
		}
	}
	return n
}
