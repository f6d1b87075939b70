package indicators

import "math"

// SMASeries computes the simple moving average over a trailing window.
// Values before a full window are NaN, matching a rolling mean with a
// minimum window size of period.
func SMASeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) < period {
		return out
	}

	sum := 0.0
	for i, v := range closes {
		sum += v
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMASeries computes the exponential moving average seeded with the first
// value, k = 2/(period+1). Every index is defined; the early values simply
// carry little smoothing history.
func EMASeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 || period <= 0 {
		return out
	}

	k := 2.0 / float64(period+1)
	ema := closes[0]
	out[0] = ema
	for i := 1; i < len(closes); i++ {
		ema = closes[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}
