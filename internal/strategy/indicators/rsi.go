package indicators

import "math"

// lossEpsilon floors the average loss so a loss-free window yields RSI near
// 100 instead of a division by zero.
const lossEpsilon = 1e-10

// RSISeries computes the relative strength index using simple rolling means
// of gains and losses over the period (not Wilder smoothing). The first
// `period` indexes are NaN; outputs are clamped to [0, 100].
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) <= period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	gainSum, lossSum := 0.0, 0.0
	for i := 1; i < len(closes); i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}
		if i >= period {
			avgGain := gainSum / float64(period)
			avgLoss := lossSum / float64(period)
			if avgLoss < lossEpsilon {
				avgLoss = lossEpsilon
			}
			rs := avgGain / avgLoss
			rsi := 100 - 100/(1+rs)
			out[i] = math.Min(100, math.Max(0, rsi))
		}
	}
	return out
}
