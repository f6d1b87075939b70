package indicators

// MACD parameters follow the conventional 12/26/9 setup.
const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// MACDSeries computes MACD (EMA12 - EMA26) and its signal line (EMA9 of the
// MACD series). Both slices are defined at every index.
func MACDSeries(closes []float64) (macd, signal []float64) {
	fast := EMASeries(closes, macdFastPeriod)
	slow := EMASeries(closes, macdSlowPeriod)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	signal = EMASeries(macd, macdSignalPeriod)
	return macd, signal
}
