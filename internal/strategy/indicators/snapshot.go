package indicators

import (
	"fmt"
	"math"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// SnapshotConfig holds the periods and RSI thresholds for a signal snapshot.
type SnapshotConfig struct {
	ShortSMAPeriod  int
	LongSMAPeriod   int
	RSIPeriod       int
	RSIBuyThreshold float64 // RSI below this counts as a buy signal
	RSIOverbought   float64 // RSI above this counts as a sell signal
}

// DefaultSnapshotConfig returns the standard 20/50 SMA, RSI-14 setup.
func DefaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		ShortSMAPeriod:  20,
		LongSMAPeriod:   50,
		RSIPeriod:       14,
		RSIBuyThreshold: 50,
		RSIOverbought:   70,
	}
}

// Snapshot fills gaps in the close series and computes the latest indicator
// values plus the derived cross/momentum booleans. Returns
// ports.ErrInsufficientData when fewer than MinDataPoints valid closes exist
// or the long SMA is still undefined at the last index.
func Snapshot(closes []float64, cfg SnapshotConfig) (domain.TechnicalSignals, error) {
	var sig domain.TechnicalSignals

	filled := FillGaps(closes)
	if n := validCount(filled); n < MinDataPoints {
		return sig, fmt.Errorf("%w: %d of %d required points", ports.ErrInsufficientData, n, MinDataPoints)
	}

	last := len(filled) - 1
	smaShort := SMASeries(filled, cfg.ShortSMAPeriod)
	smaLong := SMASeries(filled, cfg.LongSMAPeriod)
	rsi := RSISeries(filled, cfg.RSIPeriod)
	macd, signal := MACDSeries(filled)

	if math.IsNaN(smaLong[last]) || math.IsNaN(rsi[last]) {
		return sig, fmt.Errorf("%w: indicators undefined at latest close", ports.ErrInsufficientData)
	}

	sig.SMAShort = smaShort[last]
	sig.SMALong = smaLong[last]
	sig.RSI = rsi[last]
	sig.MACD = macd[last]
	sig.MACDSignal = signal[last]

	// The cross and momentum booleans are complements: an exactly equal
	// pair reads as the bearish side.
	sig.GoldenCross = sig.SMAShort > sig.SMALong
	sig.DeadCross = !sig.GoldenCross
	sig.Oversold = sig.RSI < cfg.RSIBuyThreshold
	sig.Overbought = sig.RSI > cfg.RSIOverbought
	sig.MACDBuy = sig.MACD > sig.MACDSignal
	sig.MACDSell = !sig.MACDBuy
	return sig, nil
}
