package domain

import "time"

// TechnicalSignals is the indicator snapshot for one ticker at evaluation
// time: latest values plus the derived buy/sell booleans.
type TechnicalSignals struct {
	SMAShort   float64 // 20-day simple moving average
	SMALong    float64 // 50-day simple moving average
	RSI        float64
	MACD       float64
	MACDSignal float64

	GoldenCross bool // SMAShort > SMALong
	DeadCross   bool // SMAShort < SMALong
	Oversold    bool // RSI below the buy threshold
	Overbought  bool // RSI above the sell threshold
	MACDBuy     bool // MACD > Signal
	MACDSell    bool // MACD < Signal
}

// BuySignalCount counts the active buy-side signals.
func (s TechnicalSignals) BuySignalCount() int {
	n := 0
	if s.GoldenCross {
		n++
	}
	if s.Oversold {
		n++
	}
	if s.MACDBuy {
		n++
	}
	return n
}

// SellSignalCount counts the active sell-side signals.
func (s TechnicalSignals) SellSignalCount() int {
	n := 0
	if s.DeadCross {
		n++
	}
	if s.Overbought {
		n++
	}
	if s.MACDSell {
		n++
	}
	return n
}

// PricePoint is one daily close in a price series.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// SentimentScore is the aggregated news sentiment for a ticker.
type SentimentScore struct {
	Ticker       string
	Score        float64 // [-1, 1]
	ArticleCount int
	Date         time.Time
}
