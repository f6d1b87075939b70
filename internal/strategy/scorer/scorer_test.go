package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockpilot/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func allBuySignals() domain.TechnicalSignals {
	return domain.TechnicalSignals{GoldenCross: true, Oversold: true, MACDBuy: true}
}

func TestScore_Formula(t *testing.T) {
	s := New(DefaultConfig())

	in := Input{
		Ticker:          "AAPL",
		Signals:         allBuySignals(),
		Sentiment:       floatPtr(0.5),
		RiseProbability: 0.8,
	}
	// 0.3*0.8 + 0.4*(1.5+1.0+1.0) + 0.3*0.5 = 0.24 + 1.4 + 0.15
	assert.InDelta(t, 1.79, s.Score(in), 1e-9)
}

func TestScore_NegativeSentimentClamped(t *testing.T) {
	s := New(DefaultConfig())

	in := Input{Ticker: "AAPL", Signals: allBuySignals(), RiseProbability: 0.5}
	base := s.Score(in)

	in.Sentiment = floatPtr(-0.9)
	assert.Equal(t, base, s.Score(in), "negative sentiment must not subtract from the score")
}

func TestScore_ShortInterestAdjustment(t *testing.T) {
	s := New(DefaultConfig())

	in := Input{Ticker: "GME", Signals: allBuySignals(), RiseProbability: 0.5}
	base := s.Score(in)
	in.ShortInterestAdj = -0.2
	assert.InDelta(t, base-0.2, s.Score(in), 1e-9)
}

func TestQualifies(t *testing.T) {
	s := New(DefaultConfig())
	twoSignals := domain.TechnicalSignals{GoldenCross: true, MACDBuy: true}

	tests := []struct {
		name      string
		signals   domain.TechnicalSignals
		sentiment *float64
		want      bool
	}{
		{name: "three signals always qualify", signals: allBuySignals(), want: true},
		{name: "two signals fail without sentiment", signals: twoSignals, want: false},
		{name: "two signals pass with strong sentiment", signals: twoSignals, sentiment: floatPtr(0.2), want: true},
		{name: "two signals fail with weak sentiment", signals: twoSignals, sentiment: floatPtr(0.1), want: false},
		{name: "one signal fails even with strong sentiment", signals: domain.TechnicalSignals{GoldenCross: true}, sentiment: floatPtr(0.9), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Ticker: "X", Signals: tt.signals, Sentiment: tt.sentiment}
			assert.Equal(t, tt.want, s.Qualifies(in))
		})
	}
}

func TestRank_OrderAndTruncate(t *testing.T) {
	s := New(DefaultConfig())
	cfg := domain.DefaultTradingConfig()
	cfg.MinCompositeScore = 0
	cfg.MaxStocksToBuy = 2
	cfg.UseSentiment = false

	inputs := []Input{
		{Ticker: "BBB", Signals: allBuySignals(), RiseProbability: 0.5},
		{Ticker: "AAA", Signals: allBuySignals(), RiseProbability: 0.5},
		{Ticker: "CCC", Signals: allBuySignals(), RiseProbability: 0.9},
	}

	got := s.Rank(inputs, cfg, nil)
	assert.Len(t, got, 2)
	assert.Equal(t, "CCC", got[0].Ticker, "highest score first")
	assert.Equal(t, "AAA", got[1].Ticker, "ties break by ticker ascending")
}

func TestRank_Deterministic(t *testing.T) {
	s := New(DefaultConfig())
	cfg := domain.DefaultTradingConfig()
	cfg.MinCompositeScore = 0
	cfg.UseSentiment = false

	inputs := []Input{
		{Ticker: "BBB", Signals: allBuySignals(), RiseProbability: 0.5},
		{Ticker: "AAA", Signals: allBuySignals(), RiseProbability: 0.5},
	}
	reversed := []Input{inputs[1], inputs[0]}

	first := s.Rank(inputs, cfg, nil)
	second := s.Rank(reversed, cfg, nil)
	assert.Equal(t, first, second, "ranking must not depend on input order")
}

func TestRank_ExcludesHeld(t *testing.T) {
	s := New(DefaultConfig())
	cfg := domain.DefaultTradingConfig()
	cfg.MinCompositeScore = 0
	cfg.UseSentiment = false

	inputs := []Input{
		{Ticker: "AAPL", Signals: allBuySignals(), RiseProbability: 0.5},
		{Ticker: "MSFT", Signals: allBuySignals(), RiseProbability: 0.5},
	}
	held := map[string]bool{"AAPL": true}

	cfg.AllowBuyExisting = false
	got := s.Rank(inputs, cfg, held)
	assert.Len(t, got, 1)
	assert.Equal(t, "MSFT", got[0].Ticker)

	cfg.AllowBuyExisting = true
	got = s.Rank(inputs, cfg, held)
	assert.Len(t, got, 2)
}

func TestRank_FiltersAndDeduplicates(t *testing.T) {
	s := New(DefaultConfig())
	cfg := domain.DefaultTradingConfig()
	cfg.MinCompositeScore = 1.0
	cfg.MinSentimentScore = 0.15

	inputs := []Input{
		// Qualified, strong sentiment, high score.
		{Ticker: "AAPL", Signals: allBuySignals(), Sentiment: floatPtr(0.3), RiseProbability: 0.5},
		// Duplicate ticker, ignored.
		{Ticker: "AAPL", Signals: allBuySignals(), Sentiment: floatPtr(0.9), RiseProbability: 0.9},
		// Sentiment below the configured minimum.
		{Ticker: "MSFT", Signals: allBuySignals(), Sentiment: floatPtr(0.05), RiseProbability: 0.5},
		// Not enough technical signals.
		{Ticker: "NVDA", Signals: domain.TechnicalSignals{MACDBuy: true}, Sentiment: floatPtr(0.9), RiseProbability: 0.9},
		// Score below MinCompositeScore: no signals contribute.
		{Ticker: "INTC", Signals: allBuySignals(), Sentiment: floatPtr(0.2), RiseProbability: 0.0},
	}
	cfg.MinCompositeScore = 1.5

	got := s.Rank(inputs, cfg, nil)
	assert.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.InDelta(t, 0.3*0.5+0.4*3.5+0.3*0.3, got[0].CompositeScore, 1e-9)
}
