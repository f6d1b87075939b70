package scorer

import (
	"math"
	"sort"

	"stockpilot/internal/domain"
)

// Config holds the composite-score weights and qualification thresholds.
type Config struct {
	RiseWeight      float64 // Weight of the rise probability term
	TechWeight      float64 // Weight of the weighted technical-signal sum
	SentimentWeight float64 // Weight of the clamped sentiment term

	GoldenCrossWeight float64
	OversoldWeight    float64
	MACDBuyWeight     float64

	// Sentiment at or above this relaxes the technical qualification from
	// RequiredSignals to RelaxedSignals.
	SentimentRelaxThreshold float64
	RequiredSignals         int
	RelaxedSignals          int
}

// DefaultConfig returns the production weights.
func DefaultConfig() Config {
	return Config{
		RiseWeight:              0.3,
		TechWeight:              0.4,
		SentimentWeight:         0.3,
		GoldenCrossWeight:       1.5,
		OversoldWeight:          1.0,
		MACDBuyWeight:           1.0,
		SentimentRelaxThreshold: 0.15,
		RequiredSignals:         3,
		RelaxedSignals:          2,
	}
}

// Input is one ticker's research snapshot entering the scorer.
type Input struct {
	Ticker           string
	StockName        string
	Exchange         domain.Exchange
	Signals          domain.TechnicalSignals
	Sentiment        *float64 // nil when no sentiment data exists
	ArticleCount     int
	RiseProbability  float64
	ShortInterestAdj float64 // Optional additive adjustment, usually 0
	IsLeveraged      bool
}

// Scorer turns research inputs into a ranked, qualified candidate list.
type Scorer struct {
	cfg Config
}

func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the composite score. Negative sentiment is clamped to zero
// so bad news never subtracts from the technical case; it only fails to add.
func (s *Scorer) Score(in Input) float64 {
	tech := 0.0
	if in.Signals.GoldenCross {
		tech += s.cfg.GoldenCrossWeight
	}
	if in.Signals.Oversold {
		tech += s.cfg.OversoldWeight
	}
	if in.Signals.MACDBuy {
		tech += s.cfg.MACDBuyWeight
	}

	sentiment := 0.0
	if in.Sentiment != nil {
		sentiment = math.Max(*in.Sentiment, 0)
	}

	return s.cfg.RiseWeight*in.RiseProbability +
		s.cfg.TechWeight*tech +
		s.cfg.SentimentWeight*sentiment +
		in.ShortInterestAdj
}

// Qualifies applies the technical-signal gate: strong sentiment lowers the
// required signal count, missing or weak sentiment demands the full set.
func (s *Scorer) Qualifies(in Input) bool {
	required := s.cfg.RequiredSignals
	if in.Sentiment != nil && *in.Sentiment >= s.cfg.SentimentRelaxThreshold {
		required = s.cfg.RelaxedSignals
	}
	return in.Signals.BuySignalCount() >= required
}

// Rank scores, filters and orders the inputs into the final candidate list:
// deduplicated by ticker, held tickers excluded unless allowed, thresholds
// from the trading config applied, sorted by score descending with ticker
// ascending as the tiebreak, truncated to MaxStocksToBuy.
func (s *Scorer) Rank(inputs []Input, cfg *domain.TradingConfig, held map[string]bool) []*domain.RecommendationCandidate {
	seen := make(map[string]bool, len(inputs))
	candidates := make([]*domain.RecommendationCandidate, 0, len(inputs))

	for _, in := range inputs {
		if in.Ticker == "" || seen[in.Ticker] {
			continue
		}
		seen[in.Ticker] = true

		if held[in.Ticker] && !cfg.AllowBuyExisting {
			continue
		}
		if !s.Qualifies(in) {
			continue
		}
		if cfg.UseSentiment && in.Sentiment != nil && *in.Sentiment < cfg.MinSentimentScore {
			continue
		}
		score := s.Score(in)
		if score < cfg.MinCompositeScore {
			continue
		}

		candidates = append(candidates, &domain.RecommendationCandidate{
			Ticker:          in.Ticker,
			StockName:       in.StockName,
			Exchange:        in.Exchange,
			CompositeScore:  score,
			RiseProbability: in.RiseProbability,
			Sentiment:       in.Sentiment,
			ArticleCount:    in.ArticleCount,
			Signals:         in.Signals,
			IsLeveraged:     in.IsLeveraged,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CompositeScore != candidates[j].CompositeScore {
			return candidates[i].CompositeScore > candidates[j].CompositeScore
		}
		return candidates[i].Ticker < candidates[j].Ticker
	})

	if cfg.MaxStocksToBuy > 0 && len(candidates) > cfg.MaxStocksToBuy {
		candidates = candidates[:cfg.MaxStocksToBuy]
	}
	return candidates
}
