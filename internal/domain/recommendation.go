package domain

// RecommendationCandidate is a scored, qualified buy candidate.
type RecommendationCandidate struct {
	Ticker          string
	StockName       string
	Exchange        Exchange
	CompositeScore  float64
	RiseProbability float64
	Sentiment       *float64 // nil when no sentiment data exists
	ArticleCount    int
	Signals         TechnicalSignals
	IsLeveraged     bool
}

// SellDecision is the single decision the sell engine emits for a position
// in one cycle.
type SellDecision struct {
	Ticker        string
	StockName     string
	Exchange      Exchange
	Priority      SellPriority
	Kind          SellKind
	Reasons       []string
	Quantity      int64 // Shares to sell; full position except partial stages
	Stage         int   // Partial-profit stage, 0 otherwise
	ChangePercent float64
	CurrentPrice  float64
}
