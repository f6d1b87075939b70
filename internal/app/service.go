package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
	"stockpilot/internal/sell"
	"stockpilot/internal/strategy/indicators"
	"stockpilot/internal/strategy/scorer"
	"stockpilot/internal/trailing"
)

const defaultLookbackDays = 120

// SizingPolicy decides how many shares to buy given the remaining cash, the
// per-stock budget and the current price. Returning 0 skips the candidate.
type SizingPolicy func(availableCash, maxAmountPerStock, price float64) int64

// DefaultSizing spends at most the per-stock budget, capped by cash.
func DefaultSizing(availableCash, maxAmountPerStock, price float64) int64 {
	if price <= 0 {
		return 0
	}
	budget := math.Min(availableCash, maxAmountPerStock)
	return int64(math.Floor(budget / price))
}

// TradingService orchestrates buy and sell cycles for one account. All
// state lives in the repositories; the only in-memory state is the pair of
// per-job running flags.
type TradingService struct {
	accountID   string
	logger      ports.Logger
	broker      ports.Brokerage
	market      ports.MarketData
	tracker     *trailing.Tracker
	sellEngine  *sell.Engine
	scorer      *scorer.Scorer
	partials    ports.PartialProfitRepository
	orders      ports.OrderLogRepository
	configs     ports.ConfigRepository
	watchlist   ports.WatchlistRepository
	notifier    ports.Notifier
	sizing      SizingPolicy
	snapshotCfg indicators.SnapshotConfig
	lookback    int
	now         func() time.Time

	mu          sync.Mutex
	buyRunning  bool
	sellRunning bool
}

// Config holds the dependencies for the trading service.
type Config struct {
	AccountID    string
	Logger       ports.Logger
	Broker       ports.Brokerage
	Market       ports.MarketData
	Tracker      *trailing.Tracker
	SellEngine   *sell.Engine
	Scorer       *scorer.Scorer
	Partials     ports.PartialProfitRepository
	Orders       ports.OrderLogRepository
	Configs      ports.ConfigRepository
	Watchlist    ports.WatchlistRepository
	Notifier     ports.Notifier // Defaults to a no-op
	Sizing       SizingPolicy   // Defaults to DefaultSizing
	SnapshotCfg  *indicators.SnapshotConfig
	LookbackDays int // Price history window, defaults to 120
	Now          func() time.Time
}

// NewTradingService creates the application service instance.
func NewTradingService(cfg Config) (*TradingService, error) {
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("account ID is required")
	}
	if cfg.Logger == nil || cfg.Broker == nil || cfg.Market == nil || cfg.Tracker == nil ||
		cfg.SellEngine == nil || cfg.Scorer == nil || cfg.Partials == nil || cfg.Orders == nil ||
		cfg.Configs == nil || cfg.Watchlist == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	sizing := cfg.Sizing
	if sizing == nil {
		sizing = DefaultSizing
	}
	snapCfg := indicators.DefaultSnapshotConfig()
	if cfg.SnapshotCfg != nil {
		snapCfg = *cfg.SnapshotCfg
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TradingService{
		accountID:   cfg.AccountID,
		logger:      cfg.Logger,
		broker:      cfg.Broker,
		market:      cfg.Market,
		tracker:     cfg.Tracker,
		sellEngine:  cfg.SellEngine,
		scorer:      cfg.Scorer,
		partials:    cfg.Partials,
		orders:      cfg.Orders,
		configs:     cfg.Configs,
		watchlist:   cfg.Watchlist,
		notifier:    notifier,
		sizing:      sizing,
		snapshotCfg: snapCfg,
		lookback:    lookback,
		now:         now,
	}, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyCycle(ctx context.Context, summary *ports.CycleSummary) {}
func (noopNotifier) NotifyOrder(ctx context.Context, entry *domain.OrderLog)      {}

// acquireJob claims the running flag for the job type. The caller must call
// the returned release func exactly once.
func (s *TradingService) acquireJob(jobType string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flag *bool
	switch jobType {
	case "buy":
		flag = &s.buyRunning
	case "sell":
		flag = &s.sellRunning
	default:
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
	if *flag {
		return nil, fmt.Errorf("%w: %s", ports.ErrCycleAlreadyRunning, jobType)
	}
	*flag = true
	return func() {
		s.mu.Lock()
		*flag = false
		s.mu.Unlock()
	}, nil
}

// GetConfig returns the stored trading config, falling back to the defaults
// when the account has none yet. The fallback is not persisted.
func (s *TradingService) GetConfig(ctx context.Context) (*domain.TradingConfig, error) {
	cfg, err := s.configs.FindConfig(ctx, s.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading config: %w", err)
	}
	if cfg == nil {
		return domain.DefaultTradingConfig(), nil
	}
	return cfg, nil
}

// UpdateConfig applies a partial update. An invalid patch is rejected with
// the offending field named and the stored config stays untouched.
func (s *TradingService) UpdateConfig(ctx context.Context, patch *domain.TradingConfigPatch) (*domain.TradingConfig, error) {
	current, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	next := current.Apply(patch)
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigInvalid, err)
	}
	next.UpdatedAt = s.now()
	if err := s.configs.UpsertConfig(ctx, s.accountID, next); err != nil {
		return nil, fmt.Errorf("failed to store trading config: %w", err)
	}
	s.logger.Info(ctx, "Trading config updated", map[string]interface{}{"account": s.accountID})
	return next, nil
}

// GetBuyCandidates evaluates the watchlist and returns the ranked candidate
// list without placing any orders.
func (s *TradingService) GetBuyCandidates(ctx context.Context) ([]*domain.RecommendationCandidate, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	held, err := s.heldTickers(ctx)
	if err != nil {
		return nil, err
	}
	inputs, _ := s.researchWatchlist(ctx, cfg)
	return s.scorer.Rank(inputs, cfg, held), nil
}

// GetSellCandidates evaluates held positions and returns the decisions the
// sell engine would act on, without placing any orders.
func (s *TradingService) GetSellCandidates(ctx context.Context) ([]*domain.SellDecision, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := s.broker.GetHoldings(ctx, s.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}
	contexts := s.buildSellContexts(ctx, positions)
	return s.sellEngine.Evaluate(ctx, contexts, cfg), nil
}

// BoughtToday reports whether the journal holds an executed buy for the
// given trading day. The scheduler uses it to keep the daily buy gate
// across restarts.
func (s *TradingService) BoughtToday(ctx context.Context, day time.Time) (bool, error) {
	count, err := s.orders.CountTodayBuys(ctx, s.accountID, day)
	if err != nil {
		return false, fmt.Errorf("failed to count today's buys: %w", err)
	}
	return count > 0, nil
}

// Status is a point-in-time snapshot of the account.
type Status struct {
	AccountID     string
	Enabled       bool
	PositionCount int
	HoldingsValue float64
	AvailableCash float64
	Candidates    []*domain.RecommendationCandidate
	RecentOrders  []*domain.OrderLog
	TrailingStops []*domain.TrailingStopRecord
}

// GetStatus assembles the account snapshot: holdings value, cash, current
// candidates and the last day of orders.
func (s *TradingService) GetStatus(ctx context.Context) (*Status, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := s.broker.GetHoldings(ctx, s.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}
	cash, err := s.broker.GetAvailableCash(ctx, s.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch available cash: %w", err)
	}

	value := 0.0
	for _, p := range positions {
		value += p.MarketValue()
	}

	candidates, err := s.GetBuyCandidates(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to build candidates for status, continuing without")
		candidates = nil
	}
	recent, err := s.GetRecentOrders(ctx, 1)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load recent orders for status, continuing without")
		recent = nil
	}
	stops, err := s.tracker.ActiveRecords(ctx, s.accountID)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load trailing stops for status, continuing without")
		stops = nil
	}

	return &Status{
		AccountID:     s.accountID,
		Enabled:       cfg.Enabled,
		PositionCount: len(positions),
		HoldingsValue: value,
		AvailableCash: cash,
		Candidates:    candidates,
		RecentOrders:  recent,
		TrailingStops: stops,
	}, nil
}

// GetRecentOrders returns the order log entries of the last N days, oldest
// first.
func (s *TradingService) GetRecentOrders(ctx context.Context, days int) ([]*domain.OrderLog, error) {
	if days <= 0 {
		days = 1
	}
	since := s.now().AddDate(0, 0, -days)
	entries, err := s.orders.FindSince(ctx, s.accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}
	return entries, nil
}

// heldTickers returns the set of order tickers currently held.
func (s *TradingService) heldTickers(ctx context.Context) (map[string]bool, error) {
	positions, err := s.broker.GetHoldings(ctx, s.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}
	held := make(map[string]bool, len(positions))
	for _, p := range positions {
		held[p.Ticker] = true
	}
	return held, nil
}

// researchWatchlist builds scorer inputs for every watchlist entry. Tickers
// without enough price history are skipped and counted, not failed.
func (s *TradingService) researchWatchlist(ctx context.Context, cfg *domain.TradingConfig) ([]scorer.Input, int) {
	items, err := s.watchlist.ListWatchlist(ctx, s.accountID)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load watchlist")
		return nil, 0
	}

	inputs := make([]scorer.Input, 0, len(items))
	skipped := 0
	for _, item := range items {
		// Research always runs on the base ticker; leveraged instruments
		// have no usable history of their own.
		signals, err := s.signalsFor(ctx, item.Ticker)
		if err != nil {
			if errors.Is(err, ports.ErrInsufficientData) {
				s.logger.Debug(ctx, "Skipping ticker with insufficient data", map[string]interface{}{"ticker": item.Ticker})
			} else {
				s.logger.Error(ctx, err, "Research failed for ticker, skipping", map[string]interface{}{"ticker": item.Ticker})
			}
			skipped++
			continue
		}

		in := scorer.Input{
			Ticker:      item.OrderTicker(),
			StockName:   item.StockName,
			Exchange:    item.Exchange,
			Signals:     *signals,
			IsLeveraged: item.UseLeverage,
		}
		if sentiment, err := s.market.Sentiment(ctx, item.Ticker); err != nil {
			s.logger.Error(ctx, err, "Sentiment lookup failed, treating as missing", map[string]interface{}{"ticker": item.Ticker})
		} else if sentiment != nil {
			score := sentiment.Score
			in.Sentiment = &score
			in.ArticleCount = sentiment.ArticleCount
		}
		if prob, err := s.market.RiseProbability(ctx, item.Ticker); err != nil {
			s.logger.Error(ctx, err, "Rise probability lookup failed, treating as missing", map[string]interface{}{"ticker": item.Ticker})
		} else {
			in.RiseProbability = prob
		}
		inputs = append(inputs, in)
	}
	return inputs, skipped
}

// signalsFor computes the indicator snapshot for a ticker.
func (s *TradingService) signalsFor(ctx context.Context, ticker string) (*domain.TechnicalSignals, error) {
	points, err := s.market.PriceHistory(ctx, ticker, s.lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history for %s: %w", ticker, err)
	}
	sig, err := indicators.Snapshot(indicators.Closes(points), s.snapshotCfg)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// buildSellContexts pairs each position with its research. Missing research
// leaves the context fields nil; the sell engine treats that as "no signal".
func (s *TradingService) buildSellContexts(ctx context.Context, positions []*domain.Position) []sell.PositionContext {
	leveraged := s.leveragedTickers(ctx)
	contexts := make([]sell.PositionContext, 0, len(positions))
	for _, pos := range positions {
		if leveraged[pos.Ticker] {
			pos.IsLeveraged = true
		}
		pc := sell.PositionContext{Position: pos}
		if signals, err := s.signalsFor(ctx, pos.Ticker); err == nil {
			pc.Signals = signals
		} else if !errors.Is(err, ports.ErrInsufficientData) {
			s.logger.Error(ctx, err, "Signal computation failed for held position", map[string]interface{}{"ticker": pos.Ticker})
		}
		if sentiment, err := s.market.Sentiment(ctx, pos.Ticker); err == nil && sentiment != nil {
			score := sentiment.Score
			pc.Sentiment = &score
		}
		contexts = append(contexts, pc)
	}
	return contexts
}

// leveragedTickers maps the order tickers the watchlist marks as leveraged.
func (s *TradingService) leveragedTickers(ctx context.Context) map[string]bool {
	items, err := s.watchlist.ListWatchlist(ctx, s.accountID)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load watchlist for leverage mapping")
		return nil
	}
	out := make(map[string]bool)
	for _, item := range items {
		if item.UseLeverage && item.LeverageTicker != "" {
			out[item.LeverageTicker] = true
		}
	}
	return out
}
