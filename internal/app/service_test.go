package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
	"stockpilot/internal/sell"
	"stockpilot/internal/strategy/scorer"
	"stockpilot/internal/trailing"
)

// --- Mocks ---

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockBroker struct {
	mu        sync.Mutex
	holdings  []*domain.Position
	cash      float64
	quotes    map[string]float64
	submitted []*ports.OrderRequest
	submitFn  func(req *ports.OrderRequest) (*ports.OrderResult, error)
	confirmFn func(orderID string) (domain.OrderStatus, error)
	confirmed []string
	holdGate  chan struct{} // When set, GetHoldings blocks until the gate closes
}

func (m *mockBroker) GetHoldings(ctx context.Context, accountID string) ([]*domain.Position, error) {
	if m.holdGate != nil {
		<-m.holdGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, len(m.holdings))
	for i, p := range m.holdings {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

func (m *mockBroker) GetQuote(ctx context.Context, exchange domain.Exchange, ticker string) (*ports.Quote, error) {
	price, ok := m.quotes[ticker]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", ticker)
	}
	return &ports.Quote{Ticker: ticker, Exchange: exchange, Price: price}, nil
}

func (m *mockBroker) GetAvailableCash(ctx context.Context, accountID string) (float64, error) {
	return m.cash, nil
}

func (m *mockBroker) SubmitOrder(ctx context.Context, req *ports.OrderRequest) (*ports.OrderResult, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, req)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(req)
	}
	return &ports.OrderResult{OrderID: "ord-1", Status: domain.OrderExecuted}, nil
}

func (m *mockBroker) ConfirmOrder(ctx context.Context, accountID, orderID string) (domain.OrderStatus, error) {
	m.mu.Lock()
	m.confirmed = append(m.confirmed, orderID)
	m.mu.Unlock()
	if m.confirmFn != nil {
		return m.confirmFn(orderID)
	}
	return domain.OrderExecuted, nil
}

type mockMarket struct {
	history   map[string][]domain.PricePoint
	sentiment map[string]float64
	riseProb  map[string]float64
}

func (m *mockMarket) PriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]domain.PricePoint, error) {
	return m.history[ticker], nil
}

func (m *mockMarket) Sentiment(ctx context.Context, ticker string) (*domain.SentimentScore, error) {
	s, ok := m.sentiment[ticker]
	if !ok {
		return nil, nil
	}
	return &domain.SentimentScore{Ticker: ticker, Score: s, ArticleCount: 5}, nil
}

func (m *mockMarket) RiseProbability(ctx context.Context, ticker string) (float64, error) {
	return m.riseProb[ticker], nil
}

type memStopRepo struct {
	mu   sync.Mutex
	recs map[string]*domain.TrailingStopRecord
}

func newMemStopRepo() *memStopRepo {
	return &memStopRepo{recs: make(map[string]*domain.TrailingStopRecord)}
}

func (r *memStopRepo) key(accountID, ticker string) string { return accountID + "/" + ticker }

func (r *memStopRepo) FindActive(ctx context.Context, accountID, ticker string) (*domain.TrailingStopRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[r.key(accountID, ticker)]
	if !ok || !rec.Active {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memStopRepo) Upsert(ctx context.Context, rec *domain.TrailingStopRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.recs[r.key(rec.AccountID, rec.Ticker)] = &cp
	return nil
}

func (r *memStopRepo) FindAllActive(ctx context.Context, accountID string) ([]*domain.TrailingStopRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TrailingStopRecord
	for _, rec := range r.recs {
		if rec.AccountID == accountID && rec.Active {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memStopRepo) Deactivate(ctx context.Context, accountID, ticker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recs[r.key(accountID, ticker)]; ok {
		rec.Active = false
	}
	return nil
}

type memPartialRepo struct {
	mu    sync.Mutex
	hists map[string]*domain.PartialProfitHistory
}

func newMemPartialRepo() *memPartialRepo {
	return &memPartialRepo{hists: make(map[string]*domain.PartialProfitHistory)}
}

func (r *memPartialRepo) FindPartialProfit(ctx context.Context, accountID, ticker string) (*domain.PartialProfitHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hists[accountID+"/"+ticker]
	if !ok {
		return nil, nil
	}
	cp := *h
	cp.Sales = append([]domain.PartialSale(nil), h.Sales...)
	return &cp, nil
}

func (r *memPartialRepo) UpsertPartialProfit(ctx context.Context, hist *domain.PartialProfitHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *hist
	cp.Sales = append([]domain.PartialSale(nil), hist.Sales...)
	r.hists[hist.AccountID+"/"+hist.Ticker] = &cp
	return nil
}

type memOrderRepo struct {
	mu      sync.Mutex
	entries []*domain.OrderLog
}

func (r *memOrderRepo) Append(ctx context.Context, entry *domain.OrderLog) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = int64(len(r.entries) + 1)
	cp := *entry
	r.entries = append(r.entries, &cp)
	return entry.ID, nil
}

func (r *memOrderRepo) FindSince(ctx context.Context, accountID string, since time.Time) ([]*domain.OrderLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.OrderLog
	for _, e := range r.entries {
		if e.AccountID == accountID && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memOrderRepo) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			e.Status = status
			if message != "" {
				e.Message = message
			}
			return nil
		}
	}
	return fmt.Errorf("order log %d not found", id)
}

func (r *memOrderRepo) CountTodayBuys(ctx context.Context, accountID string, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.AccountID == accountID && e.Side == domain.Buy && e.Status == domain.OrderExecuted &&
			e.CreatedAt.Format("2006-01-02") == day.Format("2006-01-02") {
			n++
		}
	}
	return n, nil
}

type memConfigRepo struct {
	mu   sync.Mutex
	cfgs map[string]*domain.TradingConfig
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{cfgs: make(map[string]*domain.TradingConfig)}
}

func (r *memConfigRepo) FindConfig(ctx context.Context, accountID string) (*domain.TradingConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.cfgs[accountID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (r *memConfigRepo) UpsertConfig(ctx context.Context, accountID string, cfg *domain.TradingConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	r.cfgs[accountID] = &cp
	return nil
}

type memWatchlistRepo struct {
	items []*domain.WatchItem
}

func (r *memWatchlistRepo) ListWatchlist(ctx context.Context, accountID string) ([]*domain.WatchItem, error) {
	return r.items, nil
}

func (r *memWatchlistRepo) UpsertWatchItem(ctx context.Context, item *domain.WatchItem) error {
	r.items = append(r.items, item)
	return nil
}

type mockNotifier struct {
	mu        sync.Mutex
	summaries []*ports.CycleSummary
	orders    []*domain.OrderLog
}

func (n *mockNotifier) NotifyCycle(ctx context.Context, summary *ports.CycleSummary) {
	n.mu.Lock()
	n.summaries = append(n.summaries, summary)
	n.mu.Unlock()
}

func (n *mockNotifier) NotifyOrder(ctx context.Context, entry *domain.OrderLog) {
	n.mu.Lock()
	n.orders = append(n.orders, entry)
	n.mu.Unlock()
}

// --- Fixture ---

type fixture struct {
	svc      *TradingService
	broker   *mockBroker
	market   *mockMarket
	stops    *memStopRepo
	partials *memPartialRepo
	orders   *memOrderRepo
	configs  *memConfigRepo
	watch    *memWatchlistRepo
	notifier *mockNotifier
	tracker  *trailing.Tracker
}

// uptrendHistory builds 60 steadily rising daily closes, enough for every
// indicator to be defined at the last index.
func uptrendHistory(start float64) []domain.PricePoint {
	points := make([]domain.PricePoint, 60)
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = domain.PricePoint{Date: day.AddDate(0, 0, i), Close: start + float64(i)*0.5}
	}
	return points
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := &mockLogger{}
	stops := newMemStopRepo()
	partials := newMemPartialRepo()
	orders := &memOrderRepo{}
	configs := newMemConfigRepo()
	watch := &memWatchlistRepo{}
	broker := &mockBroker{quotes: map[string]float64{}, cash: 10000}
	market := &mockMarket{
		history:   map[string][]domain.PricePoint{},
		sentiment: map[string]float64{},
		riseProb:  map[string]float64{},
	}
	notifier := &mockNotifier{}

	tracker, err := trailing.New(trailing.Config{Repo: stops, Logger: logger})
	require.NoError(t, err)
	engine, err := sell.New(sell.Config{Tracker: tracker, Partials: partials, Logger: logger})
	require.NoError(t, err)

	svc, err := NewTradingService(Config{
		AccountID:  "acct-1",
		Logger:     logger,
		Broker:     broker,
		Market:     market,
		Tracker:    tracker,
		SellEngine: engine,
		Scorer:     scorer.New(scorer.DefaultConfig()),
		Partials:   partials,
		Orders:     orders,
		Configs:    configs,
		Watchlist:  watch,
		Notifier:   notifier,
	})
	require.NoError(t, err)

	return &fixture{
		svc: svc, broker: broker, market: market, stops: stops, partials: partials,
		orders: orders, configs: configs, watch: watch, notifier: notifier, tracker: tracker,
	}
}

// enabledConfig stores an enabled config with a threshold the uptrend
// candidate clears.
func (f *fixture) enabledConfig(t *testing.T, mutate func(*domain.TradingConfig)) *domain.TradingConfig {
	t.Helper()
	cfg := domain.DefaultTradingConfig()
	cfg.Enabled = true
	cfg.MinCompositeScore = 1.0
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	require.NoError(t, f.configs.UpsertConfig(context.Background(), "acct-1", cfg))
	return cfg
}

// addUptrendCandidate wires AAPL as a qualified, in-budget buy candidate.
func (f *fixture) addUptrendCandidate() {
	f.watch.items = append(f.watch.items, &domain.WatchItem{
		AccountID: "acct-1", Ticker: "AAPL", StockName: "Apple", Exchange: domain.ExchangeNASD,
	})
	f.market.history["AAPL"] = uptrendHistory(100)
	f.market.sentiment["AAPL"] = 0.5
	f.market.riseProb["AAPL"] = 0.7
	f.broker.quotes["AAPL"] = 130
}

// --- Buy cycle ---

func TestBuyCycleDryRunJournalsWithoutSubmitting(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.addUptrendCandidate()

	summary, err := f.svc.ExecuteBuyCycle(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Submitted)
	assert.Empty(t, f.broker.submitted, "dry run must not reach the broker")
	require.Len(t, f.orders.entries, 1)
	entry := f.orders.entries[0]
	assert.Equal(t, domain.OrderDryRun, entry.Status)
	assert.Equal(t, domain.Buy, entry.Side)
	assert.Equal(t, "AAPL", entry.Ticker)
	require.NotNil(t, entry.CompositeScore)
	assert.Greater(t, *entry.CompositeScore, 1.0)
}

func TestBuyCycleSubmitsAndInitializesState(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, func(c *domain.TradingConfig) {
		c.TrailingStopEnabled = true
		c.MaxAmountPerStock = 1000
	})
	f.addUptrendCandidate()

	summary, err := f.svc.ExecuteBuyCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Submitted)
	require.Len(t, f.broker.submitted, 1)
	req := f.broker.submitted[0]
	assert.Equal(t, domain.Buy, req.Side)
	// Budget 1000 at price 130 buys 7 shares.
	assert.Equal(t, int64(7), req.Quantity)
	assert.Equal(t, 130.0, req.LimitPrice)

	rec, err := f.stops.FindActive(context.Background(), "acct-1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, rec, "fill must initialize the trailing stop")
	assert.Equal(t, 130.0, rec.HighestPrice)

	hist, err := f.partials.FindPartialProfit(context.Background(), "acct-1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, hist, "fill must start the partial profit ladder")
	assert.Equal(t, int64(7), hist.InitialQuantity)
}

func TestBuyCycleDisabledWithoutDryRun(t *testing.T) {
	f := newFixture(t)
	f.addUptrendCandidate() // No stored config: defaults are disabled.

	_, err := f.svc.ExecuteBuyCycle(context.Background(), false)
	assert.ErrorIs(t, err, ports.ErrAutoTradingDisabled)
	assert.Empty(t, f.broker.submitted)
	assert.Empty(t, f.orders.entries)
}

func TestBuyCycleBrokerFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.addUptrendCandidate()
	f.broker.submitFn = func(req *ports.OrderRequest) (*ports.OrderResult, error) {
		return nil, fmt.Errorf("exchange closed")
	}

	summary, err := f.svc.ExecuteBuyCycle(context.Background(), false)
	require.NoError(t, err, "a per-ticker order failure must not fail the cycle")
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Submitted)
	require.Len(t, f.orders.entries, 1)
	assert.Equal(t, domain.OrderFailed, f.orders.entries[0].Status)
}

func TestBuyCycleConfirmsAcceptedOrder(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.addUptrendCandidate()
	// A broker that only acknowledges acceptance, the way a day limit
	// order comes back. The fill check resolves it right after submission.
	f.broker.submitFn = func(req *ports.OrderRequest) (*ports.OrderResult, error) {
		return &ports.OrderResult{OrderID: "ord-9", Status: domain.OrderAccepted}, nil
	}

	summary, err := f.svc.ExecuteBuyCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Submitted)
	assert.Equal(t, []string{"ord-9"}, f.broker.confirmed)
	require.Len(t, f.orders.entries, 1)
	assert.Equal(t, domain.OrderExecuted, f.orders.entries[0].Status,
		"a confirmed fill must be journaled executed, not accepted")

	bought, err := f.svc.BoughtToday(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, bought, "the resolved buy must count toward the daily gate")
}

func TestBuyCycleKeepsAcceptedWhenConfirmFails(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.addUptrendCandidate()
	f.broker.submitFn = func(req *ports.OrderRequest) (*ports.OrderResult, error) {
		return &ports.OrderResult{OrderID: "ord-9", Status: domain.OrderAccepted}, nil
	}
	f.broker.confirmFn = func(orderID string) (domain.OrderStatus, error) {
		return "", fmt.Errorf("gateway timeout")
	}

	summary, err := f.svc.ExecuteBuyCycle(context.Background(), false)
	require.NoError(t, err, "a confirmation failure must not fail the cycle")
	assert.Equal(t, 1, summary.Submitted)
	require.Len(t, f.orders.entries, 1)
	assert.Equal(t, domain.OrderAccepted, f.orders.entries[0].Status)
}

func TestBuyCycleNotifiesSummary(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.addUptrendCandidate()

	_, err := f.svc.ExecuteBuyCycle(context.Background(), true)
	require.NoError(t, err)

	require.Len(t, f.notifier.summaries, 1)
	got := f.notifier.summaries[0]
	assert.Equal(t, "buy", got.JobType)
	assert.True(t, got.DryRun)
	assert.Len(t, got.Orders, 1)
	require.Len(t, f.notifier.orders, 1)
}

// --- Sell cycle ---

func TestSellCycleStopLossSellsAndDeactivates(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, func(c *domain.TradingConfig) { c.TrailingStopEnabled = true })
	f.broker.holdings = []*domain.Position{{
		AccountID: "acct-1", Ticker: "TSLA", Exchange: domain.ExchangeNASD,
		Quantity: 10, PurchasePrice: 100, CurrentPrice: 88, // -12%, urgent
	}}
	_, err := f.tracker.Initialize(context.Background(), "acct-1", "TSLA", 100, false, domain.DefaultTradingConfig())
	require.NoError(t, err)

	summary, err := f.svc.ExecuteSellCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Submitted)
	require.Len(t, f.broker.submitted, 1)
	req := f.broker.submitted[0]
	assert.Equal(t, domain.Sell, req.Side)
	assert.Equal(t, int64(10), req.Quantity, "stop loss sells the full position")

	require.Len(t, f.orders.entries, 1)
	entry := f.orders.entries[0]
	assert.Equal(t, domain.SellStopLossUrgent, entry.SellKind)
	require.NotNil(t, entry.ChangePercent)
	assert.InDelta(t, -12.0, *entry.ChangePercent, 0.01)

	rec, err := f.stops.FindActive(context.Background(), "acct-1", "TSLA")
	require.NoError(t, err)
	assert.Nil(t, rec, "full sell must deactivate the trailing stop")
}

func TestSellCyclePartialStageUpdatesLadder(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.broker.holdings = []*domain.Position{{
		AccountID: "acct-1", Ticker: "AAPL", Exchange: domain.ExchangeNASD,
		Quantity: 10, PurchasePrice: 100, CurrentPrice: 106, // +6%, stage 1
	}}
	hist := domain.NewPartialProfitHistory("acct-1", "AAPL", 10, time.Now())
	require.NoError(t, f.partials.UpsertPartialProfit(context.Background(), hist))

	summary, err := f.svc.ExecuteSellCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Submitted)
	require.Len(t, f.broker.submitted, 1)
	assert.Equal(t, int64(3), f.broker.submitted[0].Quantity, "stage 1 sells 30% of initial 10")

	updated, err := f.partials.FindPartialProfit(context.Background(), "acct-1", "AAPL")
	require.NoError(t, err)
	require.Len(t, updated.Sales, 1)
	assert.Equal(t, 1, updated.Sales[0].Stage)
	assert.False(t, updated.IsCompleted)
	assert.Equal(t, 2, updated.NextStage(3))
}

func TestSellCycleObservesTrailingPeaks(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, func(c *domain.TradingConfig) { c.TrailingStopEnabled = true })
	f.broker.holdings = []*domain.Position{{
		AccountID: "acct-1", Ticker: "AAPL", Exchange: domain.ExchangeNASD,
		Quantity: 10, PurchasePrice: 100, CurrentPrice: 110,
	}}
	_, err := f.tracker.Initialize(context.Background(), "acct-1", "AAPL", 100, false, domain.DefaultTradingConfig())
	require.NoError(t, err)

	_, err = f.svc.ExecuteSellCycle(context.Background(), true)
	require.NoError(t, err)

	rec, err := f.stops.FindActive(context.Background(), "acct-1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 110.0, rec.HighestPrice, "cycle must feed holding prices into the ratchet")
	assert.InDelta(t, 104.5, rec.DynamicStopPrice, 1e-9)
}

func TestSellCycleDryRunSkipsBroker(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.broker.holdings = []*domain.Position{{
		AccountID: "acct-1", Ticker: "TSLA", Exchange: domain.ExchangeNASD,
		Quantity: 10, PurchasePrice: 100, CurrentPrice: 85,
	}}

	summary, err := f.svc.ExecuteSellCycle(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Submitted)
	assert.Empty(t, f.broker.submitted)
	require.Len(t, f.orders.entries, 1)
	assert.Equal(t, domain.OrderDryRun, f.orders.entries[0].Status)
}

func TestSellCycleResolvesOpenOrders(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	// A buy journaled accepted in an earlier cycle, still unresolved.
	_, err := f.orders.Append(context.Background(), &domain.OrderLog{
		AccountID: "acct-1", Ticker: "AAPL", Exchange: domain.ExchangeNASD,
		Side: domain.Buy, Quantity: 7, Price: 130, OrderID: "ord-7",
		Status: domain.OrderAccepted, CreatedAt: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.ExecuteSellCycle(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"ord-7"}, f.broker.confirmed)
	require.Len(t, f.orders.entries, 1)
	assert.Equal(t, domain.OrderExecuted, f.orders.entries[0].Status,
		"the sell pass must settle orders left accepted by earlier cycles")
}

func TestConcurrentSellCycleNoOps(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.broker.holdGate = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		_, err := f.svc.ExecuteSellCycle(context.Background(), true)
		firstDone <- err
	}()

	// Wait until the first cycle holds the flag (blocked in GetHoldings).
	require.Eventually(t, func() bool {
		f.svc.mu.Lock()
		defer f.svc.mu.Unlock()
		return f.svc.sellRunning
	}, time.Second, time.Millisecond)

	_, err := f.svc.ExecuteSellCycle(context.Background(), true)
	assert.ErrorIs(t, err, ports.ErrCycleAlreadyRunning)

	close(f.broker.holdGate)
	f.broker.holdGate = nil
	require.NoError(t, <-firstDone)

	// The flag is released; a fresh cycle runs.
	_, err = f.svc.ExecuteSellCycle(context.Background(), true)
	require.NoError(t, err)
}

// --- Config, candidates, status ---

func TestUpdateConfigRejectsInvalidPatchAndKeepsPrevious(t *testing.T) {
	f := newFixture(t)
	stored := f.enabledConfig(t, nil)

	bad := 5.0 // stop loss must be negative
	_, err := f.svc.UpdateConfig(context.Background(), &domain.TradingConfigPatch{StopLossPercent: &bad})
	require.ErrorIs(t, err, ports.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "stop_loss_percent")

	current, err := f.svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stored.StopLossPercent, current.StopLossPercent)
}

func TestUpdateConfigAppliesPatch(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)

	maxStocks := 3
	updated, err := f.svc.UpdateConfig(context.Background(), &domain.TradingConfigPatch{MaxStocksToBuy: &maxStocks})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.MaxStocksToBuy)

	current, err := f.svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, current.MaxStocksToBuy)
}

func TestGetConfigFallsBackToDefaults(t *testing.T) {
	f := newFixture(t)
	cfg, err := f.svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2.0, cfg.MinCompositeScore)
}

func TestGetBuyCandidatesRanksWatchlist(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.addUptrendCandidate()

	candidates, err := f.svc.GetBuyCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "AAPL", candidates[0].Ticker)
	assert.True(t, candidates[0].Signals.GoldenCross)
}

func TestGetBuyCandidatesMapsLeverageTicker(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.watch.items = append(f.watch.items, &domain.WatchItem{
		AccountID: "acct-1", Ticker: "QQQ", Exchange: domain.ExchangeNASD,
		UseLeverage: true, LeverageTicker: "TQQQ",
	})
	f.market.history["QQQ"] = uptrendHistory(100)
	f.market.sentiment["QQQ"] = 0.5
	f.market.riseProb["QQQ"] = 0.7

	candidates, err := f.svc.GetBuyCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "TQQQ", candidates[0].Ticker, "orders go to the leveraged instrument")
	assert.True(t, candidates[0].IsLeveraged)
}

func TestGetSellCandidatesWithoutOrders(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.broker.holdings = []*domain.Position{{
		AccountID: "acct-1", Ticker: "TSLA", Exchange: domain.ExchangeNASD,
		Quantity: 10, PurchasePrice: 100, CurrentPrice: 85,
	}}

	decisions, err := f.svc.GetSellCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.PriorityStopLoss, decisions[0].Priority)
	assert.Empty(t, f.broker.submitted)
	assert.Empty(t, f.orders.entries)
}

func TestGetStatusSnapshot(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	f.broker.cash = 5000
	f.broker.holdings = []*domain.Position{{
		AccountID: "acct-1", Ticker: "TSLA", Quantity: 10, PurchasePrice: 100, CurrentPrice: 110,
	}}

	_, err := f.tracker.Initialize(context.Background(), "acct-1", "TSLA", 100, false, domain.DefaultTradingConfig())
	require.NoError(t, err)

	status, err := f.svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, 1, status.PositionCount)
	assert.Equal(t, 1100.0, status.HoldingsValue)
	assert.Equal(t, 5000.0, status.AvailableCash)
	require.Len(t, status.TrailingStops, 1)
	assert.Equal(t, "TSLA", status.TrailingStops[0].Ticker)
}

func TestDefaultSizing(t *testing.T) {
	assert.Equal(t, int64(7), DefaultSizing(10000, 1000, 130))
	assert.Equal(t, int64(3), DefaultSizing(500, 1000, 130), "cash caps the budget")
	assert.Equal(t, int64(0), DefaultSizing(100, 1000, 130))
	assert.Equal(t, int64(0), DefaultSizing(1000, 1000, 0))
}
