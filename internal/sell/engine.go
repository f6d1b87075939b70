package sell

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
	"stockpilot/internal/trailing"
)

// negativeSentimentThreshold relaxes the technical sell rule from three
// signals to two.
const negativeSentimentThreshold = -0.15

// Stage is one rung of the partial profit-taking ladder. Fraction applies to
// the initial purchase quantity, not the remaining shares.
type Stage struct {
	Number        int
	ProfitPercent float64
	Fraction      float64
}

// DefaultStages is the production ladder. Leveraged positions double the
// profit thresholds but keep the fractions.
func DefaultStages() []Stage {
	return []Stage{
		{Number: 1, ProfitPercent: 5, Fraction: 0.30},
		{Number: 2, ProfitPercent: 8, Fraction: 0.30},
		{Number: 3, ProfitPercent: 12, Fraction: 0.40},
	}
}

// PositionContext bundles a held position with the research available for
// it this cycle. Signals and Sentiment are nil when the data could not be
// computed; rules that need them simply stay silent.
type PositionContext struct {
	Position  *domain.Position
	Signals   *domain.TechnicalSignals
	Sentiment *float64
}

// Engine evaluates held positions against the ordered sell rules. Rules are
// tried strictly in priority order and the first match wins, so a position
// yields at most one decision per cycle.
type Engine struct {
	tracker  *trailing.Tracker
	partials ports.PartialProfitRepository
	logger   ports.Logger
	stages   []Stage
}

// Config holds the dependencies for the sell engine.
type Config struct {
	Tracker  *trailing.Tracker
	Partials ports.PartialProfitRepository
	Logger   ports.Logger
	Stages   []Stage // Defaults to DefaultStages
}

func New(cfg Config) (*Engine, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("trailing tracker is required")
	}
	if cfg.Partials == nil {
		return nil, errors.New("partial profit repository is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	stages := cfg.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Engine{tracker: cfg.Tracker, partials: cfg.Partials, logger: cfg.Logger, stages: stages}, nil
}

// Stages returns the configured profit-taking ladder.
func (e *Engine) Stages() []Stage {
	return e.stages
}

// Evaluate runs the rule chain over every position and returns the decisions
// sorted by (priority ascending, |change percent| descending). Per-position
// failures are logged and the position skipped; the cycle continues.
func (e *Engine) Evaluate(ctx context.Context, positions []PositionContext, cfg *domain.TradingConfig) []*domain.SellDecision {
	decisions := make([]*domain.SellDecision, 0, len(positions))

	for _, pc := range positions {
		pos := pc.Position
		if pos == nil || pos.Quantity <= 0 || pos.CurrentPrice <= 0 || pos.PurchasePrice <= 0 {
			continue
		}
		dec, err := e.evaluateOne(ctx, pc, cfg)
		if err != nil {
			e.logger.Error(ctx, err, "sell evaluation failed, skipping position", map[string]interface{}{
				"ticker": pos.Ticker,
			})
			continue
		}
		if dec != nil {
			decisions = append(decisions, dec)
		}
	}

	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].Priority != decisions[j].Priority {
			return decisions[i].Priority < decisions[j].Priority
		}
		ci, cj := math.Abs(decisions[i].ChangePercent), math.Abs(decisions[j].ChangePercent)
		if ci != cj {
			return ci > cj
		}
		return decisions[i].Ticker < decisions[j].Ticker
	})
	return decisions
}

func (e *Engine) evaluateOne(ctx context.Context, pc PositionContext, cfg *domain.TradingConfig) (*domain.SellDecision, error) {
	if dec := e.stopLossRule(pc, cfg); dec != nil {
		return dec, nil
	}
	dec, err := e.trailingStopRule(ctx, pc, cfg)
	if dec != nil || err != nil {
		return dec, err
	}
	dec, err = e.profitRule(ctx, pc, cfg)
	if dec != nil || err != nil {
		return dec, err
	}
	return e.technicalRule(pc), nil
}

// stopLossRule fires on deep losses. Leveraged positions only use the urgent
// threshold so ordinary leveraged swings are not sold into.
func (e *Engine) stopLossRule(pc PositionContext, cfg *domain.TradingConfig) *domain.SellDecision {
	pos := pc.Position
	change := pos.ChangePercent()

	if change <= cfg.UrgentStopLossPercent {
		return newDecision(pos, domain.PriorityStopLoss, domain.SellStopLossUrgent, pos.Quantity, change, 0,
			fmt.Sprintf("urgent stop loss: %.2f%% <= %.2f%%", change, cfg.UrgentStopLossPercent))
	}
	if !pos.IsLeveraged && change <= cfg.StopLossPercent {
		return newDecision(pos, domain.PriorityStopLoss, domain.SellStopLoss, pos.Quantity, change, 0,
			fmt.Sprintf("stop loss: %.2f%% <= %.2f%%", change, cfg.StopLossPercent))
	}
	return nil
}

func (e *Engine) trailingStopRule(ctx context.Context, pc PositionContext, cfg *domain.TradingConfig) (*domain.SellDecision, error) {
	if !cfg.TrailingStopEnabled {
		return nil, nil
	}
	pos := pc.Position
	fired, rec, err := e.tracker.IsTriggered(ctx, pos.AccountID, pos.Ticker, pos.CurrentPrice, cfg)
	if err != nil {
		return nil, err
	}
	if !fired {
		return nil, nil
	}
	return newDecision(pos, domain.PriorityTrailingStop, domain.SellTrailingStop, pos.Quantity, pos.ChangePercent(), 0,
		fmt.Sprintf("trailing stop: price %.2f <= stop %.2f (peak %.2f)", pos.CurrentPrice, rec.DynamicStopPrice, rec.HighestPrice)), nil
}

// profitRule handles the staged ladder when a history exists, otherwise the
// plain full take-profit. A completed ladder ends priority-3 selling for the
// position; only the stop and technical rules apply to the remainder.
func (e *Engine) profitRule(ctx context.Context, pc PositionContext, cfg *domain.TradingConfig) (*domain.SellDecision, error) {
	pos := pc.Position
	change := pos.ChangePercent()

	hist, err := e.partials.FindPartialProfit(ctx, pos.AccountID, pos.Ticker)
	if err != nil {
		return nil, err
	}
	if hist == nil {
		if change >= cfg.TakeProfitPercent {
			return newDecision(pos, domain.PriorityTakeProfit, domain.SellTakeProfit, pos.Quantity, change, 0,
				fmt.Sprintf("take profit: %.2f%% >= %.2f%%", change, cfg.TakeProfitPercent)), nil
		}
		return nil, nil
	}
	if hist.IsCompleted {
		return nil, nil
	}

	next := hist.NextStage(len(e.stages))
	if next == 0 {
		return nil, nil
	}
	stage := e.stages[next-1]
	threshold := stage.ProfitPercent
	if pos.IsLeveraged {
		threshold *= 2
	}
	if change < threshold {
		// The stage is not due yet, but the plain take-profit floor still
		// applies. Matters for leveraged positions, where the doubled stage
		// threshold can sit above the configured take-profit level.
		if change >= cfg.TakeProfitPercent {
			return newDecision(pos, domain.PriorityTakeProfit, domain.SellTakeProfit, pos.Quantity, change, 0,
				fmt.Sprintf("take profit: %.2f%% >= %.2f%%", change, cfg.TakeProfitPercent)), nil
		}
		return nil, nil
	}

	qty := int64(math.Floor(float64(hist.InitialQuantity) * stage.Fraction))
	if qty < 1 {
		qty = 1
	}
	if qty > pos.Quantity {
		qty = pos.Quantity
	}
	return newDecision(pos, domain.PriorityTakeProfit, domain.SellPartialProfit, qty, change, stage.Number,
		fmt.Sprintf("partial profit stage %d: %.2f%% >= %.2f%%, selling %d of %d initial", stage.Number, change, threshold, qty, hist.InitialQuantity)), nil
}

// technicalRule fires on deteriorating technicals: three sell signals, or
// two when sentiment has turned clearly negative.
func (e *Engine) technicalRule(pc PositionContext) *domain.SellDecision {
	if pc.Signals == nil {
		return nil
	}
	pos := pc.Position
	count := pc.Signals.SellSignalCount()

	negative := pc.Sentiment != nil && *pc.Sentiment < negativeSentimentThreshold
	if count < 3 && !(negative && count >= 2) {
		return nil
	}

	reasons := make([]string, 0, 4)
	if pc.Signals.DeadCross {
		reasons = append(reasons, "dead cross")
	}
	if pc.Signals.Overbought {
		reasons = append(reasons, fmt.Sprintf("overbought (RSI %.1f)", pc.Signals.RSI))
	}
	if pc.Signals.MACDSell {
		reasons = append(reasons, "macd below signal")
	}
	if negative {
		reasons = append(reasons, fmt.Sprintf("negative sentiment %.2f", *pc.Sentiment))
	}
	return newDecision(pos, domain.PriorityTechnical, domain.SellTechnical, pos.Quantity, pos.ChangePercent(), 0, reasons...)
}

func newDecision(pos *domain.Position, priority domain.SellPriority, kind domain.SellKind, qty int64, change float64, stage int, reasons ...string) *domain.SellDecision {
	return &domain.SellDecision{
		Ticker:        pos.Ticker,
		StockName:     pos.StockName,
		Exchange:      pos.Exchange,
		Priority:      priority,
		Kind:          kind,
		Reasons:       reasons,
		Quantity:      qty,
		Stage:         stage,
		ChangePercent: change,
		CurrentPrice:  pos.CurrentPrice,
	}
}
