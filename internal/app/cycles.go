package app

import (
	"context"
	"fmt"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// ExecuteBuyCycle runs one full buy pass: gate on config, rank the
// watchlist, size each candidate against the cash snapshot and submit
// limit orders at the current quote. With dryRun the full decision path
// runs but submission is skipped and dry-run entries are journaled.
//
// Per-ticker failures are counted and the cycle continues; a persistence
// failure aborts the cycle. A summary is produced either way.
func (s *TradingService) ExecuteBuyCycle(ctx context.Context, dryRun bool) (*ports.CycleSummary, error) {
	release, err := s.acquireJob("buy")
	if err != nil {
		return nil, err
	}
	defer release()

	summary := &ports.CycleSummary{
		JobType:   "buy",
		AccountID: s.accountID,
		DryRun:    dryRun,
		StartedAt: s.now().Unix(),
	}
	defer func() {
		summary.FinishedAt = s.now().Unix()
		s.notifier.NotifyCycle(ctx, summary)
	}()

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return summary, err
	}
	if !cfg.Enabled && !dryRun {
		return summary, ports.ErrAutoTradingDisabled
	}

	held, err := s.heldTickers(ctx)
	if err != nil {
		return summary, err
	}
	cash, err := s.broker.GetAvailableCash(ctx, s.accountID)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch available cash: %w", err)
	}

	inputs, skipped := s.researchWatchlist(ctx, cfg)
	summary.Skipped = skipped
	summary.Evaluated = len(inputs) + skipped

	candidates := s.scorer.Rank(inputs, cfg, held)
	s.logger.Info(ctx, "Buy cycle candidates ranked", map[string]interface{}{
		"account": s.accountID, "candidates": len(candidates), "cash": cash, "dry_run": dryRun,
	})

	for _, cand := range candidates {
		quote, err := s.broker.GetQuote(ctx, cand.Exchange, cand.Ticker)
		if err != nil {
			s.logger.Error(ctx, err, "Quote failed, skipping candidate", map[string]interface{}{"ticker": cand.Ticker})
			summary.Failed++
			continue
		}

		qty := s.sizing(cash, cfg.MaxAmountPerStock, quote.Price)
		if qty < 1 {
			s.logger.Info(ctx, "Candidate skipped by sizing", map[string]interface{}{
				"ticker": cand.Ticker, "price": quote.Price, "cash": cash,
			})
			summary.Skipped++
			continue
		}

		score := cand.CompositeScore
		entry := &domain.OrderLog{
			AccountID:      s.accountID,
			Ticker:         cand.Ticker,
			StockName:      cand.StockName,
			Exchange:       cand.Exchange,
			Side:           domain.Buy,
			Quantity:       qty,
			Price:          quote.Price,
			CompositeScore: &score,
			CreatedAt:      s.now(),
		}

		if dryRun {
			entry.Status = domain.OrderDryRun
			entry.Message = "dry run, order not submitted"
			if err := s.appendOrder(ctx, summary, entry); err != nil {
				return summary, err
			}
			summary.Submitted++
			continue
		}

		result, err := s.broker.SubmitOrder(ctx, &ports.OrderRequest{
			AccountID:  s.accountID,
			Ticker:     cand.Ticker,
			StockName:  cand.StockName,
			Exchange:   cand.Exchange,
			Side:       domain.Buy,
			Quantity:   qty,
			LimitPrice: quote.Price,
		})
		if err != nil {
			s.logger.Error(ctx, err, "Buy order failed", map[string]interface{}{"ticker": cand.Ticker})
			entry.Status = domain.OrderFailed
			entry.Message = err.Error()
			summary.Failed++
			if err := s.appendOrder(ctx, summary, entry); err != nil {
				return summary, err
			}
			continue
		}

		entry.Status = s.resolveStatus(ctx, result)
		entry.OrderID = result.OrderID
		entry.Message = result.Message
		if err := s.appendOrder(ctx, summary, entry); err != nil {
			return summary, err
		}
		if entry.Status == domain.OrderFailed {
			summary.Failed++
			continue
		}
		summary.Submitted++
		cash -= float64(qty) * quote.Price

		// A fill starts the trailing stop and the partial-profit ladder.
		if cfg.TrailingStopEnabled {
			if _, err := s.tracker.Initialize(ctx, s.accountID, cand.Ticker, quote.Price, cand.IsLeveraged, cfg); err != nil {
				return summary, fmt.Errorf("failed to initialize trailing stop for %s: %w", cand.Ticker, err)
			}
		}
		hist := domain.NewPartialProfitHistory(s.accountID, cand.Ticker, qty, s.now())
		if err := s.partials.UpsertPartialProfit(ctx, hist); err != nil {
			return summary, fmt.Errorf("failed to initialize partial profit history for %s: %w", cand.Ticker, err)
		}
	}

	s.logger.Info(ctx, "Buy cycle finished", map[string]interface{}{
		"account": s.accountID, "evaluated": summary.Evaluated, "skipped": summary.Skipped,
		"submitted": summary.Submitted, "failed": summary.Failed,
	})
	return summary, nil
}

// ExecuteSellCycle runs one full sell pass: refresh trailing peaks from the
// holdings snapshot, evaluate the sell rule chain and submit limit orders
// for the decisions. Dry runs journal the decisions without submitting.
func (s *TradingService) ExecuteSellCycle(ctx context.Context, dryRun bool) (*ports.CycleSummary, error) {
	release, err := s.acquireJob("sell")
	if err != nil {
		return nil, err
	}
	defer release()

	summary := &ports.CycleSummary{
		JobType:   "sell",
		AccountID: s.accountID,
		DryRun:    dryRun,
		StartedAt: s.now().Unix(),
	}
	defer func() {
		summary.FinishedAt = s.now().Unix()
		s.notifier.NotifyCycle(ctx, summary)
	}()

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return summary, err
	}
	if !cfg.Enabled && !dryRun {
		return summary, ports.ErrAutoTradingDisabled
	}

	// Settle yesterday's and this morning's open orders before deciding.
	s.reconcileOrders(ctx)

	positions, err := s.broker.GetHoldings(ctx, s.accountID)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch holdings: %w", err)
	}
	summary.Evaluated = len(positions)

	// Feed the latest prices into the ratchet before any trigger check.
	if cfg.TrailingStopEnabled {
		for _, pos := range positions {
			if _, err := s.tracker.Observe(ctx, s.accountID, pos.Ticker, pos.CurrentPrice); err != nil {
				s.logger.Error(ctx, err, "Trailing stop observe failed", map[string]interface{}{"ticker": pos.Ticker})
			}
		}
	}

	contexts := s.buildSellContexts(ctx, positions)
	decisions := s.sellEngine.Evaluate(ctx, contexts, cfg)
	summary.Skipped = len(positions) - len(decisions)
	s.logger.Info(ctx, "Sell cycle decisions ready", map[string]interface{}{
		"account": s.accountID, "positions": len(positions), "decisions": len(decisions), "dry_run": dryRun,
	})

	for _, dec := range decisions {
		change := dec.ChangePercent
		entry := &domain.OrderLog{
			AccountID:     s.accountID,
			Ticker:        dec.Ticker,
			StockName:     dec.StockName,
			Exchange:      dec.Exchange,
			Side:          domain.Sell,
			Quantity:      dec.Quantity,
			Price:         dec.CurrentPrice,
			ChangePercent: &change,
			SellKind:      dec.Kind,
			SellReasons:   dec.Reasons,
			CreatedAt:     s.now(),
		}

		if dryRun {
			entry.Status = domain.OrderDryRun
			entry.Message = "dry run, order not submitted"
			if err := s.appendOrder(ctx, summary, entry); err != nil {
				return summary, err
			}
			summary.Submitted++
			continue
		}

		result, err := s.broker.SubmitOrder(ctx, &ports.OrderRequest{
			AccountID:  s.accountID,
			Ticker:     dec.Ticker,
			StockName:  dec.StockName,
			Exchange:   dec.Exchange,
			Side:       domain.Sell,
			Quantity:   dec.Quantity,
			LimitPrice: dec.CurrentPrice,
		})
		if err != nil {
			s.logger.Error(ctx, err, "Sell order failed", map[string]interface{}{"ticker": dec.Ticker})
			entry.Status = domain.OrderFailed
			entry.Message = err.Error()
			summary.Failed++
			if err := s.appendOrder(ctx, summary, entry); err != nil {
				return summary, err
			}
			continue
		}

		entry.Status = s.resolveStatus(ctx, result)
		entry.OrderID = result.OrderID
		entry.Message = result.Message
		if err := s.appendOrder(ctx, summary, entry); err != nil {
			return summary, err
		}
		if entry.Status == domain.OrderFailed {
			summary.Failed++
			continue
		}
		summary.Submitted++

		if err := s.settleSell(ctx, dec); err != nil {
			return summary, err
		}
	}

	s.logger.Info(ctx, "Sell cycle finished", map[string]interface{}{
		"account": s.accountID, "evaluated": summary.Evaluated, "skipped": summary.Skipped,
		"submitted": summary.Submitted, "failed": summary.Failed,
	})
	return summary, nil
}

// settleSell updates the per-position state after an accepted sell order:
// partial stages extend the ladder, full sells close the trailing stop.
func (s *TradingService) settleSell(ctx context.Context, dec *domain.SellDecision) error {
	if dec.Kind == domain.SellPartialProfit {
		hist, err := s.partials.FindPartialProfit(ctx, s.accountID, dec.Ticker)
		if err != nil {
			return fmt.Errorf("failed to load partial profit history for %s: %w", dec.Ticker, err)
		}
		if hist == nil {
			return fmt.Errorf("partial profit stage sold without history for %s", dec.Ticker)
		}
		hist.RecordSale(domain.PartialSale{
			Stage:         dec.Stage,
			ProfitPercent: dec.ChangePercent,
			Quantity:      dec.Quantity,
			Price:         dec.CurrentPrice,
			SoldAt:        s.now(),
		}, len(s.sellEngine.Stages()), s.now())
		if err := s.partials.UpsertPartialProfit(ctx, hist); err != nil {
			return fmt.Errorf("failed to store partial profit history for %s: %w", dec.Ticker, err)
		}
		return nil
	}

	// Any full-position sell ends the trailing stop lifecycle.
	if err := s.tracker.Deactivate(ctx, s.accountID, dec.Ticker); err != nil {
		return err
	}
	return nil
}

// resolveStatus confirms an accepted order against the broker once, right
// after submission. Day limit orders at the current quote usually fill
// immediately, so a single confirmation settles most entries; the rest stay
// accepted and are picked up by reconcileOrders on later ticks.
func (s *TradingService) resolveStatus(ctx context.Context, result *ports.OrderResult) domain.OrderStatus {
	if result.Status != domain.OrderAccepted || result.OrderID == "" {
		return result.Status
	}
	status, err := s.broker.ConfirmOrder(ctx, s.accountID, result.OrderID)
	if err != nil {
		s.logger.Warn(ctx, "Order confirmation failed, keeping accepted status", map[string]interface{}{
			"order_id": result.OrderID, "error": err.Error(),
		})
		return result.Status
	}
	return status
}

// reconcileOrders settles journal entries still marked accepted from earlier
// cycles. Errors are logged and skipped; an entry left accepted is retried on
// the next pass.
func (s *TradingService) reconcileOrders(ctx context.Context) {
	entries, err := s.orders.FindSince(ctx, s.accountID, s.now().AddDate(0, 0, -1))
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load order journal for reconciliation")
		return
	}
	for _, e := range entries {
		if e.Status != domain.OrderAccepted || e.OrderID == "" {
			continue
		}
		status, err := s.broker.ConfirmOrder(ctx, s.accountID, e.OrderID)
		if err != nil {
			s.logger.Error(ctx, err, "Order confirmation failed during reconciliation", map[string]interface{}{
				"order_id": e.OrderID, "ticker": e.Ticker,
			})
			continue
		}
		if status == e.Status {
			continue
		}
		if err := s.orders.UpdateOrderStatus(ctx, e.ID, status, ""); err != nil {
			s.logger.Error(ctx, err, "Failed to persist resolved order status", map[string]interface{}{
				"order_id": e.OrderID, "ticker": e.Ticker,
			})
			continue
		}
		s.logger.Info(ctx, "Order status resolved", map[string]interface{}{
			"order_id": e.OrderID, "ticker": e.Ticker, "status": status,
		})
	}
}

// appendOrder journals an entry and pushes the order notification. A journal
// failure aborts the cycle: the log is the source of truth for P&L.
func (s *TradingService) appendOrder(ctx context.Context, summary *ports.CycleSummary, entry *domain.OrderLog) error {
	if _, err := s.orders.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to journal order for %s: %w", entry.Ticker, err)
	}
	summary.Orders = append(summary.Orders, entry)
	s.notifier.NotifyOrder(ctx, entry)
	return nil
}
