package pnl

import "sort"

// Stats aggregates realized trades.
type Stats struct {
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64 // Percent of trades with positive profit
	TotalCost        float64
	TotalRevenue     float64
	TotalProfit      float64
	TotalProfitPct   float64 // TotalProfit / TotalCost
	AvgProfitPct     float64 // Mean per-trade profit percent
	AvgWinProfitPct  float64
	AvgLossProfitPct float64
	AvgHoldingDays   float64
}

// TickerStats rolls trades up per ticker.
type TickerStats struct {
	Ticker      string
	StockName   string
	Trades      int
	Quantity    int64
	TotalCost   float64
	TotalProfit float64
	ProfitPct   float64
	WinRate     float64
}

// Report bundles the trade list with its aggregates. Everything here is
// derived from Trades; the report carries no independent state.
type Report struct {
	Trades   []*Trade
	Stats    Stats
	ByTicker []*TickerStats
}

// NewReport computes the aggregate and per-ticker stats for a trade list.
func NewReport(trades []*Trade) *Report {
	r := &Report{Trades: trades}
	if len(trades) == 0 {
		return r
	}

	var (
		sumPct, sumWinPct, sumLossPct float64
		sumDays                       int
		perTicker                     = make(map[string]*TickerStats)
		tickerWins                    = make(map[string]int)
	)
	for _, tr := range trades {
		r.Stats.TotalTrades++
		r.Stats.TotalCost += tr.Cost
		r.Stats.TotalRevenue += tr.Revenue
		r.Stats.TotalProfit += tr.Profit
		sumPct += tr.ProfitPercent
		sumDays += tr.HoldingDays
		if tr.Profit > 0 {
			r.Stats.WinningTrades++
			sumWinPct += tr.ProfitPercent
		} else if tr.Profit < 0 {
			r.Stats.LosingTrades++
			sumLossPct += tr.ProfitPercent
		}

		ts, ok := perTicker[tr.Ticker]
		if !ok {
			ts = &TickerStats{Ticker: tr.Ticker, StockName: tr.StockName}
			perTicker[tr.Ticker] = ts
		}
		ts.Trades++
		ts.Quantity += tr.Quantity
		ts.TotalCost += tr.Cost
		ts.TotalProfit += tr.Profit
		if tr.Profit > 0 {
			tickerWins[tr.Ticker]++
		}
	}

	n := float64(r.Stats.TotalTrades)
	r.Stats.WinRate = float64(r.Stats.WinningTrades) / n * 100
	r.Stats.AvgProfitPct = sumPct / n
	r.Stats.AvgHoldingDays = float64(sumDays) / n
	if r.Stats.TotalCost > 0 {
		r.Stats.TotalProfitPct = r.Stats.TotalProfit / r.Stats.TotalCost * 100
	}
	if r.Stats.WinningTrades > 0 {
		r.Stats.AvgWinProfitPct = sumWinPct / float64(r.Stats.WinningTrades)
	}
	if r.Stats.LosingTrades > 0 {
		r.Stats.AvgLossProfitPct = sumLossPct / float64(r.Stats.LosingTrades)
	}

	for ticker, ts := range perTicker {
		if ts.TotalCost > 0 {
			ts.ProfitPct = ts.TotalProfit / ts.TotalCost * 100
		}
		ts.WinRate = float64(tickerWins[ticker]) / float64(ts.Trades) * 100
		r.ByTicker = append(r.ByTicker, ts)
	}
	sort.Slice(r.ByTicker, func(i, j int) bool {
		if r.ByTicker[i].TotalProfit != r.ByTicker[j].TotalProfit {
			return r.ByTicker[i].TotalProfit > r.ByTicker[j].TotalProfit
		}
		return r.ByTicker[i].Ticker < r.ByTicker[j].Ticker
	})
	return r
}
