package pnl

import (
	"sort"
	"time"

	"stockpilot/internal/domain"
)

// Trade is one realized round trip produced by matching a sell against a
// buy lot.
type Trade struct {
	Ticker        string
	StockName     string
	BuyDate       time.Time
	SellDate      time.Time
	HoldingDays   int
	Quantity      int64
	BuyPrice      float64
	SellPrice     float64
	Cost          float64
	Revenue       float64
	Profit        float64
	ProfitPercent float64
	SellReasons   []string
}

// buyLot is an open FIFO lot; Remaining shrinks as sells consume it.
type buyLot struct {
	date      time.Time
	stockName string
	price     float64
	remaining int64
}

// Match replays executed order-log entries in chronological order and
// FIFO-matches sells against buy lots per ticker. A sell larger than the
// oldest lot splits across lots; entries with non-positive price or quantity
// are skipped; sells with no open lot (position predates the window) are
// dropped.
func Match(entries []*domain.OrderLog) []*Trade {
	ordered := make([]*domain.OrderLog, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.Status != domain.OrderExecuted {
			continue
		}
		if e.Price <= 0 || e.Quantity <= 0 {
			continue
		}
		ordered = append(ordered, e)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	lots := make(map[string][]*buyLot)
	var trades []*Trade

	for _, e := range ordered {
		switch e.Side {
		case domain.Buy:
			lots[e.Ticker] = append(lots[e.Ticker], &buyLot{
				date:      e.CreatedAt,
				stockName: e.StockName,
				price:     e.Price,
				remaining: e.Quantity,
			})
		case domain.Sell:
			queue := lots[e.Ticker]
			toSell := e.Quantity
			for toSell > 0 && len(queue) > 0 {
				lot := queue[0]
				qty := toSell
				if qty > lot.remaining {
					qty = lot.remaining
				}
				trades = append(trades, newTrade(e, lot, qty))
				lot.remaining -= qty
				toSell -= qty
				if lot.remaining == 0 {
					queue = queue[1:]
				}
			}
			lots[e.Ticker] = queue
		}
	}
	return trades
}

func newTrade(sell *domain.OrderLog, lot *buyLot, qty int64) *Trade {
	cost := lot.price * float64(qty)
	revenue := sell.Price * float64(qty)
	profit := revenue - cost
	profitPercent := 0.0
	if cost > 0 {
		profitPercent = profit / cost * 100
	}
	name := sell.StockName
	if name == "" {
		name = lot.stockName
	}
	return &Trade{
		Ticker:        sell.Ticker,
		StockName:     name,
		BuyDate:       lot.date,
		SellDate:      sell.CreatedAt,
		HoldingDays:   int(sell.CreatedAt.Sub(lot.date).Hours() / 24),
		Quantity:      qty,
		BuyPrice:      lot.price,
		SellPrice:     sell.Price,
		Cost:          cost,
		Revenue:       revenue,
		Profit:        profit,
		ProfitPercent: profitPercent,
		SellReasons:   sell.SellReasons,
	}
}
