package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"stockpilot/internal/adapters/logger"
	"stockpilot/internal/adapters/sqlite"
	"stockpilot/internal/pnl"
)

func main() {
	dbPath := flag.String("db", "./data/stockpilot.db", "Path to the SQLite database")
	accountID := flag.String("account", "", "Account ID to report on (required)")
	days := flag.Int("days", 30, "Report window in days")
	flag.Parse()

	if *accountID == "" {
		flag.Usage()
		log.Fatal("Error: -account is required")
	}
	if *days <= 0 {
		log.Fatal("Error: -days must be positive")
	}

	appLogger := logger.NewStdLogger(logger.LevelWarn)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: *dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	since := time.Now().AddDate(0, 0, -*days)
	entries, err := repo.FindSince(ctx, *accountID, since)
	if err != nil {
		log.Fatalf("Error loading order log: %v", err)
	}

	report := pnl.NewReport(pnl.Match(entries))
	if report.Stats.TotalTrades == 0 {
		fmt.Printf("No realized trades for account %s in the last %d days.\n", *accountID, *days)
		return
	}

	printReport(report, *accountID, *days)
}

func printReport(report *pnl.Report, accountID string, days int) {
	fmt.Printf("## Realized P&L for %s (last %d days)\n\n", accountID, days)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Ticker\tSellDate\tQty\tBuy\tSell\tProfit\tProfit%\tDays\tReasons\t")
	for _, tr := range report.Trades {
		reasons := ""
		if len(tr.SellReasons) > 0 {
			reasons = tr.SellReasons[0]
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%s\t\n",
			tr.Ticker,
			tr.SellDate.Format("2006-01-02"),
			tr.Quantity,
			tr.BuyPrice,
			tr.SellPrice,
			tr.Profit,
			tr.ProfitPercent,
			tr.HoldingDays,
			reasons,
		)
	}
	w.Flush()

	s := report.Stats
	fmt.Printf("\nTrades: %d  Wins: %d  Losses: %d  WinRate: %.1f%%\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.WinRate)
	fmt.Printf("Cost: %.2f  Revenue: %.2f  Profit: %.2f (%.2f%%)\n",
		s.TotalCost, s.TotalRevenue, s.TotalProfit, s.TotalProfitPct)
	fmt.Printf("AvgProfit: %.2f%%  AvgWin: %.2f%%  AvgLoss: %.2f%%  AvgHold: %.1f days\n",
		s.AvgProfitPct, s.AvgWinProfitPct, s.AvgLossProfitPct, s.AvgHoldingDays)

	fmt.Println("\n## By Ticker")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "Ticker\tTrades\tQty\tCost\tProfit\tProfit%\tWinRate\t")
	for _, ts := range report.ByTicker {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.1f%%\t\n",
			ts.Ticker, ts.Trades, ts.Quantity, ts.TotalCost, ts.TotalProfit, ts.ProfitPct, ts.WinRate)
	}
	tw.Flush()
}
