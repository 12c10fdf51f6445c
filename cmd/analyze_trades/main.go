package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"adaptive-trading-bot/config"
	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/journal"
	"adaptive-trading-bot/internal/logging"
)

type ReasonStats struct {
	Reason   string
	Trades   int
	Wins     int
	TotalPnL float64
}

func main() {
	limit := flag.Int("limit", 0, "only the most recent N trades (0 = all)")
	asJSON := flag.Bool("json", false, "print the summary as JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := logging.Nop()

	store, err := database.Open(ctx, cfg.StorageOptions(), logger)
	if err != nil {
		fmt.Printf("❌ Failed to open %s store: %v\n", cfg.Storage.Backend, err)
		os.Exit(1)
	}
	defer store.Close()

	j := journal.New(store, cfg.Engine.JournalCapacity, logger)
	if err := j.Load(ctx); err != nil {
		fmt.Printf("⚠️  Journal unreadable: %v\n", err)
	}

	entries := j.Entries(*limit)
	summary := journal.Summarize(entries)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Printf("❌ Failed to encode summary: %v\n", err)
			os.Exit(1)
		}
		return
	}

	line := strings.Repeat("=", 80)
	fmt.Println(line)
	fmt.Printf("📊 PAPER TRADE JOURNAL: %s (%s store, namespace %s)\n", cfg.Engine.Symbol, cfg.Storage.Backend, cfg.Storage.Namespace)
	fmt.Println(line)

	if summary.Trades == 0 {
		fmt.Println("\n❌ No closed trades in the journal")
		return
	}

	fmt.Printf("\n💰 Balance after last trade: $%.2f\n", entries[len(entries)-1].Balance)
	fmt.Printf("📈 Total PnL: $%+.2f over %d trades (%.1f%% wins)\n", summary.TotalPnL, summary.Trades, summary.WinRate)
	fmt.Printf("🏆 Best: $%+.2f | 💀 Worst: $%+.2f | Liquidations: %d\n", summary.Best, summary.Worst, summary.Liquidations)

	fmt.Println("\n" + line)
	fmt.Println("📈 PERFORMANCE BY PATTERN")
	fmt.Println(line)

	fmt.Println("┌──────────────────────────┬────────┬─────────┬──────────────┬──────────────┬──────────┐")
	fmt.Println("│ Pattern                  │ Trades │ Winners │ Total PnL    │ Avg PnL      │ Win Rate │")
	fmt.Println("├──────────────────────────┼────────┼─────────┼──────────────┼──────────────┼──────────┤")
	for _, p := range summary.ByPattern {
		emoji := "🟢"
		if p.PnL < 0 {
			emoji = "🔴"
		}
		fmt.Printf("│ %s %-22s │ %6d │ %7d │ %+12.2f │ %+12.2f │ %7.1f%% │\n",
			emoji, truncate(p.Pattern, 22), p.Trades, p.Wins, p.PnL, p.PnL/float64(maxInt(p.Trades, 1)), p.WinRate())
	}
	fmt.Println("└──────────────────────────┴────────┴─────────┴──────────────┴──────────────┴──────────┘")

	fmt.Println("\n" + line)
	fmt.Println("🚪 EXITS BY REASON")
	fmt.Println(line)
	for _, r := range byReason(entries) {
		winRate := float64(r.Wins) / float64(maxInt(r.Trades, 1)) * 100
		fmt.Printf("   %-14s %4d trades | PnL $%+.2f | Win rate %.1f%%\n", r.Reason, r.Trades, r.TotalPnL, winRate)
	}

	fmt.Println("\n" + line)
	fmt.Println("💡 INSIGHTS")
	fmt.Println(line)
	if summary.WinRate < 50 {
		fmt.Printf("\n   ⚠️  Overall win rate is %.1f%% - BELOW 50%%\n", summary.WinRate)
	} else {
		fmt.Printf("\n   ✅ Overall win rate is %.1f%% - above 50%%\n", summary.WinRate)
	}
	if summary.Liquidations > 0 {
		fmt.Printf("   ⚠️  %d liquidation(s): check leverage tiers and stop distances\n", summary.Liquidations)
	}
}

func byReason(entries []journal.Entry) []ReasonStats {
	stats := make(map[string]*ReasonStats)
	for _, e := range entries {
		s, ok := stats[e.Reason]
		if !ok {
			s = &ReasonStats{Reason: e.Reason}
			stats[e.Reason] = s
		}
		s.Trades++
		s.TotalPnL += e.PnL
		if e.PnL > 0 {
			s.Wins++
		}
	}

	sorted := make([]ReasonStats, 0, len(stats))
	for _, s := range stats {
		sorted = append(sorted, *s)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Trades > sorted[j].Trades
	})
	return sorted
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
