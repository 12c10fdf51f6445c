package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"adaptive-trading-bot/config"
	"adaptive-trading-bot/internal/database"
	"adaptive-trading-bot/internal/learning"
	"adaptive-trading-bot/internal/logging"
)

type PatternRow struct {
	Name string
	Stat learning.PatternStat
	Rank learning.Rank
}

type ContextRow struct {
	Hash  string
	Entry learning.MemoryEntry
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger := logging.Nop()

	store, err := database.Open(ctx, cfg.StorageOptions(), logger)
	if err != nil {
		fmt.Printf("Failed to open %s store: %v\n", cfg.Storage.Backend, err)
		os.Exit(1)
	}
	defer store.Close()

	brain := learning.NewBrain(store, logger)
	if err := brain.Load(ctx); err != nil {
		fmt.Printf("⚠️  Brain memory unreadable: %v\n", err)
	}
	ranker := learning.NewPatternRanker(store, cfg.Engine.BarSeconds(), logger)
	if err := ranker.Load(ctx); err != nil {
		fmt.Printf("⚠️  Pattern stats unreadable: %v\n", err)
	}

	line := strings.Repeat("=", 80)

	// Ranks are graded at the most recent trade time so cooldowns match what
	// the engine would see on its next candle.
	stats := ranker.Snapshot()
	var now int64
	for _, s := range stats {
		if s.LastTradeTime > now {
			now = s.LastTradeTime
		}
	}
	if now == 0 {
		now = time.Now().Unix()
	}

	rows := make([]PatternRow, 0, len(stats))
	for name, s := range stats {
		rows = append(rows, PatternRow{Name: name, Stat: s, Rank: ranker.Rank(name, now)})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Stat.PnL > rows[j].Stat.PnL
	})

	fmt.Println(line)
	fmt.Println("🧠 PATTERN RANKS")
	fmt.Println(line)
	if len(rows) == 0 {
		fmt.Println("\n   No pattern history yet")
	} else {
		fmt.Println("┌──────────────────────────┬──────┬────────┬─────────┬──────────────┬──────────┐")
		fmt.Println("│ Pattern                  │ Rank │ Trades │ Winners │ Total PnL    │ Win Rate │")
		fmt.Println("├──────────────────────────┼──────┼────────┼─────────┼──────────────┼──────────┤")
		for _, r := range rows {
			fmt.Printf("│ %-24s │ %-4s │ %6d │ %7d │ %+12.2f │ %7.1f%% │\n",
				truncate(r.Name, 24), r.Rank, r.Stat.Total(), r.Stat.Wins, r.Stat.PnL, r.Stat.WinRate())
		}
		fmt.Println("└──────────────────────────┴──────┴────────┴─────────┴──────────────┴──────────┘")
	}

	memory := brain.Snapshot()
	contexts := make([]ContextRow, 0, len(memory))
	for hash, e := range memory {
		contexts = append(contexts, ContextRow{Hash: hash, Entry: e})
	}
	sort.Slice(contexts, func(i, j int) bool {
		if contexts[i].Entry.Total() != contexts[j].Entry.Total() {
			return contexts[i].Entry.Total() > contexts[j].Entry.Total()
		}
		return contexts[i].Hash < contexts[j].Hash
	})

	fmt.Println("\n" + line)
	fmt.Println("🗺️  MARKET CONTEXT MEMORY")
	fmt.Println(line)
	vetoed := 0
	for _, c := range contexts {
		verdict := brain.Consult(c.Hash)
		mark := "✅"
		if !verdict.Approved {
			mark = "🚫"
			vetoed++
		}
		fmt.Printf("   %s %-48s %3d wins / %3d losses (%.1f%%)\n",
			mark, c.Hash, c.Entry.Wins, c.Entry.Losses, c.Entry.WinRate())
	}
	if len(contexts) == 0 {
		fmt.Println("   No market contexts recorded yet")
	}

	fmt.Println("\n" + line)
	fmt.Println("💡 INSIGHTS")
	fmt.Println(line)
	fmt.Printf("\n   %d of %d market contexts are vetoed\n", vetoed, len(contexts))
	for _, r := range rows {
		switch r.Rank {
		case learning.RankF:
			fmt.Printf("   🔴 %s is toxic and sits out its cooldown\n", r.Name)
		case learning.RankTest:
			fmt.Printf("   🟡 %s has served its cooldown and gets a TEST trade\n", r.Name)
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
