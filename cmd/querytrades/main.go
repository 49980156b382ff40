package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/aggression-monitor/internal/config"
	"github.com/rickgao/aggression-monitor/internal/model"
	"github.com/rickgao/aggression-monitor/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (reads storage.sqlite.path)")
	dbPath := flag.String("db", "trades.db", "SQLite database path, used when -config is empty")
	symbol := flag.String("symbol", "BTCUSDT", "exchange symbol")
	minutes := flag.Int("minutes", 10, "lookback in minutes")
	limit := flag.Int("limit", 50, "max trades to print, 0 for all")
	flag.Parse()

	path := *dbPath
	if *configPath != "" {
		cfg, err := config.LoadWithDefaults(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		path = cfg.Storage.SQLite.Path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	sym := strings.ToUpper(*symbol)
	since := time.Now().Add(-time.Duration(*minutes) * time.Minute)
	trades, err := db.RecentTrades(ctx, sym, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}

	total, err := db.Count(ctx, sym)
	if err != nil {
		fmt.Fprintf(os.Stderr, "count: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d trades in the last %d minutes (%d stored)\n\n", sym, len(trades), *minutes, total)

	shown := trades
	if *limit > 0 && len(shown) > *limit {
		shown = shown[len(shown)-*limit:]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSIDE\tPRICE\tQTY")
	for _, t := range shown {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.Time.Local().Format("15:04:05.000"), t.Side(), t.Price.String(), t.Quantity.String())
	}
	w.Flush()

	buy, sell := volumes(trades)
	fmt.Printf("\nbuy %s  sell %s  imbalance %s\n", buy.StringFixed(4), sell.StringFixed(4), buy.Sub(sell).StringFixed(4))
}

func volumes(trades []model.Trade) (buy, sell decimal.Decimal) {
	for _, t := range trades {
		if t.Side() == model.DirectionBuy {
			buy = buy.Add(t.Quantity)
		} else {
			sell = sell.Add(t.Quantity)
		}
	}
	return buy, sell
}
