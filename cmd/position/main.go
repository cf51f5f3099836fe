package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"xrpl-amm-history/internal/config"
	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/quote"
	"xrpl-amm-history/internal/storage"
	"xrpl-amm-history/internal/storage/memory"
	"xrpl-amm-history/internal/storage/migrations"
	pgstore "xrpl-amm-history/internal/storage/postgres"
)

func main() {
	account := flag.String("account", "", "Account whose swap history to quote")
	prices := flag.String("prices", "", `Reference prices, e.g. "USD-rIssuer=1.0,XRP-=0.52"`)
	importPath := flag.String("import", "", "JSON file of swap records to insert before quoting")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	logger := log.New(os.Stderr, "[position] ", log.LstdFlags)

	if *account == "" {
		logger.Fatal("Missing --account")
	}

	table, err := parsePrices(*prices)
	if err != nil {
		logger.Fatalf("Prices: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()

	var store storage.SwapRecordStore
	if *useMemory || cfg.PostgresDSN == "" {
		store = memory.NewSwapRecordStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("Postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Migrations: %v", err)
		}
		store = pgstore.NewSwapRecordStore(pool)
	}

	if *importPath != "" {
		if err := importRecords(ctx, store, *account, *importPath); err != nil {
			logger.Fatalf("Import: %v", err)
		}
	}

	recs, err := store.GetByAccount(ctx, *account)
	if err != nil {
		logger.Fatalf("Load swap history: %v", err)
	}
	if len(recs) == 0 {
		fmt.Println("No swap history for this account.")
		return
	}

	swaps := make([]domain.SwapRecord, len(recs))
	for i, r := range recs {
		swaps[i] = *r
	}

	position, _ := quote.OpenPosition(swaps)
	fmt.Printf("Open position: sent %.6f %s, received %.6f %s\n",
		position.Value1, position.Currency1, position.Value2, position.Currency2)

	printQuote("Position quote", quote.PositionQuote(swaps, table))
	printQuote("Latest swap quote", quote.LatestSwapQuote(swaps, table))
}

// parsePrices decodes "KEY=value" pairs separated by commas.
func parsePrices(s string) (quote.PriceTable, error) {
	table := quote.PriceTable{}
	if s == "" {
		return table, nil
	}
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("malformed price %q", part)
		}
		price, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed price %q: %w", part, err)
		}
		table[key] = price
	}
	return table, nil
}

// importRecords bulk-inserts swap records from a JSON array file,
// ignoring records that are already stored.
func importRecords(ctx context.Context, store storage.SwapRecordStore, account, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var recs []*domain.SwapRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for _, rec := range recs {
		err := store.Insert(ctx, account, rec)
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return err
		}
	}
	return nil
}

func printQuote(label string, q *domain.QuoteRecord) {
	if q == nil {
		fmt.Printf("%s: unavailable (missing reference prices)\n", label)
		return
	}
	sign := ""
	if q.ProfitLoss > 0 {
		sign = "+"
	}
	fmt.Printf("%s: reverse=%.6f  P/L=%s%.6f (%s%.2f%%)  fee=%.1f%%\n",
		label, q.ReverseAmount, sign, q.ProfitLoss, sign, q.ProfitPercent, q.FeeRate*100)
}
