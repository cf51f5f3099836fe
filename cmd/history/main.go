package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xrpl-amm-history/internal/cache"
	"xrpl-amm-history/internal/config"
	"xrpl-amm-history/internal/discovery"
	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/history"
	"xrpl-amm-history/internal/ingestion"
	"xrpl-amm-history/internal/observability"
	"xrpl-amm-history/internal/storage"
	chstore "xrpl-amm-history/internal/storage/clickhouse"
	"xrpl-amm-history/internal/storage/migrations"
	"xrpl-amm-history/internal/xrpl"
)

func main() {
	currency1 := flag.String("currency1", "", "First asset currency code")
	issuer1 := flag.String("issuer1", "", "First asset issuer (empty for XRP)")
	currency2 := flag.String("currency2", "XRP", "Second asset currency code")
	issuer2 := flag.String("issuer2", "", "Second asset issuer (empty for XRP)")
	rangeToken := flag.String("range", "30D", "Time range: 1H, 6H, 24H, 7D, 30D, ALL")
	asJSON := flag.Bool("json", false, "Print series and stats as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[history] ", log.LstdFlags)

	if *currency1 == "" {
		logger.Fatal("Missing --currency1")
	}

	cfg := config.Load()

	metrics := observability.NewMetrics("")
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer redisStore.Close()
		store = redisStore
	}
	layer := cache.New(cache.Options{Store: store, Logger: logger, Metrics: metrics})
	layer.StartSweeper(ctx, cfg.SweepInterval)

	var archive storage.SeriesArchiveStore
	if cfg.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse: %v", err)
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatalf("ClickHouse migrations: %v", err)
		}
		archive = chstore.NewSeriesArchiveStore(conn)
	}

	pool := xrpl.NewPool(xrpl.PoolOptions{Metrics: metrics})
	service := history.New(history.Options{
		Resolver: discovery.New(discovery.Options{
			Endpoints: cfg.Endpoints,
			Pool:      pool,
			Logger:    logger,
		}),
		Fetcher: ingestion.New(ingestion.Options{
			Endpoints: cfg.Endpoints,
			Pool:      pool,
			Metrics:   metrics,
			Logger:    logger,
		}),
		Cache:   layer,
		Archive: archive,
		Logger:  logger,
		Metrics: metrics,
	})

	pair := domain.Pair{
		First:  domain.Asset{Currency: *currency1, Issuer: *issuer1},
		Second: domain.Asset{Currency: *currency2, Issuer: *issuer2},
	}
	rng := domain.ParseTimeRange(*rangeToken)

	progress := func(p ingestion.Progress) {
		fmt.Fprintf(os.Stderr, "%3d%% %s\n", p.Percent, p.Message)
	}

	result, err := service.PairHistory(ctx, pair, rng, progress)
	if err != nil {
		logger.Fatalf("History: %v", err)
	}

	if !result.PoolFound {
		fmt.Println("No liquidity pool found for this pair.")
		return
	}

	if *asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logger.Fatalf("Encode result: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("Series (%s, %d points):\n", rng, len(result.Series))
	for _, p := range result.Series {
		fmt.Printf("  %s  price=%.6f  volume=%.4f  buyingBase=%v\n",
			time.UnixMilli(p.Time).UTC().Format(time.RFC3339), p.QuotePerBase, p.Volume, p.BuyingBase)
	}
	fmt.Printf("Stats: current=%.6f high=%.6f low=%.6f change24h=%.2f%% volume=%.4f\n",
		result.Stats.Current, result.Stats.High, result.Stats.Low,
		result.Stats.Change24, result.Stats.Volume)
}
