// Command fetch is a one-shot diagnostic: it resolves a set of symbols
// through the same aggregation path the server uses and prints the
// resulting quotes as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"quoteproxy/internal/aggregator"
	"quoteproxy/internal/config"
	"quoteproxy/internal/httpx"
	"quoteproxy/internal/pricecache"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/binance"
	"quoteproxy/internal/provider/metaapi"
	"quoteproxy/internal/provider/ratelimit"
)

func main() {
	var symbolsCSV string
	var timeout int
	var configPath string
	var refresh bool

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "EURUSD,BTCUSD"), "comma-separated symbols")
	flag.IntVar(&timeout, "timeout", 15, "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.BoolVar(&refresh, "refresh", false, "run a full refresh cycle instead of a batch lookup")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeout != 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	metaOpts := []metaapi.ClientOption{metaapi.WithHTTPClient(httpClient.HTTP)}
	if cfg.MetaAPI.Endpoint != "" {
		metaOpts = append(metaOpts, metaapi.WithBaseURL(cfg.MetaAPI.Endpoint))
	}
	metaClient, err := metaapi.NewClient(cfg.MetaAPI.Token, metaOpts...)
	if err != nil {
		log.Fatalf("metaapi client: %v", err)
	}

	var forex provider.Source = metaapi.NewSource("MetaAPI", metaClient)
	if cfg.MetaAPI.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.MetaAPI.MaxRequestsPerMinute) / 60.0
		burst := cfg.MetaAPI.Burst
		if burst <= 0 {
			burst = 1
		}
		forex = &ratelimit.TokenBucketSource{S: forex, TB: ratelimit.NewTokenBucket(rate, burst)}
	} else if cfg.MetaAPI.MinIntervalSec > 0 {
		forex = &ratelimit.MinInterval{S: forex, Interval: time.Duration(cfg.MetaAPI.MinIntervalSec) * time.Second}
	}
	crypto := binance.New(binance.Config{BaseURL: cfg.Binance.Endpoint}, httpClient)

	cache := pricecache.New()
	agg := aggregator.New(cache, forex, crypto, nil, aggregator.Options{
		BatchTTL:         time.Duration(cfg.Cache.BatchTTLSec) * time.Second,
		RefreshTTL:       time.Duration(cfg.Cache.RefreshTTLSec) * time.Second,
		BatchConcurrency: cfg.MetaAPI.BatchMaxConcurrent,
		FetchTimeout:     time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	})

	ctx := context.Background()
	if refresh {
		agg.RefreshAll(ctx)
		fmt.Fprintf(os.Stderr, "refreshed %d symbols\n", cache.Len())
		return
	}

	prices := agg.ResolveBatch(ctx, splitCSV(symbolsCSV))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(prices); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
