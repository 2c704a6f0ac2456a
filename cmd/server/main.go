package main

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quoteproxy/internal/aggregator"
	"quoteproxy/internal/config"
	"quoteproxy/internal/httpx"
	"quoteproxy/internal/logging"
	"quoteproxy/internal/pricecache"
	"quoteproxy/internal/provider"
	"quoteproxy/internal/provider/binance"
	"quoteproxy/internal/provider/metaapi"
	"quoteproxy/internal/provider/ratelimit"
)

func main() {
	log, err := logging.New()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	if cfg.MetaAPI.Token == "" {
		log.Warn("METAAPI_TOKEN not set; forex/metals fetches will be rejected upstream")
	}

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	metaOpts := []metaapi.ClientOption{metaapi.WithHTTPClient(httpClient.HTTP)}
	if cfg.MetaAPI.Endpoint != "" {
		metaOpts = append(metaOpts, metaapi.WithBaseURL(cfg.MetaAPI.Endpoint))
	}
	metaClient, err := metaapi.NewClient(cfg.MetaAPI.Token, metaOpts...)
	if err != nil {
		log.Fatal("metaapi client", zap.Error(err))
	}
	metaSource := metaapi.NewSource("MetaAPI", metaClient)

	// The upstream allows one call per second in aggregate, so the
	// parallel batch path goes through a rate limiter.
	forex := limitSource(metaSource, cfg.MetaAPI)

	crypto := binance.New(binance.Config{BaseURL: cfg.Binance.Endpoint}, httpClient)

	cache := pricecache.New()
	agg := aggregator.New(cache, forex, crypto, log, aggregator.Options{
		BatchTTL:         time.Duration(cfg.Cache.BatchTTLSec) * time.Second,
		RefreshTTL:       time.Duration(cfg.Cache.RefreshTTLSec) * time.Second,
		BatchConcurrency: cfg.MetaAPI.BatchMaxConcurrent,
		FetchTimeout:     timeout,
	})

	srv := &server{agg: agg, lister: metaSource, log: log}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(srv.routes()), log))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional periodic refresh; disabled unless configured. The cycle
	// itself stays callable on demand via POST /refresh either way.
	if cfg.Refresh.IntervalSec > 0 {
		interval := time.Duration(cfg.Refresh.IntervalSec) * time.Second
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					agg.RefreshAll(ctx)
				}
			}
		}()
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// limitSource picks the outbound rate limiter for the forex/metals
// upstream. Prefer token bucket with burst if RPM is set, otherwise use
// min-interval.
func limitSource(src provider.Source, cfg config.MetaAPI) provider.Source {
	if cfg.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.MaxRequestsPerMinute) / 60.0
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		return &ratelimit.TokenBucketSource{S: src, TB: ratelimit.NewTokenBucket(rate, burst)}
	}
	if cfg.MinIntervalSec > 0 {
		return &ratelimit.MinInterval{S: src, Interval: time.Duration(cfg.MinIntervalSec) * time.Second}
	}
	return src
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
