// Package binance fetches bid/ask quotes from the Binance bookTicker
// endpoints. One bulk call covers every listed pair, which keeps the
// request count low for batch and refresh work.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"quoteproxy/internal/httpx"
	"quoteproxy/internal/provider"
)

type Config struct {
	Name    string
	BaseURL string
}

type Source struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = "Binance"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

// bookTicker is the upstream payload. Prices arrive as decimal strings.
type bookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

func (t bookTicker) quote() (provider.Quote, error) {
	bid, err := strconv.ParseFloat(t.BidPrice, 64)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("bid price %q: %w", t.BidPrice, err)
	}
	ask, err := strconv.ParseFloat(t.AskPrice, 64)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("ask price %q: %w", t.AskPrice, err)
	}
	return provider.Quote{Bid: bid, Ask: ask}, nil
}

// FetchOne fetches the book ticker for a single pair.
func (s *Source) FetchOne(ctx context.Context, providerSymbol string) (provider.Quote, error) {
	u := s.cfg.BaseURL + "/api/v3/ticker/bookTicker?symbol=" + url.QueryEscape(providerSymbol)
	body, err := s.get(ctx, u)
	if err != nil {
		return provider.Quote{}, &provider.FetchError{Source: s.cfg.Name, Symbol: providerSymbol, Err: err}
	}
	defer body.Close()

	var t bookTicker
	if err := json.NewDecoder(body).Decode(&t); err != nil {
		return provider.Quote{}, &provider.FetchError{Source: s.cfg.Name, Symbol: providerSymbol, Err: fmt.Errorf("decode: %w", err)}
	}
	q, err := t.quote()
	if err != nil {
		return provider.Quote{}, &provider.FetchError{Source: s.cfg.Name, Symbol: providerSymbol, Err: err}
	}
	return q, nil
}

// FetchAll fetches book tickers for every listed pair in one call, keyed
// by provider symbol. Entries with unparsable prices are skipped.
func (s *Source) FetchAll(ctx context.Context) (map[string]provider.Quote, error) {
	u := s.cfg.BaseURL + "/api/v3/ticker/bookTicker"
	body, err := s.get(ctx, u)
	if err != nil {
		return nil, &provider.FetchError{Source: s.cfg.Name, Err: err}
	}
	defer body.Close()

	var tickers []bookTicker
	if err := json.NewDecoder(body).Decode(&tickers); err != nil {
		return nil, &provider.FetchError{Source: s.cfg.Name, Err: fmt.Errorf("decode: %w", err)}
	}

	out := make(map[string]provider.Quote, len(tickers))
	for _, t := range tickers {
		q, err := t.quote()
		if err != nil {
			continue
		}
		out[t.Symbol] = q
	}
	return out, nil
}

func (s *Source) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s -> %d: %s", u, resp.StatusCode, string(b))
	}
	return resp.Body, nil
}
