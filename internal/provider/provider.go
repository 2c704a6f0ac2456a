package provider

import (
	"context"
	"fmt"
)

// Quote is the normalized bid/ask shape returned by all sources.
// Upstream data is passed through as-is: ask >= bid is expected but not
// enforced here.
type Quote struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// Source fetches the current quote for one provider-native symbol.
type Source interface {
	Name() string
	FetchOne(ctx context.Context, providerSymbol string) (Quote, error)
}

// BulkSource additionally supports a single call returning quotes for
// every symbol the provider serves, keyed by provider-native symbol.
type BulkSource interface {
	Source
	FetchAll(ctx context.Context) (map[string]Quote, error)
}

// FetchError is the single failure value crossing the adapter boundary.
// Transport failures, non-2xx responses and missing required fields all
// collapse into it; callers only need "this quote could not be obtained".
type FetchError struct {
	Source string
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: fetch: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s: fetch %s: %v", e.Source, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
