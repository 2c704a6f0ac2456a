package metaapi

import (
	"context"
	"errors"

	"quoteproxy/internal/instruments"
	"quoteproxy/internal/provider"
)

// Source adapts the MetaAPI client to the provider.Source contract.
// The upstream allows at most one call per second in aggregate; enforcing
// that is the caller's job, the source only performs the single call.
type Source struct {
	name   string
	client *Client
}

func NewSource(name string, client *Client) *Source {
	if name == "" {
		name = "MetaAPI"
	}
	return &Source{name: name, client: client}
}

func (s *Source) Name() string { return s.name }

// FetchOne fetches the current quote for one provider symbol. Transport
// failures, non-2xx responses and a missing bid all come back as a
// FetchError. A missing ask falls back to the bid.
func (s *Source) FetchOne(ctx context.Context, providerSymbol string) (provider.Quote, error) {
	data, err := s.client.CurrentPrice(ctx, providerSymbol)
	if err != nil {
		return provider.Quote{}, &provider.FetchError{Source: s.name, Symbol: providerSymbol, Err: err}
	}
	if data.Bid == nil {
		return provider.Quote{}, &provider.FetchError{Source: s.name, Symbol: providerSymbol, Err: errors.New("no bid price in response")}
	}
	q := provider.Quote{Bid: *data.Bid, Ask: *data.Bid}
	if data.Ask != nil {
		q.Ask = *data.Ask
	}
	return q, nil
}

// Instruments fetches the upstream symbol list and converts it to
// instrument metadata. Bare-name entries are filled in from the static
// defaults when known.
func (s *Source) Instruments(ctx context.Context) ([]instruments.Instrument, error) {
	entries, err := s.client.Symbols(ctx)
	if err != nil {
		return nil, &provider.FetchError{Source: s.name, Err: err}
	}

	defaults := make(map[string]instruments.Instrument)
	for _, in := range instruments.Defaults() {
		defaults[in.Symbol] = in
	}

	out := make([]instruments.Instrument, 0, len(entries))
	for _, e := range entries {
		if e.Symbol == "" {
			continue
		}
		in, known := defaults[e.Symbol]
		if !known {
			in = instruments.Instrument{Symbol: e.Symbol, Name: e.Symbol, Category: "forex", Digits: 5, ContractSize: 100000, MinVolume: 0.01, MaxVolume: 100, VolumeStep: 0.01}
		}
		if spec := e.Spec; spec != nil {
			if spec.Description != "" {
				in.Name = spec.Description
			}
			if spec.Digits > 0 {
				in.Digits = spec.Digits
			}
			if spec.ContractSize > 0 {
				in.ContractSize = spec.ContractSize
			}
			if spec.MinVolume > 0 {
				in.MinVolume = spec.MinVolume
			}
			if spec.MaxVolume > 0 {
				in.MaxVolume = spec.MaxVolume
			}
			if spec.VolumeStep > 0 {
				in.VolumeStep = spec.VolumeStep
			}
		}
		out = append(out, in)
	}
	return out, nil
}
