// Package instruments holds the static tradable-symbol universe: the
// routing tables deciding which upstream serves a symbol, and the
// instrument metadata returned by the /instruments endpoint.
package instruments

import "sort"

// Provider identifies the upstream source for a symbol.
type Provider int

const (
	Unsupported Provider = iota
	MetaAPI
	Binance
)

func (p Provider) String() string {
	switch p {
	case MetaAPI:
		return "metaapi"
	case Binance:
		return "binance"
	default:
		return "unsupported"
	}
}

// Assignment maps a canonical symbol to its upstream and the symbol name
// that upstream understands.
type Assignment struct {
	Provider       Provider
	ProviderSymbol string
}

// forexMetals is the allow-list served by the MetaAPI-style provider.
// Provider symbols are identical to canonical symbols.
var forexMetals = map[string]struct{}{
	"EURUSD": {},
	"GBPUSD": {},
	"USDJPY": {},
	"USDCHF": {},
	"USDCAD": {},
	"AUDUSD": {},
	"NZDUSD": {},
	"EURGBP": {},
	"EURJPY": {},
	"GBPJPY": {},
	"XAUUSD": {},
	"XAGUSD": {},
}

// crypto maps canonical symbols to Binance ticker symbols.
var crypto = map[string]string{
	"BTCUSD":  "BTCUSDT",
	"ETHUSD":  "ETHUSDT",
	"BNBUSD":  "BNBUSDT",
	"XRPUSD":  "XRPUSDT",
	"ADAUSD":  "ADAUSDT",
	"SOLUSD":  "SOLUSDT",
	"DOGEUSD": "DOGEUSDT",
	"LTCUSD":  "LTCUSDT",
}

// Classify resolves a symbol to its provider assignment. Pure lookup;
// unknown symbols come back as Unsupported, never an error.
func Classify(symbol string) Assignment {
	if _, ok := forexMetals[symbol]; ok {
		return Assignment{Provider: MetaAPI, ProviderSymbol: symbol}
	}
	if ps, ok := crypto[symbol]; ok {
		return Assignment{Provider: Binance, ProviderSymbol: ps}
	}
	return Assignment{Provider: Unsupported}
}

// ForexMetalsSymbols returns the forex/metals universe in stable order.
func ForexMetalsSymbols() []string {
	out := make([]string, 0, len(forexMetals))
	for s := range forexMetals {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CryptoSymbols returns the crypto universe in stable order.
func CryptoSymbols() []string {
	out := make([]string, 0, len(crypto))
	for s := range crypto {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
