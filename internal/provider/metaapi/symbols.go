package metaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SymbolEntry is one element of the upstream symbol list. The endpoint
// returns either a bare symbol name or a full specification object; the
// two shapes are resolved here, once, so nothing downstream has to sniff.
type SymbolEntry struct {
	Symbol string
	Spec   *SymbolSpec
}

// SymbolSpec is the specification object shape.
type SymbolSpec struct {
	Symbol       string  `json:"symbol"`
	Description  string  `json:"description"`
	Digits       int     `json:"digits"`
	ContractSize float64 `json:"contractSize"`
	MinVolume    float64 `json:"minVolume"`
	MaxVolume    float64 `json:"maxVolume"`
	VolumeStep   float64 `json:"volumeStep"`
}

func (e *SymbolEntry) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &e.Symbol)
	}
	var spec SymbolSpec
	if err := json.Unmarshal(b, &spec); err != nil {
		return err
	}
	e.Symbol = spec.Symbol
	e.Spec = &spec
	return nil
}

// Symbols retrieves the upstream symbol list.
func (c *Client) Symbols(ctx context.Context) ([]SymbolEntry, error) {
	u := c.baseURL + "/symbols"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, fmt.Errorf("GET %s -> %d: %s", u, res.StatusCode, string(b))
	}

	var entries []SymbolEntry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return entries, nil
}
