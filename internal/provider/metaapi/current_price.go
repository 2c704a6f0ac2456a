package metaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// PriceData is the current-price payload for one symbol. Bid and Ask are
// pointers so an absent field can be told apart from a zero price.
type PriceData struct {
	Symbol string   `json:"symbol"`
	Bid    *float64 `json:"bid"`
	Ask    *float64 `json:"ask"`
	Time   string   `json:"time"`
}

// CurrentPrice retrieves the current price for one provider symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (PriceData, error) {
	u := fmt.Sprintf("%s/symbols/%s/current-price", c.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return PriceData{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return PriceData{}, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return PriceData{}, fmt.Errorf("GET %s -> %d: %s", u, res.StatusCode, string(b))
	}

	var data PriceData
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return PriceData{}, fmt.Errorf("decode: %w", err)
	}
	return data, nil
}
