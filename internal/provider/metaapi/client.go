package metaapi

import (
	"net/http"
)

const defaultBaseURL = "https://mt-client-api-v1.london.agiliumtrade.ai"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=metaapi_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the MetaAPI current-price endpoints.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the Client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new MetaAPI client. The token is sent as the
// auth-token header on every request.
func NewClient(token string, options ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	if token != "" {
		client.header.Set("auth-token", token)
	}
	for _, option := range options {
		option(client)
	}
	return client, nil
}
