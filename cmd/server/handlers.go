package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"quoteproxy/internal/instruments"
	"quoteproxy/internal/provider"
)

type priceResolver interface {
	ResolvePrice(ctx context.Context, symbol string) (provider.Quote, bool)
	ResolveBatch(ctx context.Context, symbols []string) map[string]provider.Quote
	StartRefresh(ctx context.Context) bool
}

type instrumentLister interface {
	Instruments(ctx context.Context) ([]instruments.Instrument, error)
}

type server struct {
	agg    priceResolver
	lister instrumentLister
	log    *zap.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /instruments", s.handleInstruments)
	mux.HandleFunc("POST /batch", s.handleBatch)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /{symbol}", s.handleSymbol)
	return mux
}

type instrumentsResponse struct {
	Success     bool                     `json:"success"`
	Instruments []instruments.Instrument `json:"instruments"`
}

// handleInstruments serves the instrument list, falling back to the
// static defaults when the upstream cannot be reached. This is the only
// endpoint that substitutes data on failure.
func (s *server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	ins, err := s.lister.Instruments(r.Context())
	if err != nil {
		s.log.Warn("instrument list fetch failed, serving defaults", zap.Error(err))
		ins = instruments.Defaults()
	}
	writeJSON(w, http.StatusOK, instrumentsResponse{Success: true, Instruments: ins})
}

type priceResponse struct {
	Success bool           `json:"success"`
	Price   provider.Quote `json:"price"`
}

func (s *server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	q, ok := s.agg.ResolvePrice(r.Context(), symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "Price not available")
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Success: true, Price: q})
}

type batchRequest struct {
	// Pointer so a missing field can be told apart from an empty list.
	Symbols *[]string `json:"symbols"`
}

type batchResponse struct {
	Success bool                      `json:"success"`
	Prices  map[string]provider.Quote `json:"prices"`
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "symbols must be an array of strings")
		return
	}
	if body.Symbols == nil {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	symbols := make([]string, 0, len(*body.Symbols))
	for _, sym := range *body.Symbols {
		symbols = append(symbols, strings.ToUpper(sym))
	}

	prices := s.agg.ResolveBatch(r.Context(), symbols)
	writeJSON(w, http.StatusOK, batchResponse{Success: true, Prices: prices})
}

type refreshResponse struct {
	Success bool `json:"success"`
	Started bool `json:"started"`
}

// handleRefresh kicks off a full-refresh cycle in the background. A cycle
// already in flight makes this a no-op with started=false.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives the request on purpose: it can take a second
	// per forex symbol under the upstream rate limit.
	started := s.agg.StartRefresh(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, refreshResponse{Success: true, Started: started})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Message: msg})
}
