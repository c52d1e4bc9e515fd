// Package api serves the read/operate HTTP facade: enriched assets,
// marketplace listings and process status.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"carbon-credit-exchange/internal/domain"
	"carbon-credit-exchange/internal/marketplace"
	"carbon-credit-exchange/internal/observability"
	"carbon-credit-exchange/internal/reconcile"
	"carbon-credit-exchange/internal/storage"
)

// Enricher is satisfied by *reconcile.Engine.
type Enricher interface {
	Enrich(ctx context.Context, tokenID solanago.PublicKey) (*domain.EnrichedAssetView, error)
	EnrichAll(ctx context.Context, tokenIDs []solanago.PublicKey) []reconcile.Item
}

// Options configures a Server.
type Options struct {
	Enricher Enricher
	Records  storage.RecordStore
	Market   *marketplace.Service
	Status   func() any // extra fields for /status, optional
	Logger   *zap.Logger
}

// Server routes HTTP requests to the core components.
type Server struct {
	enricher Enricher
	records  storage.RecordStore
	market   *marketplace.Service
	status   func() any
	started  time.Time
	logger   *zap.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		enricher: opts.Enricher,
		records:  opts.Records,
		market:   opts.Market,
		status:   opts.Status,
		started:  time.Now(),
		logger:   logger,
	}
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/assets", s.handleAssetsByOwner).Methods(http.MethodGet)
	r.HandleFunc("/assets/{mint}", s.handleAsset).Methods(http.MethodGet)
	r.HandleFunc("/assets/{mint}/views", s.handleView).Methods(http.MethodPost)

	r.HandleFunc("/listings", s.handleListings).Methods(http.MethodGet)
	r.HandleFunc("/listings/stats", s.handleListingStats).Methods(http.MethodGet)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		observability.RecordHTTPRequest(route, rec.code)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status  string    `json:"status"`
	Started time.Time `json:"started"`
	Uptime  string    `json:"uptime"`
	Sync    any       `json:"sync,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:  "running",
		Started: s.started,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if s.status != nil {
		resp.Sync = s.status()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	mint, ok := mintVar(w, r)
	if !ok {
		return
	}

	view, err := s.enricher.Enrich(r.Context(), mint)
	if err != nil {
		var miss *reconcile.MissError
		if errors.As(err, &miss) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Warn("enrich failed", zap.String("mint", mint.String()), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newAssetResponse(view))
}

func (s *Server) handleAssetsByOwner(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner is required")
		return
	}
	if _, err := solanago.PublicKeyFromBase58(owner); err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	records, err := s.records.Query(r.Context(), domain.RecordFilter{Owner: owner, Limit: limit})
	if err != nil {
		s.logger.Error("query records", zap.String("owner", owner), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	mints := make([]solanago.PublicKey, 0, len(records))
	for _, rec := range records {
		m, err := solanago.PublicKeyFromBase58(rec.Mint)
		if err != nil {
			s.logger.Warn("record with malformed mint", zap.String("mint", rec.Mint))
			continue
		}
		mints = append(mints, m)
	}

	out := make([]assetResponse, 0, len(mints))
	for _, item := range s.enricher.EnrichAll(r.Context(), mints) {
		if item.Err != nil {
			s.logger.Warn("enrich failed", zap.String("mint", item.TokenID), zap.Error(item.Err))
			continue
		}
		out = append(out, newAssetResponse(item.View))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	mint, ok := mintVar(w, r)
	if !ok {
		return
	}
	views, err := s.records.IncrementViews(r.Context(), mint.String())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no record for "+mint.String())
		return
	}
	if err != nil {
		s.logger.Error("increment views", zap.String("mint", mint.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"views": views})
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	var seller solanago.PublicKey
	if v := r.URL.Query().Get("seller"); v != "" {
		pk, err := solanago.PublicKeyFromBase58(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid seller")
			return
		}
		seller = pk
	}

	entries, err := s.market.Entries(r.Context(), seller)
	if err != nil {
		s.logger.Warn("list entries", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	out := make([]listingResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newListingResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.market.Stats(r.Context())
	if err != nil {
		s.logger.Warn("listing stats", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func mintVar(w http.ResponseWriter, r *http.Request) (solanago.PublicKey, bool) {
	mint, err := solanago.PublicKeyFromBase58(mux.Vars(r)["mint"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mint")
		return solanago.PublicKey{}, false
	}
	return mint, true
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
