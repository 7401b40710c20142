package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/lightwave/internal/delivery"
	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/logging"
	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/registry"
	"github.com/muurk/lightwave/internal/state"
)

// Features is what the API needs from the Smart hub. *hub.Smart satisfies it.
type Features interface {
	Connected() bool
	Values() map[string]registry.Value
	FeatureValue(featureID string) (state.State, bool)
	WriteFeature(ctx context.Context, featureID string, value int) error
}

// Link is what the API needs from the legacy hub. *hub.Legacy satisfies it.
type Link interface {
	Version() string
}

// API wires the hubs to HTTP handlers. Either hub may be nil.
type API struct {
	Smart    Features
	Legacy   Link
	Gatherer prometheus.Gatherer
	// Label names a feature id for humans; optional.
	Label func(featureID string) string
}

// Routes returns the HTTP routes of the status API.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", a.HandleHealth)
	if a.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/features", func(r chi.Router) {
		r.Get("/", a.HandleFeatures)
		r.Get("/{id}", a.HandleFeature)
		r.Put("/{id}", a.HandleWriteFeature)
	})
	return r
}

type healthResponse struct {
	Status string        `json:"status"`
	Smart  *smartHealth  `json:"smart,omitempty"`
	Legacy *legacyHealth `json:"legacy,omitempty"`
}

type smartHealth struct {
	Connected bool `json:"connected"`
	Features  int  `json:"features"`
}

type legacyHealth struct {
	Version string `json:"version,omitempty"`
}

// HandleHealth reports 503 while a configured Smart hub is disconnected.
func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK

	if a.Smart != nil {
		resp.Smart = &smartHealth{
			Connected: a.Smart.Connected(),
			Features:  len(a.Smart.Values()),
		}
		if !resp.Smart.Connected {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	if a.Legacy != nil {
		resp.Legacy = &legacyHealth{Version: a.Legacy.Version()}
	}

	writeJSON(w, status, resp)
}

type featureResponse struct {
	ID      string    `json:"id"`
	Label   string    `json:"label,omitempty"`
	Raw     int64     `json:"raw"`
	State   string    `json:"state,omitempty"`
	Updated time.Time `json:"updated"`
}

func (a *API) feature(id string, v registry.Value) featureResponse {
	f := featureResponse{ID: id, Raw: v.Raw, Updated: v.Updated}
	if a.Label != nil {
		if label := a.Label(id); label != id {
			f.Label = label
		}
	}
	if st, ok := a.Smart.FeatureValue(id); ok {
		f.State = st.String()
	}
	return f
}

// HandleFeatures lists every cached feature value, sorted by id.
func (a *API) HandleFeatures(w http.ResponseWriter, r *http.Request) {
	if a.Smart == nil {
		writeError(w, http.StatusServiceUnavailable, "smart hub not configured")
		return
	}

	values := a.Smart.Values()
	out := make([]featureResponse, 0, len(values))
	for id, v := range values {
		out = append(out, a.feature(id, v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	writeJSON(w, http.StatusOK, out)
}

// HandleFeature returns one cached feature value.
func (a *API) HandleFeature(w http.ResponseWriter, r *http.Request) {
	if a.Smart == nil {
		writeError(w, http.StatusServiceUnavailable, "smart hub not configured")
		return
	}

	id := chi.URLParam(r, "id")
	v, ok := a.Smart.Values()[id]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown feature "+id)
		return
	}
	writeJSON(w, http.StatusOK, a.feature(id, v))
}

type writeRequest struct {
	Value *int `json:"value"`
}

// HandleWriteFeature sends {"value": n} to the hub and waits for the ack.
func (a *API) HandleWriteFeature(w http.ResponseWriter, r *http.Request) {
	if a.Smart == nil {
		writeError(w, http.StatusServiceUnavailable, "smart hub not configured")
		return
	}

	id := chi.URLParam(r, "id")
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, `body must be {"value": <integer>}`)
		return
	}

	if err := a.Smart.WriteFeature(r.Context(), id, *req.Value); err != nil {
		logging.Warn("Feature write failed",
			zap.String("feature", id),
			zap.Int("value", *req.Value),
			zap.Error(err),
		)
		writeError(w, writeStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeStatus(err error) int {
	var perr *protocol.ProtocolError
	var exhausted *delivery.RetriesExhaustedError
	switch {
	case errors.Is(err, hub.ErrNotConnected), errors.Is(err, delivery.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.As(err, &perr):
		return http.StatusBadGateway
	case errors.As(err, &exhausted), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
