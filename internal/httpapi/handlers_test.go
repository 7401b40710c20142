package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/lightwave/internal/delivery"
	"github.com/muurk/lightwave/internal/hub"
	"github.com/muurk/lightwave/internal/protocol"
	"github.com/muurk/lightwave/internal/registry"
	"github.com/muurk/lightwave/internal/state"
)

type fakeSmart struct {
	connected bool
	values    map[string]registry.Value
	states    map[string]state.State
	writes    map[string]int
	writeErr  error
}

func newFakeSmart() *fakeSmart {
	updated := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &fakeSmart{
		connected: true,
		values: map[string]registry.Value{
			"5-2-1": {Raw: 1, Updated: updated},
			"5-1-1": {Raw: 215, Updated: updated},
		},
		states: map[string]state.State{
			"5-1-1": state.DecimalType(21.5),
		},
		writes: make(map[string]int),
	}
}

func (f *fakeSmart) Connected() bool                   { return f.connected }
func (f *fakeSmart) Values() map[string]registry.Value { return f.values }

func (f *fakeSmart) FeatureValue(id string) (state.State, bool) {
	st, ok := f.states[id]
	return st, ok
}

func (f *fakeSmart) WriteFeature(_ context.Context, id string, value int) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes[id] = value
	return nil
}

type fakeLink struct{ version string }

func (l fakeLink) Version() string { return l.version }

func serve(t *testing.T, api *API, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	smart := newFakeSmart()
	api := &API{Smart: smart, Legacy: fakeLink{version: "N2.94D"}}

	rec := serve(t, api, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Smart.Connected)
	assert.Equal(t, 2, body.Smart.Features)
	assert.Equal(t, "N2.94D", body.Legacy.Version)

	smart.connected = false
	rec = serve(t, api, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestHealthWithoutHubs(t *testing.T) {
	rec := serve(t, &API{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFeatures(t *testing.T) {
	api := &API{
		Smart: newFakeSmart(),
		Label: func(id string) string {
			if id == "5-1-1" {
				return "Lounge temperature"
			}
			return id
		},
	}

	rec := serve(t, api, http.MethodGet, "/features", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []featureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)

	assert.Equal(t, "5-1-1", body[0].ID)
	assert.Equal(t, "Lounge temperature", body[0].Label)
	assert.Equal(t, int64(215), body[0].Raw)
	assert.Equal(t, "21.5", body[0].State)

	assert.Equal(t, "5-2-1", body[1].ID)
	assert.Empty(t, body[1].Label)
	assert.Empty(t, body[1].State)
}

func TestFeature(t *testing.T) {
	api := &API{Smart: newFakeSmart()}

	rec := serve(t, api, http.MethodGet, "/features/5-1-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body featureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "21.5", body.State)

	rec = serve(t, api, http.MethodGet, "/features/9-9-9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeaturesWithoutSmart(t *testing.T) {
	for _, path := range []string{"/features", "/features/5-1-1"} {
		rec := serve(t, &API{}, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestWriteFeature(t *testing.T) {
	smart := newFakeSmart()
	api := &API{Smart: smart}

	rec := serve(t, api, http.MethodPut, "/features/5-2-1", `{"value": 0}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, smart.writes["5-2-1"])

	for _, body := range []string{`{}`, `not json`, `{"value": "on"}`} {
		rec = serve(t, api, http.MethodPut, "/features/5-2-1", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestWriteFeatureErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not connected", hub.ErrNotConnected, http.StatusServiceUnavailable},
		{"stopped", delivery.ErrStopped, http.StatusServiceUnavailable},
		{"rejected", fmt.Errorf("write: %w", &protocol.ProtocolError{Code: 400, Text: "bad value"}), http.StatusBadGateway},
		{"exhausted", &delivery.RetriesExhaustedError{ID: "7", Attempts: 3}, http.StatusGatewayTimeout},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			smart := newFakeSmart()
			smart.writeErr = tt.err
			rec := serve(t, &API{Smart: smart}, http.MethodPut, "/features/5-2-1", `{"value": 1}`)
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "lightwave_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	rec := serve(t, &API{Gatherer: reg}, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lightwave_test_total 1")

	rec = serve(t, &API{}, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
