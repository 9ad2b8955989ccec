package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"place-api/internal/cache"
	"place-api/internal/place"
	"place-api/internal/providers"
	"place-api/internal/ratelimit"
	"place-api/internal/search"
	"place-api/internal/store"
)

type stubProvider struct {
	name  string
	names []string
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Enabled() bool { return true }
func (p *stubProvider) Query(_ context.Context, _ string, _ place.Type) ([]place.Result, error) {
	var out []place.Result
	for _, n := range p.names {
		r, _ := place.NewResult(place.Fields{Name: n, Country: "France"})
		out = append(out, r)
	}
	return out, nil
}

type memRecorder struct {
	mu     sync.Mutex
	events []store.Event
}

func (m *memRecorder) Record(_ context.Context, ev store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

type stubTotals struct{ err error }

func (s stubTotals) GetTotals(context.Context) (*store.Totals, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &store.Totals{Total: 10, Today: 3}, nil
}

func newMux(t *testing.T, rec store.Recorder, totals TotalsReader) *http.ServeMux {
	t.Helper()
	reg := providers.NewRegistry(providers.Descriptor{Provider: &stubProvider{name: "photon", names: []string{"Paris"}}})
	g := ratelimit.NewGate()
	reg.Apply(g)
	return BuildRoutes(search.New(reg, g, cache.New(10, time.Hour)), rec, totals)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchRoute(t *testing.T) {
	rec := &memRecorder{}
	mux := newMux(t, rec, nil)

	res := get(t, mux, "/search?q=Paris&type=flight")
	require.Equal(t, http.StatusOK, res.Code)
	var body searchResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "photon", body.Source)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Paris, France", body.Results[0].DisplayName)

	res = get(t, mux, "/search?q=%20paris%20&type=flight")
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.True(t, body.Cached)
	assert.Equal(t, "cache", body.Source)

	require.Len(t, rec.events, 2)
	assert.Equal(t, "flight", rec.events[0].Type)
	assert.Equal(t, "cache", rec.events[1].Source)
}

func TestSearchRoute_ShortQuery(t *testing.T) {
	res := get(t, newMux(t, nil, nil), "/search?q=p")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"results":[],"source":"validation","cached":false,"count":0}`, res.Body.String())
}

func TestSearchRoute_BadInput(t *testing.T) {
	mux := newMux(t, nil, nil)
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/search").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/search?q=paris&type=spaceport").Code)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search?q=paris", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatsAndReset(t *testing.T) {
	mux := newMux(t, nil, stubTotals{})
	get(t, mux, "/search?q=paris")

	res := get(t, mux, "/stats")
	var st map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &st))
	assert.EqualValues(t, 1, st["totalRequests"])
	assert.EqualValues(t, 1, st["providerUsage"].(map[string]any)["photon"])
	assert.EqualValues(t, 10, st["persisted"].(map[string]any)["total"])

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats/reset", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	res = get(t, mux, "/stats")
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &st))
	assert.EqualValues(t, 0, st["totalRequests"])
	assert.EqualValues(t, 1, st["cacheSize"])
}

func TestStats_TotalsErrorIsOmitted(t *testing.T) {
	mux := newMux(t, nil, stubTotals{err: errors.New("db down")})
	res := get(t, mux, "/stats")
	require.Equal(t, http.StatusOK, res.Code)
	assert.NotContains(t, res.Body.String(), "persisted")
}

func TestCacheClearRoute(t *testing.T) {
	mux := newMux(t, nil, nil)
	get(t, mux, "/search?q=paris")

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, mux, "/cache/clear").Code)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cache/clear", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared":1}`, rec.Body.String())

	res := get(t, mux, "/search?q=paris")
	var body searchResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.False(t, body.Cached)
}

func TestHealthAndPing(t *testing.T) {
	mux := newMux(t, nil, nil)

	res := get(t, mux, "/health")
	var h healthResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	require.Len(t, h.Providers, 1)
	assert.Equal(t, "photon", h.Providers[0].Name)

	assert.Equal(t, "pong", get(t, mux, "/ping").Body.String())
}
