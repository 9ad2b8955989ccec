package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"place-api/internal/cache"
	"place-api/internal/place"
	"place-api/internal/providers"
	"place-api/internal/ratelimit"
)

type fakeProvider struct {
	name    string
	enabled bool
	results []place.Result
	err     error
	calls   atomic.Int64
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Enabled() bool { return f.enabled }
func (f *fakeProvider) Query(_ context.Context, _ string, _ place.Type) ([]place.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func results(names ...string) []place.Result {
	var out []place.Result
	for _, n := range names {
		r, _ := place.NewResult(place.Fields{Name: n, Country: "Testland"})
		out = append(out, r)
	}
	return out
}

type fixture struct {
	primary, secondary, tertiary *fakeProvider
	gate                         *ratelimit.Gate
	cache                        *cache.ResultCache
	orch                         *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		primary:   &fakeProvider{name: "primary", enabled: true},
		secondary: &fakeProvider{name: "secondary", enabled: true},
		tertiary:  &fakeProvider{name: "tertiary", enabled: true},
		gate:      ratelimit.NewGate(),
		cache:     cache.New(500, time.Hour),
	}
	reg := providers.NewRegistry(
		providers.Descriptor{Provider: f.primary, Limit: ratelimit.Limit{Quota: 60, Window: time.Minute}},
		providers.Descriptor{Provider: f.secondary, Limit: ratelimit.Limit{Quota: 1, Window: time.Second}},
		providers.Descriptor{Provider: f.tertiary, Limit: ratelimit.Limit{Quota: 1, Window: time.Second}},
	)
	reg.Apply(f.gate)
	f.orch = New(reg, f.gate, f.cache)
	return f
}

func (f *fixture) totalCalls() int64 {
	return f.primary.calls.Load() + f.secondary.calls.Load() + f.tertiary.calls.Load()
}

func TestSearch_ShortQueryIsValidationReject(t *testing.T) {
	f := newFixture(t)
	f.primary.results = results("Anything")

	for _, q := range []string{"", " ", "a", "  b  ", "é"} {
		resp := f.orch.Search(context.Background(), q, place.TypeDefault)
		assert.Equal(t, SourceValidation, resp.Source, "q=%q", q)
		assert.NotNil(t, resp.Results)
		assert.Empty(t, resp.Results)
		assert.False(t, resp.Cached)
	}
	assert.Zero(t, f.totalCalls())
	assert.Equal(t, int64(5), f.orch.Stats().ValidationRejects)
}

func TestSearch_SecondCallServedFromCache(t *testing.T) {
	f := newFixture(t)
	f.primary.results = results("Paris", "Paris Orly")

	first := f.orch.Search(context.Background(), "paris", place.TypeDefault)
	second := f.orch.Search(context.Background(), "paris", place.TypeDefault)

	assert.Equal(t, "primary", first.Source)
	assert.False(t, first.Cached)
	assert.Equal(t, SourceCache, second.Source)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, int64(1), f.primary.calls.Load())

	st := f.orch.Stats()
	assert.Equal(t, int64(2), st.TotalRequests)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(1), st.CacheMisses)
	assert.Equal(t, int64(1), st.ProviderUsage["primary"])
	assert.Equal(t, 1, st.CacheSize)
}

func TestSearch_CacheKeyNormalization(t *testing.T) {
	f := newFixture(t)
	f.primary.results = results("Paris")

	_ = f.orch.Search(context.Background(), "  Paris ", place.TypeDefault)
	resp := f.orch.Search(context.Background(), "paris", place.TypeDefault)

	assert.True(t, resp.Cached)
	assert.Equal(t, int64(1), f.primary.calls.Load())
}

func TestSearch_TypeIsPartOfCacheKey(t *testing.T) {
	f := newFixture(t)
	f.primary.results = results("Paris")

	_ = f.orch.Search(context.Background(), "paris", place.TypeFlight)
	resp := f.orch.Search(context.Background(), "paris", place.TypeLodging)

	assert.False(t, resp.Cached)
	assert.Equal(t, int64(2), f.primary.calls.Load())
}

func TestSearch_FallbackOnEmpty(t *testing.T) {
	f := newFixture(t)
	f.secondary.results = results("London", "Londonderry")
	f.tertiary.results = results("Never")

	resp := f.orch.Search(context.Background(), "londo", place.TypeDefault)

	assert.Equal(t, "secondary", resp.Source)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, int64(1), f.primary.calls.Load())
	assert.Zero(t, f.tertiary.calls.Load())
	st := f.orch.Stats()
	assert.Zero(t, st.ProviderFailures["primary"], "empty result is not a failure")
	assert.Equal(t, int64(1), st.ProviderUsage["secondary"])
}

func TestSearch_FailSoft(t *testing.T) {
	f := newFixture(t)
	f.primary.err = &providers.ProviderError{Provider: "primary", Op: "do", Err: context.DeadlineExceeded}
	f.secondary.results = results("Berlin")

	resp := f.orch.Search(context.Background(), "berlin", place.TypeDefault)

	assert.Equal(t, "secondary", resp.Source)
	assert.False(t, resp.Cached)
	assert.Equal(t, "Berlin", resp.Results[0].Name)
	assert.Equal(t, int64(1), f.orch.Stats().ProviderFailures["primary"])
}

// ctxProvider 在调用方 ctx 结束时按真实适配器的方式返回 ProviderError
type ctxProvider struct {
	name   string
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (p *ctxProvider) Name() string  { return p.name }
func (p *ctxProvider) Enabled() bool { return true }
func (p *ctxProvider) Query(ctx context.Context, _ string, _ place.Type) ([]place.Result, error) {
	p.calls.Add(1)
	if p.cancel != nil {
		p.cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, &providers.ProviderError{Provider: p.name, Op: "do", Err: err}
	}
	return results("Somewhere"), nil
}

func newCtxFixture(t *testing.T, ps ...*ctxProvider) (*Orchestrator, *ratelimit.Gate) {
	t.Helper()
	var ds []providers.Descriptor
	for _, p := range ps {
		ds = append(ds, providers.Descriptor{Provider: p, Limit: ratelimit.Limit{Quota: 1, Window: time.Second}})
	}
	reg := providers.NewRegistry(ds...)
	g := ratelimit.NewGate()
	reg.Apply(g)
	return New(reg, g, cache.New(10, time.Hour)), g
}

func TestSearch_CancelledCallerSkipsProviders(t *testing.T) {
	p1 := &ctxProvider{name: "p1"}
	p2 := &ctxProvider{name: "p2"}
	orch, g := newCtxFixture(t, p1, p2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := orch.Search(ctx, "vienna", place.TypeDefault)

	assert.Equal(t, SourceNone, resp.Source)
	assert.NotNil(t, resp.Results)
	assert.Zero(t, p1.calls.Load()+p2.calls.Load())
	assert.Equal(t, 1, g.Remaining("p1"), "no gate slot spent")
	assert.Equal(t, 1, g.Remaining("p2"))
	st := orch.Stats()
	assert.Empty(t, st.ProviderFailures)
	assert.Zero(t, st.NoResults)
	assert.Equal(t, int64(1), st.Abandoned)
}

func TestSearch_CancelDuringCallIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p1 := &ctxProvider{name: "p1", cancel: cancel}
	p2 := &ctxProvider{name: "p2"}
	orch, g := newCtxFixture(t, p1, p2)

	resp := orch.Search(ctx, "vienna", place.TypeDefault)

	assert.Equal(t, SourceNone, resp.Source)
	assert.Equal(t, int64(1), p1.calls.Load())
	assert.Zero(t, p2.calls.Load())
	assert.Equal(t, 1, g.Remaining("p2"))
	st := orch.Stats()
	assert.Empty(t, st.ProviderFailures)
	assert.Equal(t, int64(1), st.Abandoned)
	assert.Zero(t, orch.CacheSize())
}

func TestSearch_ClearCache(t *testing.T) {
	f := newFixture(t)
	f.primary.results = results("Oslo")
	_ = f.orch.Search(context.Background(), "oslo", place.TypeDefault)

	assert.Equal(t, 1, f.orch.ClearCache())
	resp := f.orch.Search(context.Background(), "oslo", place.TypeDefault)
	assert.False(t, resp.Cached)
	assert.Equal(t, int64(2), f.primary.calls.Load())
}

func TestSearch_AllDisabledOrDenied(t *testing.T) {
	f := newFixture(t)
	f.primary.enabled = false
	f.secondary.results = results("X")
	f.tertiary.results = results("Y")
	require.True(t, f.gate.TryAdmit("secondary"))
	require.True(t, f.gate.TryAdmit("tertiary"))

	resp := f.orch.Search(context.Background(), "rome", place.TypeDefault)

	assert.Equal(t, SourceNone, resp.Source)
	assert.False(t, resp.Cached)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, f.totalCalls())
	st := f.orch.Stats()
	assert.Empty(t, st.ProviderFailures, "disabled and denied providers are not failures")
	assert.Equal(t, int64(1), st.NoResults)
}

func TestSearch_AllFailIsNone(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.primary.err = boom
	f.secondary.err = boom
	f.tertiary.err = boom

	resp := f.orch.Search(context.Background(), "madrid", place.TypeDefault)

	assert.Equal(t, SourceNone, resp.Source)
	st := f.orch.Stats()
	assert.Equal(t, int64(1), st.ProviderFailures["primary"])
	assert.Equal(t, int64(1), st.ProviderFailures["secondary"])
	assert.Equal(t, int64(1), st.ProviderFailures["tertiary"])
	assert.Equal(t, 0, st.CacheSize, "nothing is cached without results")
}

func TestSearch_EmptyResultChargesGate(t *testing.T) {
	f := newFixture(t)
	f.tertiary.results = results("Lisbon")

	_ = f.orch.Search(context.Background(), "lisb", place.TypeDefault)
	assert.Equal(t, 0, f.gate.Remaining("secondary"))

	// secondary is still inside its 1s window; tertiary too
	resp := f.orch.Search(context.Background(), "lisbo", place.TypeDefault)
	assert.Equal(t, SourceNone, resp.Source)
	assert.Equal(t, int64(1), f.secondary.calls.Load())
	assert.Equal(t, int64(2), f.primary.calls.Load())
}

func TestSearch_ResetStats(t *testing.T) {
	f := newFixture(t)
	f.primary.results = results("Oslo")
	_ = f.orch.Search(context.Background(), "oslo", place.TypeDefault)

	f.orch.ResetStats()
	st := f.orch.Stats()
	assert.Zero(t, st.TotalRequests)
	assert.Empty(t, st.ProviderUsage)
	assert.Equal(t, 1, st.CacheSize, "reset does not clear the cache")
}

func TestSearch_ConcurrentCountersAreExact(t *testing.T) {
	f := newFixture(t)
	f.primary.results = results("X")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				f.orch.Search(context.Background(), fmt.Sprintf("q-%d-%d", i, j%5), place.TypeDefault)
			}
		}(i)
	}
	wg.Wait()

	st := f.orch.Stats()
	assert.Equal(t, int64(200), st.TotalRequests)
	assert.Equal(t, int64(200), st.CacheHits+st.CacheMisses)
	assert.Equal(t, st.CacheMisses, st.ProviderUsage["primary"]+st.NoResults)
}
