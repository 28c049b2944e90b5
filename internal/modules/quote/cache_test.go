package quote

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rideflow/internal/modules/pricing"
	"rideflow/internal/modules/ranking"
	"rideflow/internal/modules/routes"
	"rideflow/internal/types"
)

// fakeFetcher serves canned bundles per key. A key with a gate blocks until the gate closes.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    []types.RouteKey
	returned int
	facts    map[types.RouteKey]types.RouteFacts
	alts     []types.AlternativeCandidate
	gates    map[types.RouteKey]chan struct{}
	err      error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		facts: map[types.RouteKey]types.RouteFacts{},
		gates: map[types.RouteKey]chan struct{}{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, key types.RouteKey) (routes.Bundle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	gate := f.gates[key]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return routes.Bundle{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.returned++
	if f.err != nil {
		return routes.Bundle{}, f.err
	}
	return routes.Bundle{Key: key, Primary: f.facts[key], Alternatives: f.alts}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) callsFor(key types.RouteKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.calls {
		if k == key {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) callsSince(i int) []types.RouteKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.RouteKey(nil), f.calls[i:]...)
}

func (f *fakeFetcher) returnedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returned
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

var (
	keyA = types.NewRouteKey("Indiranagar", "Koramangala")
	keyB = types.NewRouteKey("Whitefield", "MG Road")

	afternoon = time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
)

func newTestCache(t *testing.T, f Fetcher, refresh time.Duration) *Cache {
	t.Helper()
	c := NewCache(f, pricing.NewService(nil, time.UTC, nil), Options{
		RefreshInterval: refresh,
		Now:             func() time.Time { return afternoon },
	}, zap.NewNop())
	t.Cleanup(c.Close)
	return c
}

func await(t *testing.T, c *Cache) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := c.Await(ctx)
	require.NoError(t, err)
	return s
}

func TestGetQuote_EmptyEndpointDoesNotFetch(t *testing.T) {
	f := newFakeFetcher()
	c := newTestCache(t, f, time.Hour)

	s := c.GetQuote("Indiranagar", "")
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.Quote)
	assert.False(t, s.IsLoading)
	assert.Equal(t, 0, f.callCount())
}

func TestGetQuote_ComputesQuote(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 8000, DurationSeconds: 1200}
	f.alts = []types.AlternativeCandidate{
		{Location: "Forum Mall Gate 2", Route: types.RouteFacts{DistanceMeters: 6000, DurationSeconds: 900}},
		{Location: "Farther", Route: types.RouteFacts{DistanceMeters: 9000, DurationSeconds: 1500}},
	}
	c := newTestCache(t, f, time.Hour)

	s := c.GetQuote(keyA.Pickup, keyA.Dropoff)
	assert.Equal(t, StateFetching, s.State)
	assert.True(t, s.IsLoading)

	s = await(t, c)
	require.Equal(t, StateReady, s.State)
	require.NotNil(t, s.Quote)
	assert.Equal(t, pricing.PriceBand{Min: 158, Max: 174}, s.Quote.Price)
	assert.Equal(t, int64(20), s.Quote.WaitTimeMinutes)
	assert.Equal(t, []ranking.RankedAlternative{
		{Location: "Forum Mall Gate 2", Savings: 33, TimeReductionMinutes: 5},
	}, s.Quote.Alternatives)
	assert.Equal(t, afternoon, s.Quote.ComputedAt)
	require.NotNil(t, s.LastFetchedAt)
	assert.Equal(t, afternoon, *s.LastFetchedAt)
	assert.False(t, s.IsError)
}

func TestGetQuote_DedupsWhilePending(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 1000, DurationSeconds: 300}
	f.gates[keyA] = make(chan struct{})
	c := newTestCache(t, f, time.Hour)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	s := c.GetQuote(keyA.Pickup, keyA.Dropoff)
	assert.True(t, s.IsLoading)
	c.Refresh()

	close(f.gates[keyA])
	s = await(t, c)
	assert.Equal(t, StateReady, s.State)
	assert.Equal(t, 1, f.callCount())
}

func TestGetQuote_KeyChangeDiscardsLateResult(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 1000, DurationSeconds: 300}
	f.facts[keyB] = types.RouteFacts{DistanceMeters: 20000, DurationSeconds: 2400}
	f.gates[keyA] = make(chan struct{})
	c := newTestCache(t, f, time.Hour)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	s := c.GetQuote(keyB.Pickup, keyB.Dropoff)
	assert.Nil(t, s.Quote)
	assert.Equal(t, keyB, s.Key)

	s = await(t, c)
	require.NotNil(t, s.Quote)
	assert.Equal(t, keyB, s.Quote.Key)

	close(f.gates[keyA])
	require.Eventually(t, func() bool { return f.returnedCount() == 2 }, time.Second, 5*time.Millisecond)
	// the late A result must not replace B
	time.Sleep(10 * time.Millisecond)
	s = c.Snapshot()
	require.NotNil(t, s.Quote)
	assert.Equal(t, keyB, s.Quote.Key)
	assert.Equal(t, StateReady, s.State)
}

func TestGetQuote_ReselectingOldKeyIgnoresEarlierFlight(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 1000, DurationSeconds: 300}
	f.gates[keyA] = make(chan struct{})
	c := newTestCache(t, f, time.Hour)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	c.GetQuote(keyB.Pickup, keyB.Dropoff)
	c.GetQuote(keyA.Pickup, keyA.Dropoff)

	// A was selected twice, so two fetches for A are issued across generations.
	require.Eventually(t, func() bool { return f.callCount() == 3 }, time.Second, 5*time.Millisecond)
	close(f.gates[keyA])

	s := await(t, c)
	require.NotNil(t, s.Quote)
	assert.Equal(t, keyA, s.Quote.Key)
}

func TestRefresh_FailureKeepsLastGoodQuote(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 8000, DurationSeconds: 1200}
	c := newTestCache(t, f, 20*time.Millisecond)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	first := await(t, c)
	require.NotNil(t, first.Quote)

	f.setErr(errors.Join(types.ErrTransport, errors.New("timeout")))
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.IsError && s.State == StateFailed
	}, time.Second, 5*time.Millisecond)

	s := c.Snapshot()
	assert.Same(t, first.Quote, s.Quote)
	assert.Equal(t, *first.LastFetchedAt, *s.LastFetchedAt)
	assert.Contains(t, s.Error, "timeout")

	f.setErr(nil)
	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return !s.IsError && s.State == StateReady
	}, time.Second, 5*time.Millisecond)
}

func TestGetQuote_TransportErrorWithoutQuote(t *testing.T) {
	f := newFakeFetcher()
	f.err = types.ErrTransport
	c := newTestCache(t, f, time.Hour)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	s := await(t, c)
	assert.Equal(t, StateFailed, s.State)
	assert.True(t, s.IsError)
	assert.Nil(t, s.Quote)

	c.Refresh()
	s = await(t, c)
	assert.Equal(t, 2, f.callCount())
	assert.True(t, s.IsError)
}

func TestGetQuote_ConfigurationErrorIsNoOp(t *testing.T) {
	f := newFakeFetcher()
	f.err = types.ErrConfiguration
	c := newTestCache(t, f, time.Hour)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	s := await(t, c)
	assert.Equal(t, StateIdle, s.State)
	assert.False(t, s.IsError)
	assert.Nil(t, s.Quote)
}

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 1000, DurationSeconds: 300}
	c := newTestCache(t, f, time.Hour)

	ch, cancel := c.Subscribe()
	defer cancel()
	initial := <-ch
	assert.Equal(t, StateIdle, initial.State)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)

	deadline := time.After(time.Second)
	for {
		select {
		case s := <-ch:
			if s.State == StateReady {
				assert.NotNil(t, s.Quote)
				return
			}
		case <-deadline:
			t.Fatal("no ready snapshot delivered")
		}
	}
}

func TestClose_StopsCache(t *testing.T) {
	f := newFakeFetcher()
	c := newTestCache(t, f, time.Hour)
	ch, _ := c.Subscribe()
	<-ch

	c.Close()
	_, open := <-ch
	assert.False(t, open)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	assert.Equal(t, 0, f.callCount())

	_, err := c.Await(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.SelectAlternative("Forum Mall Gate 2")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_ReleasesWaiters(t *testing.T) {
	f := newFakeFetcher()
	f.gates[keyA] = make(chan struct{})
	c := newTestCache(t, f, time.Hour)
	c.GetQuote(keyA.Pickup, keyA.Dropoff)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Await(context.Background())
		errc <- err
	}()
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)

	c.Close()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Close")
	}
}

func TestGetQuote_KeyChangeStopsOldRefresh(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 1000, DurationSeconds: 300}
	f.facts[keyB] = types.RouteFacts{DistanceMeters: 20000, DurationSeconds: 2400}
	c := newTestCache(t, f, 20*time.Millisecond)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	await(t, c)
	// A is being refreshed on its timer.
	require.Eventually(t, func() bool { return f.callsFor(keyA) >= 3 }, time.Second, 5*time.Millisecond)

	c.GetQuote(keyB.Pickup, keyB.Dropoff)
	await(t, c)
	// Let a refresh for A that was already running drain.
	time.Sleep(30 * time.Millisecond)
	aCalls := f.callsFor(keyA)
	mark := f.callCount()

	require.Eventually(t, func() bool { return f.callsFor(keyB) >= 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, aCalls, f.callsFor(keyA))
	for _, k := range f.callsSince(mark) {
		assert.Equal(t, keyB, k)
	}

	s := c.Snapshot()
	require.NotNil(t, s.Quote)
	assert.Equal(t, keyB, s.Quote.Key)
}

// foldingFetcher hands back bundles keyed the way a shared route cache stores them.
type foldingFetcher struct {
	*fakeFetcher
}

func (f foldingFetcher) Fetch(ctx context.Context, key types.RouteKey) (routes.Bundle, error) {
	b, err := f.fakeFetcher.Fetch(ctx, key)
	b.Key = types.RouteKey{Pickup: strings.ToLower(key.Pickup), Dropoff: strings.ToLower(key.Dropoff)}
	return b, err
}

func TestGetQuote_QuoteCarriesSelectedKey(t *testing.T) {
	f := newFakeFetcher()
	f.facts[keyA] = types.RouteFacts{DistanceMeters: 8000, DurationSeconds: 1200}
	c := newTestCache(t, foldingFetcher{f}, time.Hour)

	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	s := await(t, c)
	require.NotNil(t, s.Quote)
	assert.Equal(t, keyA, s.Key)
	assert.Equal(t, s.Key, s.Quote.Key)
}

func TestGetQuote_OverlongPlaceTextFailsWithoutFetch(t *testing.T) {
	tests := []struct {
		name    string
		pickup  string
		dropoff string
		ok      bool
	}{
		{"at limit", strings.Repeat("x", types.MaxPlaceQueryLen), "Koramangala", true},
		{"pickup over limit", strings.Repeat("x", types.MaxPlaceQueryLen+1), "Koramangala", false},
		{"dropoff over limit", "Indiranagar", strings.Repeat("ಬ", types.MaxPlaceQueryLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher()
			c := newTestCache(t, f, time.Hour)

			s := c.GetQuote(tt.pickup, tt.dropoff)
			if tt.ok {
				assert.Equal(t, StateFetching, s.State)
				await(t, c)
				assert.Equal(t, 1, f.callCount())
				return
			}
			assert.Equal(t, StateFailed, s.State)
			assert.True(t, s.IsError)
			assert.Contains(t, s.Error, "limit")

			c.Refresh()
			await(t, c)
			assert.Equal(t, 0, f.callCount())
		})
	}
}

func TestSelectAlternative(t *testing.T) {
	f := newFakeFetcher()
	c := newTestCache(t, f, time.Hour)
	_, err := c.SelectAlternative("anything")
	assert.ErrorIs(t, err, ErrNoSelection)

	f.facts[keyA] = types.RouteFacts{DistanceMeters: 8000, DurationSeconds: 1200}
	f.alts = []types.AlternativeCandidate{
		{Location: "Forum Mall Gate 2", Route: types.RouteFacts{DistanceMeters: 6000, DurationSeconds: 900}},
	}
	c.GetQuote(keyA.Pickup, keyA.Dropoff)
	await(t, c)

	sel, err := c.SelectAlternative("Forum Mall Gate 2")
	require.NoError(t, err)
	assert.Equal(t, pricing.PriceBand{Min: 125, Max: 141}, sel.Price)
	assert.Equal(t, int64(15), sel.WaitTimeMinutes)

	_, err = c.SelectAlternative("Nowhere")
	assert.ErrorIs(t, err, ErrUnknownAlternative)
}

func TestQuoteSelect_Floors(t *testing.T) {
	q := &Quote{
		Price:           pricing.PriceBand{Min: 158, Max: 174},
		WaitTimeMinutes: 20,
		Alternatives: []ranking.RankedAlternative{
			{Location: "Big Saving", Savings: 150, TimeReductionMinutes: 19},
		},
	}
	sel, err := q.Select("Big Saving")
	require.NoError(t, err)
	assert.Equal(t, pricing.PriceBand{Min: 50, Max: 60}, sel.Price)
	assert.Equal(t, int64(2), sel.WaitTimeMinutes)
}
