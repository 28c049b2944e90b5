// README: Quote cache; owns the selected route key, its in-flight fetch and the refresh loop.
package quote

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"rideflow/internal/metrics"
	"rideflow/internal/modules/ranking"
	"rideflow/internal/modules/routes"
	"rideflow/internal/types"
)

// Fetcher resolves a key to raw route facts.
type Fetcher interface {
	Fetch(ctx context.Context, key types.RouteKey) (routes.Bundle, error)
}

type Options struct {
	RefreshInterval time.Duration
	// Now stamps completed fetches; defaults to time.Now.
	Now func() time.Time
}

// call is one fetch, tagged with the generation and key it was issued for.
type call struct {
	gen     uint64
	key     types.RouteKey
	trigger string
	done    chan struct{}
}

type Cache struct {
	fetcher Fetcher
	pricer  ranking.Pricer
	log     *zap.Logger
	opts    Options

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	key           types.RouteKey
	gen           uint64
	state         State
	quote         *Quote
	err           error
	lastFetchedAt time.Time
	inflight      *call
	stopRefresh   context.CancelFunc
	subs          map[int]chan Snapshot
	nextSub       int
	closed        bool
}

func NewCache(fetcher Fetcher, pricer ranking.Pricer, opts Options, log *zap.Logger) *Cache {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		fetcher: fetcher,
		pricer:  pricer,
		log:     log,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		subs:    make(map[int]chan Snapshot),
	}
}

// GetQuote selects (pickup, dropoff) and returns the current snapshot.
// A new key drops the previous quote and starts a fetch; an empty endpoint
// leaves the cache idle without fetching.
func (c *Cache) GetQuote(pickup, dropoff string) Snapshot {
	key := types.NewRouteKey(pickup, dropoff)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || key == c.key {
		return c.snapshotLocked()
	}

	c.gen++
	c.key = key
	c.quote = nil
	c.err = nil
	c.lastFetchedAt = time.Time{}
	c.inflight = nil
	c.state = StateIdle
	if c.stopRefresh != nil {
		c.stopRefresh()
		c.stopRefresh = nil
	}

	if err := key.Validate(); err != nil {
		c.err = err
		c.state = StateFailed
	} else if !key.Empty() {
		c.startFetchLocked("select")
		ctx, stop := context.WithCancel(c.ctx)
		c.stopRefresh = stop
		go c.refreshLoop(ctx, c.gen)
	}
	snap := c.snapshotLocked()
	c.publishLocked(snap)
	return snap
}

// Refresh re-fetches the current key unless a fetch is already running.
func (c *Cache) Refresh() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.key.Empty() || c.key.Validate() != nil {
		return c.snapshotLocked()
	}
	if c.startFetchLocked("manual") {
		c.publishLocked(c.snapshotLocked())
	}
	return c.snapshotLocked()
}

// Await blocks until the in-flight fetch, if any, completes. It returns
// ErrClosed once the cache is closed.
func (c *Cache) Await(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	inflight := c.inflight
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return c.Snapshot(), ErrClosed
	}

	if inflight != nil {
		select {
		case <-inflight.done:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.snapshotLocked(), ErrClosed
	}
	return c.snapshotLocked(), nil
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) Key() types.RouteKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// SelectAlternative applies a ranked alternative to the current quote.
func (c *Cache) SelectAlternative(location string) (Selection, error) {
	c.mu.Lock()
	q, closed := c.quote, c.closed
	c.mu.Unlock()
	if closed {
		return Selection{}, ErrClosed
	}
	if q == nil {
		return Selection{}, ErrNoSelection
	}
	return q.Select(location)
}

// Subscribe delivers the latest snapshot after every state change. Slow
// readers only see the most recent one. The channel closes on Close or cancel.
func (c *Cache) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops the refresh loop and discards any in-flight result.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.inflight = nil
	c.cancel()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// startFetchLocked reports whether a new fetch was started.
func (c *Cache) startFetchLocked(trigger string) bool {
	if c.inflight != nil && c.inflight.gen == c.gen {
		return false
	}
	cl := &call{gen: c.gen, key: c.key, trigger: trigger, done: make(chan struct{})}
	c.inflight = cl
	c.state = StateFetching
	go c.run(cl)
	return true
}

func (c *Cache) run(cl *call) {
	defer close(cl.done)

	bundle, err := c.fetcher.Fetch(c.ctx, cl.key)
	at := c.opts.Now()
	var q *Quote
	if err == nil {
		q = c.build(cl.key, bundle, at)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl.gen != c.gen || cl.key != c.key {
		metrics.StaleResultsTotal.WithLabelValues("quote").Inc()
		c.log.Debug("discarding stale quote", zap.String("key", cl.key.String()))
		return
	}
	if c.inflight == cl {
		c.inflight = nil
	}

	switch {
	case err == nil:
		c.quote = q
		c.err = nil
		c.lastFetchedAt = at
		c.state = StateReady
		metrics.QuoteFetchesTotal.WithLabelValues(cl.trigger, "ok").Inc()
	case errors.Is(err, types.ErrConfiguration):
		c.log.Warn("quote provider not configured", zap.String("key", cl.key.String()), zap.Error(err))
		if c.quote != nil {
			c.state = StateReady
		} else {
			c.state = StateIdle
		}
		metrics.QuoteFetchesTotal.WithLabelValues(cl.trigger, "unconfigured").Inc()
	default:
		c.log.Warn("quote fetch failed", zap.String("key", cl.key.String()), zap.String("trigger", cl.trigger), zap.Error(err))
		c.err = err
		c.state = StateFailed
		metrics.QuoteFetchesTotal.WithLabelValues(cl.trigger, "error").Inc()
	}
	c.publishLocked(c.snapshotLocked())
}

// build stamps the quote with the key the caller selected. Bundles can be
// shared across keys that differ only in case.
func (c *Cache) build(key types.RouteKey, b routes.Bundle, at time.Time) *Quote {
	price := c.pricer.Compute(b.Primary, at)
	return &Quote{
		Key:             key,
		Price:           price,
		WaitTimeMinutes: ranking.WaitTimeMinutes(b.Primary),
		Alternatives: ranking.Rank(c.pricer, ranking.Input{
			Primary:      b.Primary,
			PrimaryPrice: price,
			Candidates:   b.Alternatives,
			At:           at,
		}),
		ComputedAt: at,
	}
}

func (c *Cache) refreshLoop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if gen != c.gen || c.closed {
				c.mu.Unlock()
				return
			}
			if c.startFetchLocked("refresh") {
				c.publishLocked(c.snapshotLocked())
			}
			c.mu.Unlock()
		}
	}
}

func (c *Cache) snapshotLocked() Snapshot {
	s := Snapshot{
		Key:          c.key,
		State:        c.state,
		Quote:        c.quote,
		IsLoading:    c.state == StateFetching && c.quote == nil,
		IsRefreshing: c.state == StateFetching && c.quote != nil,
		IsError:      c.err != nil,
	}
	if c.err != nil {
		s.Error = c.err.Error()
	}
	if !c.lastFetchedAt.IsZero() {
		t := c.lastFetchedAt
		s.LastFetchedAt = &t
	}
	return s
}

// publishLocked never blocks; a full subscriber buffer is replaced.
func (c *Cache) publishLocked(s Snapshot) {
	for _, ch := range c.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
