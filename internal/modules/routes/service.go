// README: Route fetcher; dedups concurrent fetches per key and validates provider output.
package routes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"rideflow/internal/metrics"
	"rideflow/internal/types"
)

type Options struct {
	// Name labels provider metrics and logs.
	Name            string
	Timeout         time.Duration
	MaxAlternatives int
	Cache           Cacher
}

type Service struct {
	provider Provider
	opts     Options
	log      *zap.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService wraps provider. A nil provider makes every fetch fail with
// types.ErrConfiguration.
func NewService(provider Provider, opts Options, log *zap.Logger) *Service {
	if opts.Name == "" {
		opts.Name = "route"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxAlternatives <= 0 {
		opts.MaxAlternatives = DefaultMaxAlternatives
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{provider: provider, opts: opts, log: log, now: time.Now}
}

// Fetch returns route facts and alternatives for key. Concurrent callers for
// the same key share one provider round trip; ctx only bounds the wait.
func (s *Service) Fetch(ctx context.Context, key types.RouteKey) (Bundle, error) {
	if key.Empty() {
		return Bundle{}, ErrEmptyKey
	}
	if err := key.Validate(); err != nil {
		return Bundle{}, err
	}
	if s.provider == nil {
		return Bundle{}, fmt.Errorf("%w: no %s route provider", types.ErrConfiguration, s.opts.Name)
	}

	ch := s.group.DoChan(flightKey(key), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
		defer cancel()
		return s.load(fctx, key)
	})

	select {
	case <-ctx.Done():
		return Bundle{}, fmt.Errorf("%w: %v", types.ErrTransport, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Bundle{}, res.Err
		}
		return res.Val.(Bundle), nil
	}
}

func flightKey(key types.RouteKey) string {
	return strings.ToLower(key.Pickup) + "\x00" + strings.ToLower(key.Dropoff)
}

func (s *Service) load(ctx context.Context, key types.RouteKey) (Bundle, error) {
	if s.opts.Cache != nil {
		b, ok, err := s.opts.Cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.RouteCacheTotal.WithLabelValues("error").Inc()
			s.log.Warn("route cache read failed", zap.String("key", key.String()), zap.Error(err))
		case ok:
			metrics.RouteCacheTotal.WithLabelValues("hit").Inc()
			return b, nil
		default:
			metrics.RouteCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	var (
		primary types.RouteFacts
		alts    []types.AlternativeCandidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		f, err := s.provider.GetRouteDetails(gctx, key.Pickup, key.Dropoff)
		metrics.ObserveProviderCall(s.opts.Name, "details", start, err)
		if err != nil {
			return err
		}
		if err := f.Validate(); err != nil {
			return err
		}
		primary = f
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		raw, err := s.provider.GetAlternativeRoutes(gctx, key.Pickup, key.Dropoff)
		metrics.ObserveProviderCall(s.opts.Name, "alternatives", start, err)
		if err != nil {
			return err
		}
		alts = s.sanitize(raw)
		return nil
	})
	if err := g.Wait(); err != nil {
		err = classify(err)
		s.log.Warn("route fetch failed", zap.String("provider", s.opts.Name), zap.String("key", key.String()), zap.Error(err))
		return Bundle{}, err
	}

	b := Bundle{Key: key, Primary: primary, Alternatives: alts, FetchedAt: s.now()}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Set(ctx, b); err != nil {
			s.log.Warn("route cache write failed", zap.String("key", key.String()), zap.Error(err))
		}
	}
	return b, nil
}

// sanitize drops unnamed or invalid candidates and caps the list.
func (s *Service) sanitize(raw []types.AlternativeCandidate) []types.AlternativeCandidate {
	out := make([]types.AlternativeCandidate, 0, len(raw))
	for _, c := range raw {
		c.Location = strings.TrimSpace(c.Location)
		if c.Location == "" || c.Route.Validate() != nil {
			continue
		}
		out = append(out, c)
		if len(out) == s.opts.MaxAlternatives {
			break
		}
	}
	return out
}

// classify maps unknown failures onto the transport class.
func classify(err error) error {
	switch {
	case errors.Is(err, types.ErrConfiguration), errors.Is(err, types.ErrFormat), errors.Is(err, types.ErrTransport):
		return err
	default:
		return fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
}
