// README: Pricing service computes fare bands in the configured pricing zone.
package pricing

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"rideflow/internal/types"
)

type Service struct {
	store *Store
	loc   *time.Location
	log   *zap.Logger

	mu     sync.RWMutex
	tariff Tariff
}

// NewService starts on DefaultTariff. store may be nil.
func NewService(store *Store, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, loc: loc, log: log, tariff: DefaultTariff()}
}

func (s *Service) Tariff() Tariff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tariff
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// Reload replaces the active tariff with the stored row for region.
// Without a store, or when no row exists, the current tariff is kept.
func (s *Service) Reload(ctx context.Context, region string) error {
	if s.store == nil {
		return nil
	}
	t, err := s.store.GetTariff(ctx, region)
	if errors.Is(err, ErrTariffNotFound) {
		s.log.Warn("no stored tariff, keeping built-in", zap.String("region", region))
		return nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tariff = t
	s.mu.Unlock()
	s.log.Info("tariff loaded", zap.String("region", t.Region), zap.String("currency", t.Currency))
	return nil
}

// Compute prices route at the given instant.
func (s *Service) Compute(route types.RouteFacts, at time.Time) PriceBand {
	return ComputePrice(s.Tariff(), route, at.In(s.loc))
}

// Estimate returns the band together with its components.
func (s *Service) Estimate(_ context.Context, req PricingRequest) (PricingResult, error) {
	if err := req.Route.Validate(); err != nil {
		return PricingResult{}, err
	}
	at := req.RequestTime
	if at.IsZero() {
		at = time.Now()
	}
	at = at.In(s.loc)

	t := s.Tariff()
	c := components(t, req.Route, at.Hour())
	return PricingResult{
		Band:     ComputePrice(t, req.Route, at),
		Currency: t.Currency,
		Peak:     c.isPeak,
		Night:    c.isNight,
		Breakdown: map[string]int64{
			"base":            round(c.base),
			"distance":        round(c.distance),
			"time":            round(c.time),
			"peak_surcharge":  round(c.peak),
			"night_surcharge": round(c.night),
			"total":           round(c.total),
		},
	}, nil
}

func round(v float64) int64 {
	return int64(math.Round(v))
}
