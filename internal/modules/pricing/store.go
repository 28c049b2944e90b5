// README: Tariff store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTariffNotFound = errors.New("tariff not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetTariff(ctx context.Context, region string) (Tariff, error) {
	var t Tariff
	err := s.db.QueryRow(ctx, `
		SELECT region, base_fare, per_km, per_min, peak_multiplier, night_multiplier, variance_ratio, currency
		FROM fare_tariffs
		WHERE region = $1`, region).Scan(
		&t.Region, &t.BaseFare, &t.PerKm, &t.PerMin,
		&t.PeakMultiplier, &t.NightMultiplier, &t.VarianceRatio, &t.Currency,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tariff{}, ErrTariffNotFound
	}
	if err != nil {
		return Tariff{}, fmt.Errorf("query tariff %q: %w", region, err)
	}
	return t, nil
}

func (s *Store) UpsertTariff(ctx context.Context, t Tariff) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO fare_tariffs (region, base_fare, per_km, per_min, peak_multiplier, night_multiplier, variance_ratio, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (region) DO UPDATE SET
			base_fare = EXCLUDED.base_fare,
			per_km = EXCLUDED.per_km,
			per_min = EXCLUDED.per_min,
			peak_multiplier = EXCLUDED.peak_multiplier,
			night_multiplier = EXCLUDED.night_multiplier,
			variance_ratio = EXCLUDED.variance_ratio,
			currency = EXCLUDED.currency,
			updated_at = now()`,
		t.Region, t.BaseFare, t.PerKm, t.PerMin, t.PeakMultiplier, t.NightMultiplier, t.VarianceRatio, t.Currency,
	)
	if err != nil {
		return fmt.Errorf("upsert tariff %q: %w", t.Region, err)
	}
	return nil
}
