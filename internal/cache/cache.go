package cache

import (
	"context"
	"time"

	"fuelsync/backend/internal/domain"
)

// PriceCache holds the resolved "current" fuel price per
// (tenant, station, fuel type), used by the pre-flight submission check.
// It is advisory only; the authoritative price resolution happens inside
// the submission transaction.
type PriceCache interface {
	Get(ctx context.Context, key string) (*domain.FuelPrice, bool, error)
	Set(ctx context.Context, key string, price *domain.FuelPrice, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

func PriceKey(tenantID, stationID, fuelType string) string {
	return "fuelprice:" + tenantID + ":" + stationID + ":" + fuelType
}

type NoopPriceCache struct{}

func (NoopPriceCache) Get(_ context.Context, _ string) (*domain.FuelPrice, bool, error) {
	return nil, false, nil
}

func (NoopPriceCache) Set(_ context.Context, _ string, _ *domain.FuelPrice, _ time.Duration) error {
	return nil
}

func (NoopPriceCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
