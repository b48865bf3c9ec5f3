package processors

import (
	"context"
	"time"

	"github.com/username/cambitax/backend/src/models"
)

// RateSource supplies official buy/sell exchange rates by calendar date.
// Implemented by rates.Resolver; tests substitute a fixed table.
type RateSource interface {
	Resolve(ctx context.Context, date time.Time) (models.Rate, error)
	Prefetch(ctx context.Context, dates []time.Time) error
}
