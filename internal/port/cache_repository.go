package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency reserves a key for ttl, returns false if already held
	SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseIdempotency frees a key so the request can be resubmitted
	ReleaseIdempotency(ctx context.Context, key string) error

	// ReserveOrderNumber claims an order number, returns false if taken
	ReserveOrderNumber(ctx context.Context, number string) (bool, error)

	Ping(ctx context.Context) error
}
