package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rl1809/factory-orders/internal/port"
)

const maxOrderNumberAttempts = 5

var ErrOrderNumberExhausted = errors.New("could not reserve a unique order number")

// OrderNumberGenerator builds numbers of the form prefix + last six digits
// of the millisecond clock + a zero-padded three digit random suffix. When a
// cache is present each number is reserved there before use.
type OrderNumberGenerator struct {
	prefix string
	cache  port.CacheRepository
	now    func() time.Time
	intn   func(n int) int
}

func NewOrderNumberGenerator(prefix string, cache port.CacheRepository) *OrderNumberGenerator {
	return &OrderNumberGenerator{
		prefix: prefix,
		cache:  cache,
		now:    time.Now,
		intn:   rand.Intn,
	}
}

func (g *OrderNumberGenerator) Generate() string {
	ms := g.now().UnixMilli() % 1_000_000
	return fmt.Sprintf("%s%06d%03d", g.prefix, ms, g.intn(1000))
}

func (g *OrderNumberGenerator) Next(ctx context.Context) (string, error) {
	if g.cache == nil {
		return g.Generate(), nil
	}

	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		number := g.Generate()
		ok, err := g.cache.ReserveOrderNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("reserve order number: %w", err)
		}
		if ok {
			return number, nil
		}
	}
	return "", ErrOrderNumberExhausted
}
