package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const eventKeyPrefix = "webhook:event:"

// Deduper is a Redis fast path in front of the webhook_events unique
// constraint. Seen checks for a key that Mark writes once a delivery reaches
// a settled outcome; deliveries rejected for redelivery never get a key, so
// the retry passes straight through. Losing Redis loses the fast path only;
// the store constraint stays authoritative.
type Deduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeduper(client *redis.Client, ttl time.Duration) *Deduper {
	return &Deduper{client: client, ttl: ttl}
}

// Seen reports whether the event id was already settled. A false with an
// error means the cache is unavailable; callers fall through to the store.
func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records a settled event id so later redeliveries short-circuit.
func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, eventKeyPrefix+eventID, "1", d.ttl).Err()
}
