// Package holds reserves a slot for a short window while the customer
// completes the booking form. A hold is a Redis key with a TTL: expiry
// releases the slot with no cleanup job.
package holds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSlotHeld is returned when another customer already holds the slot.
var ErrSlotHeld = errors.New("slot is already held")

// ErrHoldNotFound is returned when a token no longer matches a live hold,
// either because it expired or because it was redeemed.
var ErrHoldNotFound = errors.New("hold not found or expired")

const DefaultTTL = 5 * time.Minute

type Store struct {
	client *redis.Client
	ttl    time.Duration
	loc    *time.Location
}

// NewStore keys holds on the business-local calendar date of the slot, so a
// day scan sees every hold of that business day regardless of its UTC date.
func NewStore(client *redis.Client, ttl time.Duration, loc *time.Location) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Store{client: client, ttl: ttl, loc: loc}
}

// releaseScript deletes the hold only if the caller still owns it, so an
// expired-and-reacquired hold is never released by a stale token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *Store) key(typeID string, start time.Time) string {
	local := start.In(s.loc)
	return fmt.Sprintf("hold:%s:%s:%d", typeID, local.Format("2006-01-02"), local.Unix())
}

// Acquire places a hold on the slot and returns an opaque token the caller
// presents back at booking time.
func (s *Store) Acquire(ctx context.Context, typeID string, start time.Time) (string, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.key(typeID, start), token, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire hold: %w", err)
	}
	if !ok {
		return "", ErrSlotHeld
	}
	return token, nil
}

// Redeem consumes the hold named by token. It is an atomic compare-and-delete.
func (s *Store) Redeem(ctx context.Context, typeID string, start time.Time, token string) error {
	n, err := releaseScript.Run(ctx, s.client, []string{s.key(typeID, start)}, token).Int()
	if err != nil {
		return fmt.Errorf("redeem hold: %w", err)
	}
	if n == 0 {
		return ErrHoldNotFound
	}
	return nil
}

// Release is Redeem for callers abandoning a hold; same semantics.
func (s *Store) Release(ctx context.Context, typeID string, start time.Time, token string) error {
	return s.Redeem(ctx, typeID, start, token)
}

// HeldStarts returns the start times of live holds for one appointment type
// on one calendar day, so availability can subtract them from the slot list.
func (s *Store) HeldStarts(ctx context.Context, typeID string, day time.Time) ([]time.Time, error) {
	pattern := fmt.Sprintf("hold:%s:%s:*", typeID, day.In(s.loc).Format("2006-01-02"))
	var starts []time.Time
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		val := iter.Val()
		unix, err := strconv.ParseInt(val[strings.LastIndexByte(val, ':')+1:], 10, 64)
		if err != nil {
			continue
		}
		starts = append(starts, time.Unix(unix, 0).UTC())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan holds: %w", err)
	}
	return starts, nil
}
