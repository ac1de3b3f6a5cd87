package holds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, 5*time.Minute, time.UTC), mr
}

var slotStart = time.Date(2026, 9, 14, 13, 0, 0, 0, time.UTC)

func TestAcquireConflict(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Acquire(ctx, "buyer-closing", slotStart)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if token == "" {
		t.Fatal("expected a hold token")
	}

	if _, err := store.Acquire(ctx, "buyer-closing", slotStart); !errors.Is(err, ErrSlotHeld) {
		t.Fatalf("expected ErrSlotHeld, got %v", err)
	}

	// Different slot or type is independent.
	if _, err := store.Acquire(ctx, "buyer-closing", slotStart.Add(15*time.Minute)); err != nil {
		t.Fatalf("Acquire other slot: %v", err)
	}
	if _, err := store.Acquire(ctx, "seller-closing", slotStart); err != nil {
		t.Fatalf("Acquire other type: %v", err)
	}
}

func TestRedeemConsumesHold(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	token, err := store.Acquire(ctx, "buyer-closing", slotStart)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := store.Redeem(ctx, "buyer-closing", slotStart, token); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	// Second redeem fails: the hold is gone.
	if err := store.Redeem(ctx, "buyer-closing", slotStart, token); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("expected ErrHoldNotFound, got %v", err)
	}
	// Slot is acquirable again.
	if _, err := store.Acquire(ctx, "buyer-closing", slotStart); err != nil {
		t.Fatalf("Acquire after redeem: %v", err)
	}
}

func TestRedeemWrongToken(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "buyer-closing", slotStart); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := store.Redeem(ctx, "buyer-closing", slotStart, "stale-token"); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("a stale token must not release someone else's hold, got %v", err)
	}
}

func TestHoldExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	token, err := store.Acquire(ctx, "buyer-closing", slotStart)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	if err := store.Redeem(ctx, "buyer-closing", slotStart, token); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("expected expired hold, got %v", err)
	}
	if _, err := store.Acquire(ctx, "buyer-closing", slotStart); err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
}

func TestHeldStarts_BusinessLocalDay(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewStore(client, 5*time.Minute, tokyo)
	ctx := context.Background()

	// 10:00 local on 2025-05-19 is 01:00 UTC: the slot's UTC date matches,
	// but the day scan is anchored at local midnight, which is still
	// 2025-05-18 in UTC. The hold must be found on its business day.
	morning := time.Date(2025, 5, 19, 10, 0, 0, 0, tokyo)
	if _, err := store.Acquire(ctx, "buyer-closing", morning); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	localMidnight := time.Date(2025, 5, 19, 0, 0, 0, 0, tokyo)
	starts, err := store.HeldStarts(ctx, "buyer-closing", localMidnight)
	if err != nil {
		t.Fatalf("HeldStarts: %v", err)
	}
	if len(starts) != 1 || !starts[0].Equal(morning) {
		t.Fatalf("expected the morning hold on its business day, got %v", starts)
	}

	// And not on the neighboring days.
	for _, day := range []time.Time{localMidnight.AddDate(0, 0, -1), localMidnight.AddDate(0, 0, 1)} {
		starts, err := store.HeldStarts(ctx, "buyer-closing", day)
		if err != nil {
			t.Fatalf("HeldStarts: %v", err)
		}
		if len(starts) != 0 {
			t.Fatalf("hold leaked onto %s: %v", day.Format("2006-01-02"), starts)
		}
	}
}

func TestHeldStarts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	other := slotStart.Add(90 * time.Minute)
	if _, err := store.Acquire(ctx, "buyer-closing", slotStart); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := store.Acquire(ctx, "buyer-closing", other); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	// Next day and other type must not appear.
	if _, err := store.Acquire(ctx, "buyer-closing", slotStart.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := store.Acquire(ctx, "seller-closing", slotStart.Add(30*time.Minute)); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	starts, err := store.HeldStarts(ctx, "buyer-closing", slotStart)
	if err != nil {
		t.Fatalf("HeldStarts: %v", err)
	}
	if len(starts) != 2 {
		t.Fatalf("expected 2 held starts, got %d", len(starts))
	}
	seen := map[time.Time]bool{}
	for _, s := range starts {
		seen[s] = true
	}
	if !seen[slotStart] || !seen[other] {
		t.Fatalf("unexpected held starts: %v", starts)
	}
}
