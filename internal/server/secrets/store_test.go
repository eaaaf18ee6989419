package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dkravets/backoffice/internal/common"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestSetGetDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "v" {
		t.Fatalf("want v, got %q", got)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	_, err = store.Get(ctx, "k")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestGet_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestSet_Expires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "k")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound after expiry, got %v", err)
	}
}

func TestCompareAndDelete_SingleUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "code", "123456", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	ok, err := store.CompareAndDelete(ctx, "code", "123456")
	if err != nil {
		t.Fatalf("CompareAndDelete error: %v", err)
	}
	if !ok {
		t.Fatalf("first redemption must succeed")
	}

	ok, err = store.CompareAndDelete(ctx, "code", "123456")
	if err != nil {
		t.Fatalf("CompareAndDelete error: %v", err)
	}
	if ok {
		t.Fatalf("second redemption must fail")
	}
}

func TestCompareAndDelete_WrongValue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "code", "123456", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	ok, err := store.CompareAndDelete(ctx, "code", "654321")
	if err != nil {
		t.Fatalf("CompareAndDelete error: %v", err)
	}
	if ok {
		t.Fatalf("wrong value must not redeem")
	}

	got, err := store.Get(ctx, "code")
	if err != nil || got != "123456" {
		t.Fatalf("key must survive a failed redemption, got %q, %v", got, err)
	}
}

func TestIncrement(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Increment(ctx, "attempts", time.Minute)
		if err != nil {
			t.Fatalf("Increment error: %v", err)
		}
		if got != want {
			t.Fatalf("want %d, got %d", want, got)
		}
	}

	mr.FastForward(2 * time.Minute)

	got, err := store.Increment(ctx, "attempts", time.Minute)
	if err != nil {
		t.Fatalf("Increment error: %v", err)
	}
	if got != 1 {
		t.Fatalf("counter must restart after the window, got %d", got)
	}
}

func TestKeys(t *testing.T) {
	if got := VerificationKey("Alice@Example.com"); got != "verification:alice@example.com" {
		t.Fatalf("unexpected verification key %q", got)
	}
	if got := RoleChangeKey("Admin@x.com", "Bob@x.com", "manager"); got != "rolechange:admin@x.com:bob@x.com:manager" {
		t.Fatalf("unexpected role-change key %q", got)
	}
	if got := FailedLoginKey("10.0.0.1", "Bob@x.com"); got != "failed:login:10.0.0.1:bob@x.com" {
		t.Fatalf("unexpected failed-login key %q", got)
	}
	if got := LockoutKey("10.0.0.1", "bob@x.com"); got != "blocked:login:10.0.0.1:bob@x.com" {
		t.Fatalf("unexpected lockout key %q", got)
	}
}
