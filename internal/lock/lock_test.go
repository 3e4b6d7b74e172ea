package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"
)

func testLock(t *testing.T) (*Lock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{mr.Addr()},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("valkey client: %v", err)
	}
	t.Cleanup(client.Close)
	return New(client), mr
}

func TestAcquireRelease(t *testing.T) {
	l, _ := testLock(t)
	ctx := context.Background()

	handle, acquired, err := l.Acquire(ctx, "lock:test", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !acquired {
		t.Fatal("fresh lock not acquired")
	}

	// Held lock rejects a second caller without error.
	_, again, err := l.Acquire(ctx, "lock:test", time.Minute)
	if err != nil {
		t.Fatalf("contended Acquire: %v", err)
	}
	if again {
		t.Fatal("held lock acquired twice")
	}

	if err := l.Release(ctx, handle); err != nil {
		t.Fatalf("Release: %v", err)
	}
	_, reacquired, err := l.Acquire(ctx, "lock:test", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if !reacquired {
		t.Fatal("released lock not reacquirable")
	}
}

func TestReleaseIsTokenChecked(t *testing.T) {
	l, mr := testLock(t)
	ctx := context.Background()

	stale, acquired, err := l.Acquire(ctx, "lock:test", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("Acquire: acquired=%v err=%v", acquired, err)
	}

	// Simulate expiry and a new holder taking over.
	mr.FastForward(2 * time.Minute)
	current, acquired, err := l.Acquire(ctx, "lock:test", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("reacquire after expiry: acquired=%v err=%v", acquired, err)
	}

	// The stale handle must not free the new holder's lock.
	if err := l.Release(ctx, stale); err != nil {
		t.Fatalf("stale Release: %v", err)
	}
	_, stolen, err := l.Acquire(ctx, "lock:test", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if stolen {
		t.Fatal("stale release freed a lock owned by another holder")
	}

	if err := l.Release(ctx, current); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestReleaseNilHandle(t *testing.T) {
	l, _ := testLock(t)
	if err := l.Release(context.Background(), nil); err != nil {
		t.Fatalf("Release(nil) = %v, want nil", err)
	}
}

func TestAcquireValidation(t *testing.T) {
	l, _ := testLock(t)
	ctx := context.Background()

	if _, _, err := l.Acquire(ctx, "  ", time.Minute); err == nil {
		t.Error("empty key accepted")
	}
	if _, _, err := l.Acquire(ctx, "lock:test", 0); err == nil {
		t.Error("zero ttl accepted")
	}
}
