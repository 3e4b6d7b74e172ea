// Package lock wraps Valkey's SET NX EX primitive in a small distributed
// lock. The TTL is a hard cap: a crashed holder cannot starve other callers
// past it. Release is token-checked so an expired holder cannot free a lock
// someone else has since acquired.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// releaseScript deletes the key only when it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lock: a Valkey-backed exclusive lock.
type Lock struct {
	client valkey.Client
}

// New creates a Lock over the given client.
func New(client valkey.Client) *Lock {
	return &Lock{client: client}
}

// Handle identifies one successful acquisition for release.
type Handle struct {
	Key   string
	Token string
}

// Acquire attempts to take the lock. Contention is not an error: it returns
// (nil, false, nil) when the lock is already held.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (*Handle, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("lock key is empty")
	}
	if ttl <= 0 {
		return nil, false, fmt.Errorf("invalid lock ttl: %s", ttl)
	}

	token, err := newToken()
	if err != nil {
		return nil, false, err
	}

	cmd := l.client.B().Set().Key(key).Value(token).Nx().Ex(ttl).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, &apperrors.LockError{Key: key, Operation: "acquire", Err: err}
	}
	return &Handle{Key: key, Token: token}, true, nil
}

// Release frees the lock if the handle's token still owns it. Releasing an
// already-expired handle is a no-op, not an error.
func (l *Lock) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	cmd := l.client.B().Eval().Script(releaseScript).Numkeys(1).Key(h.Key).Arg(h.Token).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		return &apperrors.LockError{Key: h.Key, Operation: "release", Err: err}
	}
	return nil
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("rand read failed: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
