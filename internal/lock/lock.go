// Package lock serializes writes to one logical document across worker
// instances with a Redis key per document.
package lock

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "docgen:lock:"
	DefaultTTL = 2 * time.Minute
)

// ErrNotHeld is returned by Release when the lock expired or was taken
// over by another holder.
var ErrNotHeld = stderrors.New("lock not held")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out per-document locks.
type Locker struct {
	client   redis.UniversalClient
	ttl      time.Duration
	logger   logger.Logger
	newToken func() string
}

func NewLocker(client redis.UniversalClient, ttl time.Duration, log logger.Logger) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{
		client:   client,
		ttl:      ttl,
		logger:   log.WithFields(map[string]interface{}{"component": "lock"}),
		newToken: uuid.NewString,
	}
}

// Lock is a held document lock.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Acquire takes the lock for documentKey or fails with DOCUMENT_LOCKED
// when another holder has it.
func (l *Locker) Acquire(ctx context.Context, documentKey string) (*Lock, error) {
	key := keyPrefix + documentKey
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", documentKey, err)
	}
	if !ok {
		l.logger.Warn("Document is locked", map[string]interface{}{"document": documentKey})
		return nil, errors.NewDocumentLockedError(documentKey)
	}
	l.logger.Debug("Lock acquired", map[string]interface{}{"document": documentKey, "ttl": l.ttl.String()})
	return &Lock{locker: l, key: key, token: token}, nil
}

// Release frees the lock if it is still ours.
func (k *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, k.locker.client, []string{k.key}, k.token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", k.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// WithLock runs fn while holding the lock for documentKey. A failed
// release is logged, not returned.
func (l *Locker) WithLock(ctx context.Context, documentKey string, fn func(ctx context.Context) error) error {
	held, err := l.Acquire(ctx, documentKey)
	if err != nil {
		return err
	}
	defer func() {
		// Release even when ctx was cancelled by fn.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil {
			l.logger.Warn("Failed to release document lock", map[string]interface{}{
				"document": documentKey,
				"error":    err.Error(),
			})
		}
	}()
	return fn(ctx)
}
