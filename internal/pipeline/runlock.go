package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voicemetrics/vaac-pipeline/internal/schema"
	perrors "github.com/voicemetrics/vaac-pipeline/pkg/errors"
	"github.com/voicemetrics/vaac-pipeline/pkg/redis"
)

// Locker serializes runs per (input, report type) so concurrent triggers for
// the same identity can never race on the checkpoint.
type Locker interface {
	// Acquire returns a release function on success, or ErrRunLocked when
	// another run currently holds the key.
	Acquire(ctx context.Context, inputID string, report schema.ReportType) (func(context.Context), error)
}

// RedisLocker implements Locker with a SET NX PX key per identity. The TTL
// bounds how long a crashed run can block its successors; release is
// owner-checked so an expired-and-reacquired lock is never deleted by the
// previous holder.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker creates a RedisLocker with the given lock TTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "run-locker"),
	}
}

func lockKey(inputID string, report schema.ReportType) string {
	return fmt.Sprintf("runlock:%s:%s", inputID, report)
}

// Acquire takes the lock or fails fast with ErrRunLocked.
func (l *RedisLocker) Acquire(ctx context.Context, inputID string, report schema.ReportType) (func(context.Context), error) {
	key := lockKey(inputID, report)
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", perrors.ErrRunLocked, inputID, report)
	}
	release := func(ctx context.Context) {
		released, err := l.client.ReleaseIfOwner(ctx, key, owner)
		if err != nil {
			l.logger.Error("failed to release run lock", "key", key, "error", err)
			return
		}
		if !released {
			l.logger.Warn("run lock expired before release", "key", key)
		}
	}
	return release, nil
}

// NoopLocker performs no locking; used when runs are already serialized by
// the host (single scheduler, tests).
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, schema.ReportType) (func(context.Context), error) {
	return func(context.Context) {}, nil
}
