// Package lease provides a server-side orchestration lease keyed by room id.
// It strengthens host exclusivity from a process-local advisory flag to true
// at-most-once semantics across processes: acquire before orchestrating,
// release on completion, expire on crash.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/djamnbo/dnd-master-club/internal/session"
)

// Compile-time check against the session-side interface.
var _ session.Lease = (*Redis)(nil)

// releaseScript deletes the lease key only when the caller still holds it,
// so an expired-and-reacquired lease is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Redis-backed orchestration lease.
type Redis struct {
	client *redis.Client
	holder string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a lease manager. holder identifies this process; ttl must
// outlive the longest possible narration call so a crashed holder's lease
// expires instead of wedging the room.
func NewRedis(client *redis.Client, holder string, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		holder: holder,
		ttl:    ttl,
		logger: logger.Named("RedisLease"),
	}
}

func leaseKey(roomID string) string {
	return fmt.Sprintf("orchestration_lease:%s", roomID)
}

// Acquire attempts to take the room's orchestration lease. Returns false
// without error when another holder owns it.
func (l *Redis) Acquire(ctx context.Context, roomID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKey(roomID), l.holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease for room %s: %w", roomID, err)
	}
	if !ok {
		l.logger.Debug("lease held elsewhere", zap.String("roomID", roomID))
	}
	return ok, nil
}

// Release gives the lease back. A lease that expired or was taken over by
// another holder is left untouched.
func (l *Redis) Release(ctx context.Context, roomID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{leaseKey(roomID)}, l.holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lease for room %s: %w", roomID, err)
	}
	return nil
}
