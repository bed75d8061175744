package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/db"
)

// releaseScript deletes the lock only when the caller still owns it.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// AcquireLock takes key for ttl via SET NX PX.
func (s *Store) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := s.b().Set().Key(key).Value(token).Nx().Px(ttl).Build()
	err := s.do(ctx, cmd).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpLock, Err: err}
	}
	return true, nil
}

// ReleaseLock frees key if token still holds it.
func (s *Store) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	cmd := s.b().Eval().Script(releaseScript).Numkeys(1).Key(key).Arg(token).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpUnlock, Err: err}
	}
	return n == 1, nil
}
