package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"routeopt/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "routeopt:lock:"

var _ ports.SolverLock = (*SolverLock)(nil)

// Deletes the key only while it still carries our token, so an expired lock
// taken over by another instance is left alone.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SolverLock is a ports.SolverLock shared by every instance using the same Redis.
type SolverLock struct {
	client goredis.UniversalClient

	mu     sync.Mutex
	tokens map[string]string
}

func NewSolverLock(client goredis.UniversalClient) *SolverLock {
	return &SolverLock{
		client: client,
		tokens: make(map[string]string),
	}
}

func (l *SolverLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

func (l *SolverLock) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := unlockScript.Run(ctx, l.client, []string{lockKeyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
