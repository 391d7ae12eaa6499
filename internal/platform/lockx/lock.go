// Package lockx provides redis-backed leases used to keep a queue's rebalance
// pass exclusive across processes. A lease is acquired with SetNX and released
// only by the holder, via a compare-and-delete script keyed on the lease token.
package lockx

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// Lease is an exclusive, expiring claim on a key. The TTL doubles as the
// watchdog: a crashed holder's lease lapses on its own.
type Lease struct {
	Key   string
	Token string
	TTL   time.Duration
}

func Acquire(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lease, bool, error) {
	if client == nil {
		return nil, false, errors.New("redis client not initialized")
	}
	if ttl <= 0 {
		return nil, false, errors.New("ttl must be > 0")
	}
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{Key: key, Token: token, TTL: ttl}, true, nil
}

func Release(ctx context.Context, client *redis.Client, lease *Lease) error {
	if client == nil {
		return errors.New("redis client not initialized")
	}
	if lease == nil {
		return errors.New("lease is nil")
	}
	return client.Eval(ctx, releaseScript, []string{lease.Key}, lease.Token).Err()
}
