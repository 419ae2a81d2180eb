package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordScript admits an address into the day's set only while the set is
// under the limit. Membership check, cardinality check and insert run as
// one atomic unit so concurrent requests cannot overshoot the allowance.
// Returns {allowed, used}.
var recordScript = redis.NewScript(`
local key = KEYS[1]
local addr = ARGV[1]
local limit = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

if redis.call("SISMEMBER", key, addr) == 1 then
  return {1, redis.call("SCARD", key)}
end

local used = redis.call("SCARD", key)
if used >= limit then
  return {0, used}
end

redis.call("SADD", key, addr)
redis.call("EXPIRE", key, ttl)
return {1, used + 1}
`)

// RedisLedger is the shared Ledger backed by a Redis set per day bucket.
type RedisLedger struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisLedger wraps client into a Ledger.
func NewRedisLedger(client redis.Cmdable) *RedisLedger {
	return &RedisLedger{client: client, now: time.Now}
}

// Record implements Ledger.
func (l *RedisLedger) Record(ctx context.Context, user, tier, address string, limit int) (bool, int, error) {
	now := l.now()
	key := dayKey(user, tier, now)
	ttl := int(untilNextUTCDay(now).Seconds())

	result, err := recordScript.Run(ctx, l.client, []string{key}, address, limit, ttl).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("quota script: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("quota script returned %d values", len(result))
	}

	return result[0] == 1, int(result[1]), nil
}
