package coordination

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// acquireOptimScript atomically does everything first_available_optim needs
// on a successful acquisition: set the (model, provider) lock (only if
// absent), read the prior last_host, set the new last_host, add host to the
// model's known-hosts set, bump host:{host}[model], and record a reverse
// lockKey -> host index release uses (since Chooser.Release only carries
// the model and provider id, not the host). KEYS[1]=lockKey,
// KEYS[2]=model:{m}:last_host, KEYS[3]=model:{m}:hosts, KEYS[4]=host:{host},
// KEYS[5]=lockhost:{lockKey}. ARGV[1]=lockValue, ARGV[2]=ttlMillis,
// ARGV[3]=model, ARGV[4]=host.
var acquireOptimScript = redis.NewScript(`
local lockKey = KEYS[1]
local lastHostKey = KEYS[2]
local hostsKey = KEYS[3]
local hostHashKey = KEYS[4]
local reverseHostKey = KEYS[5]
local lockValue = ARGV[1]
local ttlMillis = tonumber(ARGV[2])
local model = ARGV[3]
local host = ARGV[4]

if redis.call("EXISTS", lockKey) == 1 then
  return {0, ""}
end

if ttlMillis > 0 then
  redis.call("SET", lockKey, lockValue, "PX", ttlMillis)
  redis.call("SET", reverseHostKey, host, "PX", ttlMillis)
else
  redis.call("SET", lockKey, lockValue)
  redis.call("SET", reverseHostKey, host)
end

local prior = redis.call("GET", lastHostKey)
if prior == false then
  prior = ""
end
redis.call("SET", lastHostKey, host)
redis.call("SADD", hostsKey, host)
redis.call("HINCRBY", hostHashKey, model, 1)

return {1, prior}
`)

// releaseOptimScript is the inverse bookkeeping: look up the host via the
// reverse index, delete the lock and the index, decrement host:{host}[model],
// and if it reaches zero, drop the field and remove host from the model's
// host set. KEYS[1]=lockKey, KEYS[2]=lockhost:{lockKey}.
// ARGV[1]=model.
var releaseOptimScript = redis.NewScript(`
local lockKey = KEYS[1]
local reverseHostKey = KEYS[2]
local model = ARGV[1]

local host = redis.call("GET", reverseHostKey)
redis.call("DEL", lockKey)
redis.call("DEL", reverseHostKey)
if host == false then
  return 0
end

local hostsKey = "model:" .. model .. ":hosts"
local hostHashKey = "host:" .. host
local remaining = redis.call("HINCRBY", hostHashKey, model, -1)
if remaining <= 0 then
  redis.call("HDEL", hostHashKey, model)
  redis.call("SREM", hostsKey, host)
end

return remaining
`)

// redisStore is the production Store, backed by go-redis/v9. Compound
// updates run as Lua scripts so every participant sees them atomically,
// the same guarantee memoryStore gets for free from its single mutex.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured go-redis client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func wrapErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}

func (r *redisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return ok, nil
}

func (r *redisStore) Del(ctx context.Context, key string) error {
	return wrapErr(r.client.Del(ctx, key).Err())
}

func (r *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return wrapErr(r.client.Expire(ctx, key, ttl).Err())
}

func (r *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr(err)
	}
	return v, true, nil
}

func (r *redisStore) Set(ctx context.Context, key, value string) error {
	return wrapErr(r.client.Set(ctx, key, value, 0).Err())
}

func (r *redisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return wrapErr(r.client.HSet(ctx, key, args...).Err())
}

func (r *redisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := r.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr(err)
	}
	return v, true, nil
}

func (r *redisStore) HDel(ctx context.Context, key, field string) error {
	return wrapErr(r.client.HDel(ctx, key, field).Err())
}

func (r *redisStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	v, err := r.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	return v, nil
}

func (r *redisStore) HLen(ctx context.Context, key string) (int64, error) {
	v, err := r.client.HLen(ctx, key).Result()
	if err != nil {
		return 0, wrapErr(err)
	}
	return v, nil
}

func (r *redisStore) SAdd(ctx context.Context, key, member string) error {
	return wrapErr(r.client.SAdd(ctx, key, member).Err())
}

func (r *redisStore) SRem(ctx context.Context, key, member string) error {
	return wrapErr(r.client.SRem(ctx, key, member).Err())
}

func (r *redisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	v, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return v, nil
}

func (r *redisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	v, err := r.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return v, nil
}

func (r *redisStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	return wrapErr(r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err())
}

func (r *redisStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]ZMember, error) {
	res, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	out := make([]ZMember, 0, len(res))
	for _, z := range res {
		member, _ := z.Member.(string)
		out = append(out, ZMember{Member: member, Score: z.Score})
	}
	return out, nil
}

func (r *redisStore) ZRem(ctx context.Context, key, member string) error {
	return wrapErr(r.client.ZRem(ctx, key, member).Err())
}

func (r *redisStore) AcquireOptim(ctx context.Context, lockKey, lockValue string, ttl time.Duration, model, host string) (OptimAcquireResult, error) {
	keys := []string{lockKey, "model:" + model + ":last_host", "model:" + model + ":hosts", "host:" + host, "lockhost:" + lockKey}
	res, err := acquireOptimScript.Run(ctx, r.client, keys, lockValue, ttl.Milliseconds(), model, host).Result()
	if err != nil {
		return OptimAcquireResult{}, wrapErr(err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return OptimAcquireResult{}, errors.New("coordination: unexpected acquire_optim script result")
	}
	acquired, _ := vals[0].(int64)
	prior, _ := vals[1].(string)
	return OptimAcquireResult{Acquired: acquired == 1, PriorLastHost: prior}, nil
}

func (r *redisStore) ReleaseOptim(ctx context.Context, lockKey, model string) error {
	keys := []string{lockKey, "lockhost:" + lockKey}
	_, err := releaseOptimScript.Run(ctx, r.client, keys, model).Result()
	return wrapErr(err)
}

func (r *redisStore) Ping(ctx context.Context) error {
	return wrapErr(r.client.Ping(ctx).Err())
}

func formatScore(f float64) string {
	if f == negInf {
		return "-inf"
	}
	if f == posInf {
		return "+inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

const (
	negInf = -1 << 62
	posInf = 1 << 62
)
