package rotation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "review:rotation:"

// Lua 脚本保证多实例下 (v + 1) % mod 的原子性
const luaIncrementModScript = `
local v = tonumber(redis.call("GET", KEYS[1]) or "0")
if v == nil then
  v = 0
end
local mod = tonumber(ARGV[1])
v = (v + 1) % mod
redis.call("SET", KEYS[1], v)
return v
`

// RedisIndexStore 多个网关进程共享同一组轮询指针
type RedisIndexStore struct {
	rdb    *redis.Client
	script *redis.Script
}

func NewRedisIndexStore(rdb *redis.Client) *RedisIndexStore {
	return &RedisIndexStore{
		rdb:    rdb,
		script: redis.NewScript(luaIncrementModScript),
	}
}

func (s *RedisIndexStore) Get(ctx context.Context, pool string) (int, error) {
	val, err := s.rdb.Get(ctx, redisKeyPrefix+pool).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get rotation index: %w", err)
	}
	return val, nil
}

func (s *RedisIndexStore) Increment(ctx context.Context, pool string, mod int) (int, error) {
	if mod <= 0 {
		return 0, s.Set(ctx, pool, 0)
	}
	next, err := s.script.Run(ctx, s.rdb, []string{redisKeyPrefix + pool}, mod).Int()
	if err != nil {
		return 0, fmt.Errorf("redis increment rotation index: %w", err)
	}
	return next, nil
}

func (s *RedisIndexStore) Set(ctx context.Context, pool string, index int) error {
	if err := s.rdb.Set(ctx, redisKeyPrefix+pool, index, 0).Err(); err != nil {
		return fmt.Errorf("redis set rotation index: %w", err)
	}
	return nil
}

func (s *RedisIndexStore) Reset(ctx context.Context, pool string) error {
	return s.rdb.Del(ctx, redisKeyPrefix+pool).Err()
}

func (s *RedisIndexStore) All(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)

	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		idx, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		out[strings.TrimPrefix(key, redisKeyPrefix)] = idx
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan rotation indexes: %w", err)
	}
	return out, nil
}
