package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// unlockScript удаляет ключ блокировки, только если он принадлежит этому процессу
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisCache реализует CachePort поверх Redis. Все ключи получают префикс сервиса
type RedisCache struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	tokens map[string]string // ключ блокировки -> токен владельца
}

func NewRedisCache(ctx context.Context, host string, port int, password string, db int, prefix string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, prefix), nil
}

func newRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, tokens: make(map[string]string)}
}

func (r *RedisCache) buildKey(key string) string {
	if r.prefix != "" {
		return r.prefix + ":" + key
	}
	return key
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return r.client.Set(ctx, r.buildKey(key), value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.buildKey(key)).Err()
}

// Lock берет блокировку через SET NX с TTL
func (r *RedisCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.buildKey("lock:"+key), token, expiration).Result()
	if err != nil {
		return false, err
	}
	if ok {
		r.mu.Lock()
		r.tokens[key] = token
		r.mu.Unlock()
	}
	return ok, nil
}

// Unlock снимает блокировку, если она все еще наша
func (r *RedisCache) Unlock(ctx context.Context, key string) error {
	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	return unlockScript.Run(ctx, r.client, []string{r.buildKey("lock:" + key)}, token).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
