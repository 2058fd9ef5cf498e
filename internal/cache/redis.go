// Package cache реализует кеш метаданных историй поверх Redis.
// Кеш носит исключительно справочный характер и никогда не является
// источником истины: его потеря не влияет на корректность системы.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leonidvolkov/storygram/internal/config"
	"github.com/redis/go-redis/v9"
)

// Retention — окно хранения записей кеша.
const Retention = 24 * time.Hour

// Cache обёртка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// Get пытается получить значение из кеша по ключу.
func (c *Cache) Get(key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	err = json.Unmarshal([]byte(val), result)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение в кеш с временем жизни.
func (c *Cache) Set(key string, value any, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Db.Set(context.Background(), key, jsonData, expiration).Err()
}

// Invalidate удаляет значение из кеша по ключу.
func (c *Cache) Invalidate(key string) error {
	return c.Db.Del(context.Background(), key).Err()
}

// PruneStale удаляет записи с ключами по шаблону pattern, возраст которых
// превышает окно хранения. TTL у записей выставлен и так, поэтому удаление
// сверх него — страховка ежедневной чистки; возвращает количество удалённых.
func (c *Cache) PruneStale(ctx context.Context, pattern string, olderThan time.Duration) (int, error) {
	const op = "cache.PruneStale"

	var removed int
	iter := c.Db.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := c.Db.TTL(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("%s: %w", op, err)
		}
		// Остаточный TTL меньше (Retention - olderThan) означает,
		// что запись лежит дольше olderThan.
		if ttl >= 0 && ttl <= Retention-olderThan {
			if err := c.Db.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("%s: %w", op, err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%s: %w", op, err)
	}
	return removed, nil
}
