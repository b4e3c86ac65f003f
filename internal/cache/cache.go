// cache — кэш категорий в Redis.
//
// Кэш опционален: при ошибках Redis вызывающая сторона обращается к хранилищу,
// а сбои кэша только логируются.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix — префикс ключей, если не задан в конфигурации.
const DefaultPrefix = "content:category:"

// CategoryCache — минимальный контракт кэша категорий.
type CategoryCache interface {
	// Get возвращает категорию и признак её наличия в кэше.
	Get(ctx context.Context, id string) (*models.Category, bool, error)
	// Set сохраняет категорию с TTL кэша.
	Set(ctx context.Context, c *models.Category) error
	// Invalidate удаляет запись (например, после изменения postCount).
	Invalidate(ctx context.Context, id string) error
	// Close закрывает клиент Redis.
	Close() error
}

// Stats — счётчики обращений к кэшу.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// RedisCache хранит категории JSON-строками с TTL.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64
	lookup *prometheus.CounterVec
}

var lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "content",
	Subsystem: "category_cache",
	Name:      "lookups_total",
	Help:      "Category cache lookups by result.",
}, []string{"result"})

// MustRegisterMetrics регистрирует метрики кэша в реестре.
func MustRegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(lookups)
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется DefaultPrefix.
func NewRedisCache(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisCache, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be > 0")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}

	return newWithClient(rdb, prefix, ttl), nil
}

func newWithClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl, lookup: lookups}
}

func (c *RedisCache) key(id string) string { return c.prefix + id }

// Get читает категорию. Отсутствие ключа — (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, id string) (*models.Category, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.miss()
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	var out models.Category
	if err := json.Unmarshal(raw, &out); err != nil {
		// Битая запись равносильна промаху.
		c.miss()
		_ = c.rdb.Del(ctx, c.key(id)).Err()
		return nil, false, nil
	}

	c.hits.Add(1)
	c.lookup.WithLabelValues("hit").Inc()

	return &out, true, nil
}

func (c *RedisCache) miss() {
	c.misses.Add(1)
	c.lookup.WithLabelValues("miss").Inc()
}

// Set сохраняет категорию.
func (c *RedisCache) Set(ctx context.Context, cat *models.Category) error {
	if cat == nil || cat.ID == "" {
		return fmt.Errorf("cache: empty category")
	}

	raw, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}

	if err := c.rdb.Set(ctx, c.key(cat.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}

	return nil
}

// Invalidate удаляет запись категории.
func (c *RedisCache) Invalidate(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("cache: del: %w", err)
	}

	return nil
}

// Stats возвращает счётчики попаданий и промахов с момента создания.
func (c *RedisCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close закрывает клиент Redis.
func (c *RedisCache) Close() error { return c.rdb.Close() }
