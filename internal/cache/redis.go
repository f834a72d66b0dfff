package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

const (
	defaultRedisPrefix = "oe:orders:"
	scanBatch          = 200
)

// setIfGeneration пишет значение, только если счётчик поколения не изменился.
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then current = '0' end
if current == ARGV[1] then
  redis.call('SET', KEYS[2], ARGV[2])
  return 1
end
return 0
`)

// Redis — кэш чтения в Redis. Записи живут в пространстве текущего поколения,
// InvalidateAll увеличивает счётчик поколения и удаляет записи старых поколений.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedis создаёт Redis-кэш с префиксом ключей prefix.
func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

// generationKey лежит вне пространства записей "g<N>:", поэтому SCAN в InvalidateAll его не задевает.
func (c *Redis) generationKey() string {
	return c.prefix + "meta:gen"
}

func (c *Redis) entryPrefix(gen uint64) string {
	return c.prefix + "g" + strconv.FormatUint(gen, 10) + ":"
}

// Generation читает текущее поколение; отсутствующий счётчик означает 0.
func (c *Redis) Generation(ctx context.Context) (uint64, error) {
	raw, err := c.rdb.Get(ctx, c.generationKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	gen, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cache generation %q: %w", raw, err)
	}
	return gen, nil
}

func (c *Redis) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	gen, err := c.Generation(ctx)
	if err != nil {
		return domain.CacheEntry{}, false, err
	}

	raw, err := c.rdb.Get(ctx, c.entryPrefix(gen)+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("read cache entry: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

func (c *Redis) Set(ctx context.Context, gen uint64, key string, entry domain.CacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	keys := []string{c.generationKey(), c.entryPrefix(gen) + key}
	if err := setIfGeneration.Run(ctx, c.rdb, keys, strconv.FormatUint(gen, 10), payload).Err(); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (c *Redis) InvalidateAll(ctx context.Context) error {
	gen, err := c.rdb.Incr(ctx, c.generationKey()).Result()
	if err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}

	current := c.entryPrefix(uint64(gen))
	genKey := c.generationKey()
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.prefix+"g*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan stale cache entries: %w", err)
		}

		stale := make([]string, 0, len(keys))
		for _, k := range keys {
			if k != genKey && !strings.HasPrefix(k, current) {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			if err := c.rdb.Del(ctx, stale...).Err(); err != nil {
				return fmt.Errorf("delete stale cache entries: %w", err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping проверяет доступность Redis.
func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

var _ domain.ReadCache = (*Redis)(nil)
