package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// scanCount is the COUNT hint passed to SCAN.
	scanCount = 500

	// deleteBatch bounds the number of keys per DEL command.
	deleteBatch = 500
)

// RedisBackend implements Backend on a Redis server.
// Tags are Redis sets named after the tag; each set's TTL is kept at least as
// long as its longest-lived member.
type RedisBackend struct {
	redis *redis.Client

	// afterSnapshot runs between reading a tag's members and removing them.
	afterSnapshot func()
}

// NewRedisBackend creates a Redis backend.
func NewRedisBackend(redisClient *redis.Client) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisBackend{redis: redisClient}
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get", err)
	}
	return data, nil
}

// Set implements Backend. Value and tag index updates go out in one
// MULTI/EXEC so a reader never sees a tagged key missing from its index.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error {
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, tag, key)
			if ttl > 0 {
				pipe.ExpireNX(ctx, tag, ttl)
				pipe.ExpireGT(ctx, tag, ttl)
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var removed int64
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		n, err := b.redis.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, unavailable("del", err)
		}
		removed += n
	}
	return removed, nil
}

// Scan implements Backend using SCAN so large keyspaces never block the server.
func (b *RedisBackend) Scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := b.redis.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, unavailable("scan", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return dedupe(keys), nil
}

// TTL implements Backend.
func (b *RedisBackend) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := b.redis.TTL(ctx, key).Result()
	if err != nil {
		return KeyMissing, unavailable("ttl", err)
	}
	return ttl, nil
}

// DeleteByTag implements Backend. Batches are deleted independently; a failed
// batch is reported as ErrPartialFlush after the remaining batches have run.
func (b *RedisBackend) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	members, err := b.redis.SMembers(ctx, tag).Result()
	if err != nil {
		return 0, unavailable("smembers", err)
	}
	if b.afterSnapshot != nil {
		b.afterSnapshot()
	}

	var (
		removed int64
		failed  int
		lastErr error
	)
	// Only the snapshotted members leave the index. Keys tagged while the
	// flush runs stay indexed; Redis drops the set once it is empty.
	for start := 0; start < len(members); start += deleteBatch {
		end := min(start+deleteBatch, len(members))
		batch := members[start:end]
		n, err := b.redis.Del(ctx, batch...).Result()
		if err != nil {
			// Keep these members indexed so a retry can find them.
			failed += len(batch)
			lastErr = err
			continue
		}
		removed += n

		untag := make([]interface{}, len(batch))
		for i, m := range batch {
			untag[i] = m
		}
		if err := b.redis.SRem(ctx, tag, untag...).Err(); err != nil {
			lastErr = err
			failed += len(batch)
		}
	}

	if failed > 0 {
		return removed, fmt.Errorf("%w: %d of %d keys not cleared from %s: %w", ErrPartialFlush, failed, len(members), tag, lastErr)
	}
	return removed, nil
}

// DeletePrefix implements Backend.
func (b *RedisBackend) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	keys, err := b.Scan(ctx, escapeGlob(prefix)+"*")
	if err != nil {
		return 0, err
	}
	return b.Delete(ctx, keys...)
}

// Info implements Backend by parsing INFO and DBSIZE.
func (b *RedisBackend) Info(ctx context.Context) (ServerInfo, error) {
	raw, err := b.redis.Info(ctx, "server", "clients", "memory", "stats").Result()
	if err != nil {
		return ServerInfo{}, unavailable("info", err)
	}
	size, err := b.redis.DBSize(ctx).Result()
	if err != nil {
		return ServerInfo{}, unavailable("dbsize", err)
	}

	fields := parseInfo(raw)
	return ServerInfo{
		Backend:          "redis",
		Version:          fields["redis_version"],
		UsedMemory:       fields["used_memory_human"],
		ConnectedClients: infoInt(fields, "connected_clients"),
		Hits:             infoInt(fields, "keyspace_hits"),
		Misses:           infoInt(fields, "keyspace_misses"),
		TotalKeys:        size,
		UptimeSeconds:    infoInt(fields, "uptime_in_seconds"),
	}, nil
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.redis.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %w", ErrUnavailable, op, err)
}

// parseInfo turns the INFO text reply into a field map.
func parseInfo(raw string) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[name] = value
	}
	return fields
}

func infoInt(fields map[string]string, name string) int64 {
	n, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// escapeGlob escapes glob metacharacters so prefix is matched literally.
func escapeGlob(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dedupe removes the duplicates SCAN may return while keys are rehashed.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
