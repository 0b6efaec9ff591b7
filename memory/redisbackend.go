package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisBackend implements Backend (plus Init/Terminate/Exists/Clear) on
// top of a Redis client, namespacing every key under a prefix. Values
// are JSON-encoded, grounded on gomind's RedisMemory store.
//
// Search and ListKeys use SCAN rather than KEYS, since this backend is
// meant to survive against a real shared Redis instance, not just a
// local test fixture.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

// NewRedisBackend wraps an already-constructed *redis.Client. Callers
// own the client's lifecycle except that Terminate closes it.
func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	if namespace == "" {
		namespace = "agentcore"
	}
	return &RedisBackend{client: client, namespace: namespace}
}

func (r *RedisBackend) key(k string) string {
	return fmt.Sprintf("%s:%s", r.namespace, k)
}

func (r *RedisBackend) Init(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Terminate(_ context.Context) error {
	return r.client.Close()
}

func (r *RedisBackend) Store(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("memory/redis: marshal value for %q: %w", key, err)
	}
	return r.client.Set(ctx, r.key(key), data, 0).Err()
}

func (r *RedisBackend) Retrieve(ctx context.Context, key string) (interface{}, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("memory/redis: key not found: %s", key)
		}
		return nil, fmt.Errorf("memory/redis: get %q: %w", key, err)
	}
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("memory/redis: decode %q: %w", key, err)
	}
	return value, nil
}

// Search scans the namespace for keys containing query as a substring,
// since go-redis/v9 has no native full-text search primitive.
func (r *RedisBackend) Search(ctx context.Context, query string) ([]Entry, error) {
	var out []Entry
	iter := r.client.Scan(ctx, 0, r.key("*"), 0).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		short := full[len(r.namespace)+1:]
		if query != "" && !strings.Contains(short, query) {
			continue
		}
		data, err := r.client.Get(ctx, full).Bytes()
		if err != nil {
			continue
		}
		var value interface{}
		if err := json.Unmarshal(data, &value); err != nil {
			continue
		}
		out = append(out, Entry{Key: short, Value: value})
	}
	return out, iter.Err()
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisBackend) ListKeys(ctx context.Context) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, r.key("*"), 0).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		out = append(out, full[len(r.namespace)+1:])
	}
	return out, iter.Err()
}

func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisBackend) Clear(ctx context.Context) error {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *RedisBackend) Info(ctx context.Context) (map[string]interface{}, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"kind": "redis", "namespace": r.namespace, "size": len(keys)}, nil
}

var (
	_ Backend     = (*RedisBackend)(nil)
	_ Initializer = (*RedisBackend)(nil)
	_ Terminator  = (*RedisBackend)(nil)
	_ Exister     = (*RedisBackend)(nil)
	_ Informer    = (*RedisBackend)(nil)
	_ Clearer     = (*RedisBackend)(nil)
)
