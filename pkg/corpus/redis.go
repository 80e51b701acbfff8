package corpus

import (
	"context"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list read when RedisSource.Key is empty.
const DefaultRedisKey = "markiavelli:corpus"

// RedisSource reads documents from a Redis list, one document per element,
// in list order. Collectors append with Push.
type RedisSource struct {
	Client *backend.Client
	Key    string
}

// NewRedisSource connects to a Redis server and reads the given list.
func NewRedisSource(address, password string, db int, key string) *RedisSource {
	return &RedisSource{
		Client: backend.NewClient(&backend.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
		Key: key,
	}
}

func (r *RedisSource) key() string {
	if r.Key == "" {
		return DefaultRedisKey
	}
	return r.Key
}

// Documents returns every element of the list, whitespace collapsed. Empty
// elements are skipped. A missing key is an empty corpus.
func (r *RedisSource) Documents(ctx context.Context) ([]string, error) {
	items, err := r.Client.LRange(ctx, r.key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("could not read redis list %s: %w", r.key(), err)
	}
	docs := make([]string, 0, len(items))
	for _, item := range items {
		if doc := collapse(item); doc != "" {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Push appends documents to the end of the list.
func (r *RedisSource) Push(ctx context.Context, docs ...string) error {
	if len(docs) == 0 {
		return nil
	}
	values := make([]interface{}, len(docs))
	for i, d := range docs {
		values[i] = d
	}
	if err := r.Client.RPush(ctx, r.key(), values...).Err(); err != nil {
		return fmt.Errorf("could not push to redis list %s: %w", r.key(), err)
	}
	return nil
}

// Name returns the list key.
func (r *RedisSource) Name() string {
	return "redis:" + r.key()
}
