package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRepository reads JSON-encoded suggestion lists from Redis.
//
// Keys:
//
//	<prefix>env:<id>:entities
//	<prefix>env:<id>:entity:<name>:attributes
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a repository over an existing client.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	return &RedisRepository{
		client: client,
		prefix: prefix,
	}
}

// NewRedisRepositoryFromURI creates a repository from a redis:// URI.
func NewRedisRepositoryFromURI(uri, prefix string) (*RedisRepository, error) {
	if uri == "" {
		uri = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}

	return NewRedisRepository(redis.NewClient(opts), prefix), nil
}

// EntitySuggestions implements Repository.
func (r *RedisRepository) EntitySuggestions(ctx context.Context, environmentID string) ([]EntitySuggestion, error) {
	var out []EntitySuggestion

	err := r.get(ctx, r.entitiesKey(environmentID), &out)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnvironment, environmentID)
	}

	if err != nil {
		return nil, err
	}

	return out, nil
}

// AttributeSuggestions implements Repository.
func (r *RedisRepository) AttributeSuggestions(
	ctx context.Context,
	environmentID, entity string,
) ([]AttributeSuggestion, error) {
	var out []AttributeSuggestion

	err := r.get(ctx, r.attributesKey(environmentID, entity), &out)
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownEntity, environmentID, entity)
	}

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Publish writes a snapshot for an environment in one transaction.
// Attribute lists of entities missing from snap are left untouched.
func (r *RedisRepository) Publish(ctx context.Context, environmentID string, snap *Snapshot) error {
	entities, err := json.Marshal(snap.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}

	attrs := make(map[string][]byte, len(snap.Attributes))

	for entity, list := range snap.Attributes {
		data, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode attributes of %s: %w", entity, err)
		}

		attrs[entity] = data
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.entitiesKey(environmentID), entities, 0)

		for entity, data := range attrs {
			pipe.Set(ctx, r.attributesKey(environmentID, entity), data, 0)
		}

		return nil
	})

	return err
}

// Close closes the Redis connection.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func (r *RedisRepository) get(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}

	return nil
}

func (r *RedisRepository) entitiesKey(environmentID string) string {
	return r.prefix + "env:" + environmentID + ":entities"
}

func (r *RedisRepository) attributesKey(environmentID, entity string) string {
	return r.prefix + "env:" + environmentID + ":entity:" + entity + ":attributes"
}
