package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/conveyor/pkg/models"
)

// Redis resolves secrets from a Redis hash per scope, keyed
// "conveyor:secrets:<scope>". The scope is typically a repository or
// organization identifier.
type Redis struct {
	client *redis.Client
	scope  string
}

// NewRedis creates a Redis-backed resolver from a connection URL.
func NewRedis(url, scope string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	return &Redis{client: redis.NewClient(opts), scope: scope}, nil
}

func (r *Redis) Resolve(ctx context.Context, name string) (models.Secret, error) {
	value, err := r.client.HGet(ctx, r.key(), name).Result()
	if errors.Is(err, redis.Nil) {
		return models.Secret{}, ErrNotFound
	}

	if err != nil {
		return models.Secret{}, fmt.Errorf("resolving secret %q: %w", name, err)
	}

	return models.NewSecret(value), nil
}

// Store writes a secret value, used by provisioning tooling.
func (r *Redis) Store(ctx context.Context, name, value string) error {
	return r.client.HSet(ctx, r.key(), name, value).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key() string {
	return "conveyor:secrets:" + r.scope
}
