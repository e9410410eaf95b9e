// Package secrets provides the secret lookup seam between the engine
// and an external secret store. Values cross the boundary wrapped in
// models.Secret so they stay redacted in every rendered form.
package secrets

import (
	"context"
	"errors"

	"github.com/dukex/conveyor/pkg/models"
)

// ErrNotFound indicates the named secret does not exist in the store.
var ErrNotFound = errors.New("secret not found")

// Resolver looks up one secret by name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (models.Secret, error)
}

// ResolveAll resolves every requested name, failing on the first miss.
func ResolveAll(ctx context.Context, resolver Resolver, names []string) (map[string]models.Secret, error) {
	out := make(map[string]models.Secret, len(names))

	for _, name := range names {
		secret, err := resolver.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}

		out[name] = secret
	}

	return out, nil
}

// Static is a fixed in-memory resolver, used by tests and single-run
// CLI invocations.
type Static map[string]string

func (s Static) Resolve(_ context.Context, name string) (models.Secret, error) {
	value, ok := s[name]
	if !ok {
		return models.Secret{}, ErrNotFound
	}

	return models.NewSecret(value), nil
}
