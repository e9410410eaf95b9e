package secrets

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/conveyor/pkg/models"
)

// Env resolves secrets from prefixed process environment variables,
// e.g. prefix "CONVEYOR_SECRET_" maps the secret "deploy_token" to
// CONVEYOR_SECRET_DEPLOY_TOKEN.
type Env struct {
	prefix string
}

// NewEnv creates an environment-backed resolver.
func NewEnv(prefix string) *Env {
	return &Env{prefix: prefix}
}

func (e *Env) Resolve(_ context.Context, name string) (models.Secret, error) {
	key := e.prefix + strings.ToUpper(name)

	value, ok := os.LookupEnv(key)
	if !ok {
		return models.Secret{}, ErrNotFound
	}

	return models.NewSecret(value), nil
}
