package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolver(t *testing.T) {
	resolver := Static{"deploy_token": "hunter2"}

	secret, err := resolver.Resolve(context.Background(), "deploy_token")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret.Reveal())

	_, err = resolver.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAllFailsOnFirstMiss(t *testing.T) {
	resolver := Static{"a": "1"}

	resolved, err := ResolveAll(context.Background(), resolver, []string{"a"})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	_, err = ResolveAll(context.Background(), resolver, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnvResolver(t *testing.T) {
	t.Setenv("CONVEYOR_SECRET_DEPLOY_TOKEN", "hunter2")

	resolver := NewEnv("CONVEYOR_SECRET_")

	secret, err := resolver.Resolve(context.Background(), "deploy_token")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret.Reveal())

	_, err = resolver.Resolve(context.Background(), "other")
	assert.ErrorIs(t, err, ErrNotFound)
}
