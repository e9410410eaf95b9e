package registry_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logaction "github.com/dukex/conveyor/pkg/actions/log"
	"github.com/dukex/conveyor/pkg/registry"
)

func TestCreateUnknownAction(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())

	_, err := reg.CreateAction("ghost", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestCreateActionValidatesConfiguration(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(logaction.NewActionFactory())

	action, err := reg.CreateAction("log", map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.NotNil(t, action)

	// The schema requires a message.
	_, err = reg.CreateAction("log", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestActionIDs(t *testing.T) {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterAction(logaction.NewActionFactory())

	assert.Contains(t, reg.ActionIDs(), "log")
}
