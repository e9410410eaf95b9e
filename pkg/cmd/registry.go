// Package cmd provides common initialization for the command-line
// binaries: event bus, persistence, registry and secrets factories
// driven by flags.
package cmd

import (
	"log/slog"

	"github.com/dukex/conveyor/pkg/actions/artifactupload"
	"github.com/dukex/conveyor/pkg/actions/httprequest"
	logaction "github.com/dukex/conveyor/pkg/actions/log"
	"github.com/dukex/conveyor/pkg/registry"
)

// NewRegistry creates an action registry with the built-in actions
// registered.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	reg.RegisterAction(logaction.NewActionFactory())
	reg.RegisterAction(httprequest.NewActionFactory())
	reg.RegisterAction(artifactupload.NewActionFactory())

	return reg
}
