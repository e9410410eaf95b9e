// Package log provides the built-in log action for `uses: log` steps.
package log

import (
	"context"
	"fmt"

	"github.com/dukex/conveyor/pkg/protocol"
)

// NewActionFactory creates the log action factory.
func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

type ActionFactory struct{}

func (*ActionFactory) ID() string {
	return "log"
}

func (*ActionFactory) Name() string {
	return "Log"
}

func (*ActionFactory) Description() string {
	return "Write a message to the run log"
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log",
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level (debug, info, warn, error)",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}

func (*ActionFactory) Create() (protocol.Action, error) {
	return &Action{}, nil
}

type Action struct{}

func (a *Action) Execute(ctx context.Context, input protocol.ActionInput) (map[string]string, error) {
	logger := input.Logger.With("action", "log")
	message := fmt.Sprintf("%v", input.With["message"])

	switch input.With["level"] {
	case "debug":
		logger.DebugContext(ctx, message)
	case "warn":
		logger.WarnContext(ctx, message)
	case "error":
		logger.ErrorContext(ctx, message)
	default:
		logger.InfoContext(ctx, message)
	}

	return map[string]string{}, nil
}
