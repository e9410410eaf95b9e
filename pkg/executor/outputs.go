package executor

import (
	"log/slog"
	"strings"

	"github.com/dukex/conveyor/pkg/artifacts"
	"github.com/dukex/conveyor/pkg/expr"
	"github.com/dukex/conveyor/pkg/models"
	"github.com/dukex/conveyor/pkg/protocol"
)

// outputCommandPrefix marks a workflow output command on a step's
// stdout: ::set-output name=<name>::<value>
const outputCommandPrefix = "::set-output name="

const stderrTailLimit = 512

// parseOutputCommands extracts step outputs from captured stdout.
// Non-command lines are ignored.
func parseOutputCommands(stdout string) map[string]string {
	var outputs map[string]string

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, outputCommandPrefix) {
			continue
		}

		rest := line[len(outputCommandPrefix):]

		name, value, ok := strings.Cut(rest, "::")
		if !ok || name == "" {
			continue
		}

		if outputs == nil {
			outputs = map[string]string{}
		}

		outputs[name] = value
	}

	return outputs
}

// tail returns the last portion of command stderr for diagnostics.
func tail(stderr string) string {
	trimmed := strings.TrimSpace(stderr)
	if len(trimmed) <= stderrTailLimit {
		return trimmed
	}

	return "..." + trimmed[len(trimmed)-stderrTailLimit:]
}

func interpolateEnv(env map[string]string, evalCtx *expr.Context) (map[string]string, error) {
	if len(env) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(env))

	for name, value := range env {
		interpolated, err := expr.Interpolate(value, evalCtx)
		if err != nil {
			return nil, err
		}

		out[name] = interpolated
	}

	return out, nil
}

func interpolateWith(with map[string]any, evalCtx *expr.Context) (map[string]any, error) {
	if len(with) == 0 {
		return map[string]any{}, nil
	}

	out := make(map[string]any, len(with))

	for name, value := range with {
		str, ok := value.(string)
		if !ok {
			out[name] = value

			continue
		}

		interpolated, err := expr.Interpolate(str, evalCtx)
		if err != nil {
			return nil, err
		}

		out[name] = interpolated
	}

	return out, nil
}

func mergeEnv(base, overlay map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overlay))

	for k, v := range base {
		out[k] = v
	}

	for k, v := range overlay {
		out[k] = v
	}

	return out
}

func protocolInput(req JobRequest, with map[string]any, store artifacts.Store, logger *slog.Logger) protocol.ActionInput {
	return protocol.ActionInput{
		RunID:     req.RunID,
		JobID:     req.Job.ID,
		MatrixKey: req.MatrixKey,
		With:      with,
		Artifacts: store,
		Logger:    logger,
	}
}

// redactor masks secret plaintext in any diagnostic string the executor
// records.
type redactor struct {
	plaintexts []string
}

func newRedactor(secrets map[string]models.Secret) *redactor {
	r := &redactor{}

	for _, secret := range secrets {
		if v := secret.Reveal(); v != "" {
			r.plaintexts = append(r.plaintexts, v)
		}
	}

	return r
}

func (r *redactor) apply(s string) string {
	for _, plaintext := range r.plaintexts {
		s = strings.ReplaceAll(s, plaintext, models.RedactedPlaceholder)
	}

	return s
}
