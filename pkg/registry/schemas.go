package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/conveyor/pkg/protocol"
)

// validateWith checks a step's `with:` block against the action's
// declared JSON schema. Factories without a schema accept anything.
func validateWith(factory protocol.ActionFactory, with map[string]any) error {
	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	if with == nil {
		with = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(with),
	)
	if err != nil {
		return fmt.Errorf("validating action configuration: %w", err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return errors.New(strings.Join(messages, "; "))
}
