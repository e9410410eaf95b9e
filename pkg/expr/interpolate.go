package expr

import "strings"

const (
	interpOpen  = "${{"
	interpClose = "}}"
)

// Interpolate substitutes every ${{ ... }} region in the input with its
// evaluated value. Text outside the markers passes through untouched.
// Secrets interpolate as plaintext here: the result is destined for the
// runner environment, and rendered diagnostics are redacted separately.
func Interpolate(input string, ctx *Context) (string, error) {
	if !strings.Contains(input, interpOpen) {
		return input, nil
	}

	var sb strings.Builder

	rest := input

	for {
		start := strings.Index(rest, interpOpen)
		if start < 0 {
			sb.WriteString(rest)

			break
		}

		sb.WriteString(rest[:start])
		rest = rest[start+len(interpOpen):]

		end := strings.Index(rest, interpClose)
		if end < 0 {
			return "", newError(ErrKindSyntax, input, start, "unterminated ${{ expression")
		}

		value, err := Evaluate(strings.TrimSpace(rest[:end]), ctx)
		if err != nil {
			return "", err
		}

		sb.WriteString(Stringify(value))
		rest = rest[end+len(interpClose):]
	}

	return sb.String(), nil
}

// HasExpression reports whether the string contains an interpolation
// region.
func HasExpression(input string) bool {
	return strings.Contains(input, interpOpen)
}
