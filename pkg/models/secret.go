package models

import "log/slog"

// RedactedPlaceholder replaces secret values in every rendered form.
const RedactedPlaceholder = "***"

// Secret wraps a sensitive value so it never appears in plain form in
// logs, errors, or serialized output. The plaintext is reachable only
// through Reveal, which call sites use at the last possible moment
// (e.g. injecting a runner environment variable).
type Secret struct {
	value string
}

// NewSecret wraps a plaintext value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the plaintext value.
func (s Secret) Reveal() string {
	return s.value
}

// String implements fmt.Stringer with the redaction placeholder.
func (s Secret) String() string {
	return RedactedPlaceholder
}

// GoString keeps %#v renders redacted as well.
func (s Secret) GoString() string {
	return "models.Secret(" + RedactedPlaceholder + ")"
}

// LogValue implements slog.LogValuer so structured logs stay redacted.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(RedactedPlaceholder)
}

// MarshalJSON redacts the value in any JSON serialization.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + RedactedPlaceholder + `"`), nil
}
