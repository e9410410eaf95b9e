package models

// Matrix fans one job definition out into multiple instances across
// combinations of axis values. Axes are an ordered list so expansion
// order is deterministic.
type Matrix struct {
	Axes    []MatrixAxis     `json:"axes,omitempty"    validate:"dive"`
	Include []map[string]any `json:"include,omitempty"`
	Exclude []map[string]any `json:"exclude,omitempty"`
}

// MatrixAxis is one named dimension of a matrix in declaration order.
type MatrixAxis struct {
	Name   string `json:"name"   validate:"required"`
	Values []any  `json:"values" validate:"required,min=1"`
}

// AxisNames returns the declared axis names in order.
func (m *Matrix) AxisNames() []string {
	names := make([]string, 0, len(m.Axes))
	for _, axis := range m.Axes {
		names = append(names, axis.Name)
	}

	return names
}

// HasAxis reports whether the matrix declares the named axis.
func (m *Matrix) HasAxis(name string) bool {
	for _, axis := range m.Axes {
		if axis.Name == name {
			return true
		}
	}

	return false
}
