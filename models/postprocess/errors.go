package postprocess

import "fmt"

// InvalidParameterError reports a suppression parameter outside its allowed
// range. Parameters are rejected at call time, never silently clamped.
type InvalidParameterError struct {
	// Name is the offending parameter.
	Name string
	// Value is the rejected value.
	Value float32
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %g is outside [0, 1]", e.Name, e.Value)
}
