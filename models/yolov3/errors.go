package yolov3

import "fmt"

// ConfigurationError reports a raw tensor that does not match the configured
// grid/anchor/class layout for its detection layer. It indicates a
// mis-binding between the model and the decoder configuration, so it is
// fatal for the call and never retried.
type ConfigurationError struct {
	// Layer is the detection-layer index, or -1 when the layer count itself
	// is wrong.
	Layer int
	// Detail describes the mismatch.
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Layer < 0 {
		return fmt.Sprintf("decoder configuration mismatch: %s", e.Detail)
	}
	return fmt.Sprintf("decoder configuration mismatch at layer %d: %s", e.Layer, e.Detail)
}
