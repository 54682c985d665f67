package onnx

import "errors"

// ErrRuntimeUnavailable is returned by the stub runtime when the binary was
// built without the 'onnx' build tag.
var ErrRuntimeUnavailable = errors.New("onnx runtime not built into this binary (build with -tags=onnx)")

// loadError signals a failed load or reload. The prior session, if any,
// stays committed when a load fails.
type loadError struct {
	path string
	err  error
}

func (e loadError) Error() string { return "load " + e.path + ": " + e.err.Error() }
func (e loadError) Unwrap() error { return e.err }

// IsLoadError reports whether err came from a failed load/reload.
func IsLoadError(err error) bool {
	var e loadError
	return errors.As(err, &e)
}

// shapeError signals input data that cannot be shaped to the model's
// declared input layout.
type shapeError struct{ msg string }

func (e shapeError) Error() string { return "shape: " + e.msg }

// ErrShape constructs a shape error with the given description. Exposed for
// callers that validate tensor layouts before submission.
func ErrShape(msg string) error { return shapeError{msg: msg} }

// IsShapeError reports whether err indicates malformed input dimensions
// (map to 400 at the HTTP layer).
func IsShapeError(err error) bool {
	var e shapeError
	return errors.As(err, &e)
}

// evalError signals a runtime execution failure during evaluate. It always
// carries the runtime's diagnostic.
type evalError struct {
	model string
	err   error
}

func (e evalError) Error() string { return "evaluate " + e.model + ": " + e.err.Error() }
func (e evalError) Unwrap() error { return e.err }

// IsEvalError reports whether err came from a failed evaluation.
func IsEvalError(err error) bool {
	var e evalError
	return errors.As(err, &e)
}
