package artifact

import "errors"

// fetchError signals that the store was unreachable or the path/timestamp
// pair did not resolve. A failed fetch leaves any loaded model untouched.
type fetchError struct {
	path string
	err  error
}

func (e fetchError) Error() string { return "fetch " + e.path + ": " + e.err.Error() }
func (e fetchError) Unwrap() error { return e.err }

// IsFetchError reports whether err came from a failed artifact fetch.
func IsFetchError(err error) bool {
	var e fetchError
	return errors.As(err, &e)
}
