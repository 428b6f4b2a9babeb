package manager

import "errors"

// ErrModelNotFound returns an error when a requested model id is not present in the registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals that no loader serves a model family,
// so the HTTP layer can return 503 Service Unavailable instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing loader.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// loaderError wraps a failed backend load (mapped to 502).
type loaderError struct {
	loader string
	id     string
	err    error
}

func (e loaderError) Error() string {
	return "loader " + e.loader + " failed to load " + e.id + ": " + e.err.Error()
}

func (e loaderError) Unwrap() error { return e.err }

// IsLoaderFailure reports whether err came from a loader backend.
func IsLoaderFailure(err error) bool {
	var e loaderError
	return errors.As(err, &e)
}
