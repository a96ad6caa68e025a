package sentiment

import "errors"

var (
	// ErrInvalidInput is returned for empty or whitespace-only text.
	ErrInvalidInput = errors.New("text must not be empty")

	// ErrInferenceFailure wraps any classifier error that fails the whole request.
	ErrInferenceFailure = errors.New("sentiment inference failed")
)
