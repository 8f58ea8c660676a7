package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedOutput marks model text that could not be parsed into the expected shape.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrEmptyOutput marks a model response with no usable text.
	ErrEmptyOutput = errors.New("empty model output")
	// ErrSchemaViolation marks parsed output that failed profile validation.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrDuplicateSuggestion marks a suggestion that repeats one inside the dedup window.
	ErrDuplicateSuggestion = errors.New("duplicate suggestion")
)
