package experiment

import "errors"

var (
	// ErrAlreadyExists reports an attempted create over an existing
	// experiment. Callers redirect to the resume flow instead of
	// overwriting.
	ErrAlreadyExists = errors.New("experiment already exists")

	// ErrNotFound reports a resume request for an experiment with no
	// discoverable config.
	ErrNotFound = errors.New("experiment not found")
)
