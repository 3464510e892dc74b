package domain

import "errors"

var (
	// ErrMissingCredential reports that no upstream API key could be resolved.
	// Integrations return it before doing any network I/O.
	ErrMissingCredential = errors.New("upstream credential is not configured")

	// ErrMalformedCompletion reports a successful upstream status whose body
	// could not be decoded into a Completion.
	ErrMalformedCompletion = errors.New("malformed completion")
)
