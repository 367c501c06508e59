package domain

import "errors"

var (
	// ErrMalformedJSON signals a request body that is not a JSON object.
	// It is a fault, not a client error: callers let it reach the server's
	// generic error handler.
	ErrMalformedJSON = errors.New("could not parse body")
	// ErrUnknownCacheBackend is returned when the configured cache backend
	// is neither "redis" nor "memory".
	ErrUnknownCacheBackend = errors.New("unknown cache backend")
)
