package domain

import "errors"

var (
	// ErrNotFound is returned when no provider can resolve a barcode or query
	ErrNotFound = errors.New("product not found")

	// ErrInvalidInput is returned when request parameters are empty or malformed
	ErrInvalidInput = errors.New("invalid request parameters")

	// ErrNoProviders is returned when no provider is configured or available
	ErrNoProviders = errors.New("no nutrition providers available")

	// ErrProviderFailure wraps transport/protocol failures from one adapter
	ErrProviderFailure = errors.New("provider request failed")

	// ErrKeyNotFound is returned by a KVStore when a key is absent
	ErrKeyNotFound = errors.New("key not found")
)
