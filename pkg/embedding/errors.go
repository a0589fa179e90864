package embedding

import "errors"

var (
	// ErrInvalidAPIKey indicates a missing or empty API key for a backend
	// that requires one.
	ErrInvalidAPIKey = errors.New("embedding: invalid or missing API key")

	// ErrUnknownBackend is returned by New when SEMANTIC_MODEL names a
	// backend this package does not implement.
	ErrUnknownBackend = errors.New("embedding: unknown backend")

	// ErrEmbeddingFailed wraps a backend's underlying request failure.
	ErrEmbeddingFailed = errors.New("embedding: failed to create embedding")

	// ErrEmbeddingCountMismatch indicates a batch backend returned a
	// different number of vectors than texts requested.
	ErrEmbeddingCountMismatch = errors.New("embedding: embedding count mismatch")
)
