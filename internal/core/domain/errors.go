package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input
	// (empty URL, empty text, non-positive top-k).
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable indicates the embedding backend failed
	// (network, timeout or model error) after retries were exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates the active embedding backend produces
	// vectors of a different dimensionality than the persisted index.
	// Fatal at startup; requires rebuilding the index or reverting the backend.
	ErrDimensionMismatch = errors.New("index dimension mismatch")

	// ErrIDCollision indicates a vector id was inserted twice.
	// This is an internal invariant violation, not an expected runtime condition.
	ErrIDCollision = errors.New("vector id collision")

	// ErrEngineClosed indicates an operation was attempted after Close.
	ErrEngineClosed = errors.New("engine closed")
)
