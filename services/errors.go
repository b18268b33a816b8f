package services

import "errors"

var (
	// ErrEmptyMessage is returned when a chat request carries no message.
	ErrEmptyMessage = errors.New("no msg provided")
	// ErrNotReady is returned when the retriever or generator failed to initialize.
	ErrNotReady = errors.New("server not ready")
	// ErrModelLoad wraps failures to fetch or load the embedding model.
	ErrModelLoad = errors.New("embedding model unavailable")
	// ErrIndexUnavailable wraps failures to reach the named vector index.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrDimensionMismatch is returned for vectors whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
