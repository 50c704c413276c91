package core

import "errors"

// Sentinel errors shared across the ingestion and query paths. Handlers map
// these onto HTTP status codes; orchestrators branch on them to decide
// between "reject", "surface" and "rotate credentials and retry".
var (
	// ErrUnsupportedFormat rejects a file whose extension is not in the
	// allow-list. Never enters the pipeline.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrLoadFailed indicates corrupt or unreadable document content,
	// including invalid JSON syntax.
	ErrLoadFailed = errors.New("failed to load document")

	// ErrValidation rejects malformed requests and uploads synchronously,
	// before any pipeline work happens.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown company, document or session.
	ErrNotFound = errors.New("not found")

	// ErrNoDocuments is the terminal build error for a company with
	// nothing ingestible.
	ErrNoDocuments = errors.New("no documents found for processing")

	// ErrProvider wraps embedding/generation/index provider failures,
	// including quota and rate-limit errors. Triggers credential rotation.
	ErrProvider = errors.New("provider error")
)
