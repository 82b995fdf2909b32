package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Item-level ingestion errors. These fail a single batch item and
	// never abort the rest of the batch.

	// ErrParse indicates the input could not be parsed as its declared
	// media type at all.
	ErrParse = errors.New("parse failed")

	// ErrUnmatchedSchema indicates no parse case met the confidence
	// threshold. The item falls back to the generic case; this is
	// recorded as a warning for registry curation, not a failure.
	ErrUnmatchedSchema = errors.New("no parse case matched")

	// ErrMapping indicates a required canonical field was missing with
	// no default.
	ErrMapping = errors.New("canonical mapping failed")

	// ErrKeywordExtraction indicates keyword extraction produced nothing.
	// Non-fatal: the document persists with zero keyword links.
	ErrKeywordExtraction = errors.New("keyword extraction produced no terms")

	// ErrPersistenceConflict indicates store-level write contention or a
	// per-item timeout. Retried once with backoff before surfacing as an
	// item failure.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// System-level errors. These escalate the whole job to failed.

	// ErrStoreUnavailable indicates the document store cannot be reached.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// Batch state machine errors.

	// ErrJobTerminal indicates a transition out of a terminal job state.
	ErrJobTerminal = errors.New("job already terminal")

	// ErrInvalidTransition indicates a state machine edge that does not exist.
	ErrInvalidTransition = errors.New("invalid job transition")

	// ErrUnsupportedType indicates no parser handles the input media type.
	ErrUnsupportedType = errors.New("unsupported media type")
)
