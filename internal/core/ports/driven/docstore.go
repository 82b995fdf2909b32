package driven

import (
	"context"
	"time"

	"github.com/radnorm/radnorm/internal/core/domain"
)

// UpsertItem is one document plus its owned content and keyword links.
// The three parts commit atomically or not at all.
type UpsertItem struct {
	// Document is the canonical document row.
	Document domain.CanonicalDocument

	// Content is the owned 1:1 payload.
	Content domain.CanonicalContent

	// Links are the keyword links to write alongside the document.
	Links []domain.KeywordLink
}

// UpsertResult reports how an upsert resolved.
type UpsertResult struct {
	// DocumentID is the canonical row id. For a repeat import of the same
	// (source identifier, content hash) pair this is the existing id.
	DocumentID string

	// Created is true when a new document row was inserted.
	Created bool

	// Updated is true when an existing document's content was replaced
	// (same source identifier, differing hash).
	Updated bool
}

// SearchFilter narrows document queries.
type SearchFilter struct {
	// CaseName filters by the detected parse case.
	CaseName string

	// Status filters by document status.
	Status domain.DocumentStatus

	// JobID filters by the ingesting batch job.
	JobID string

	// From and To bound CreatedAt. Zero values are open ends.
	From time.Time
	To   time.Time

	// Limit and Offset paginate. Limit <= 0 means the store default.
	Limit  int
	Offset int
}

// ExportRecord is one row of the read-only export contract: a document
// joined with its content and keyword links.
type ExportRecord struct {
	Document domain.CanonicalDocument
	Content  domain.CanonicalContent
	Keywords []domain.KeywordLink
}

// DocumentStore persists canonical documents idempotently.
//
// Upsert contract: keyed by (source identifier, content hash). A second
// upsert with an identical hash for the same source is a no-op returning the
// existing id; a differing hash updates content in place and bumps UpdatedAt
// while preserving the id. Concurrent upserts for the same key serialise so
// exactly one row survives. Document, content and keyword links are never
// visible in a partially-written state.
type DocumentStore interface {
	// Upsert writes one document atomically.
	Upsert(ctx context.Context, item UpsertItem) (*UpsertResult, error)

	// BatchUpsert writes items with per-item atomicity: one item's failure
	// does not roll back others already committed in the same call.
	// The results slice is parallel to items; failed entries carry a zero
	// DocumentID and the returned error joins the per-item failures.
	BatchUpsert(ctx context.Context, items []UpsertItem) ([]UpsertResult, error)

	// Get retrieves a document by id.
	Get(ctx context.Context, id string) (*domain.CanonicalDocument, error)

	// GetContent retrieves the content payload owned by a document.
	GetContent(ctx context.Context, documentID string) (*domain.CanonicalContent, error)

	// GetKeywords retrieves the keyword links for a document,
	// ordered by descending relevance then position.
	GetKeywords(ctx context.Context, documentID string) ([]domain.KeywordLink, error)

	// Search finds documents whose source identifier or linked keywords
	// match the query, narrowed by the filter.
	Search(ctx context.Context, query string, filter SearchFilter) ([]domain.CanonicalDocument, error)

	// Delete removes a document, cascading to its content and keyword
	// links. No orphaned rows remain.
	Delete(ctx context.Context, id string) error

	// ReplaceKeywords swaps a document's keyword links wholesale.
	ReplaceKeywords(ctx context.Context, documentID string, links []domain.KeywordLink) error

	// DocumentFrequency returns the number of stored documents linked to
	// the term. Feeds the extractor's inverse-document-frequency score.
	DocumentFrequency(ctx context.Context, term string) (int, error)

	// DocumentCount returns the total number of stored documents.
	DocumentCount(ctx context.Context) (int, error)

	// Export streams the read-only export contract rows for external
	// report renderers.
	Export(ctx context.Context, filter SearchFilter) ([]ExportRecord, error)

	// SaveJob persists a batch job snapshot.
	SaveJob(ctx context.Context, job domain.BatchJob) error

	// GetJob retrieves a batch job snapshot by id.
	GetJob(ctx context.Context, id string) (*domain.BatchJob, error)

	// ListJobs returns job snapshots, newest first.
	ListJobs(ctx context.Context, limit int) ([]domain.BatchJob, error)
}
