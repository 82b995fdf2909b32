package driving

import (
	"context"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

// DocumentService manages persisted canonical documents.
type DocumentService interface {
	// Get retrieves a document by id.
	Get(ctx context.Context, id string) (*domain.CanonicalDocument, error)

	// GetContent retrieves a document's content payload.
	GetContent(ctx context.Context, id string) (*domain.CanonicalContent, error)

	// GetKeywords retrieves a document's keyword links, strongest first.
	GetKeywords(ctx context.Context, id string) ([]domain.KeywordLink, error)

	// Search finds documents by query text and filter.
	Search(ctx context.Context, query string, filter driven.SearchFilter) ([]domain.CanonicalDocument, error)

	// Delete removes a document with its content and keyword links.
	Delete(ctx context.Context, id string) error
}

// ExportService exposes the read-only export contract consumed by external
// report renderers.
type ExportService interface {
	// Export returns document+content+keyword rows matching the filter.
	Export(ctx context.Context, filter driven.SearchFilter) ([]driven.ExportRecord, error)
}

// CaseService manages the parse case registry.
type CaseService interface {
	// List returns all registered cases in registration order.
	List() []domain.ParseCase

	// Get returns a case by name.
	Get(name string) (*domain.ParseCase, error)

	// Register adds a case, replacing any prior definition with the same
	// name while keeping its original registration order.
	Register(c domain.ParseCase) error

	// Detect parses the raw input and matches it against the registry
	// without persisting anything.
	Detect(ctx context.Context, raw *domain.RawInput) (*domain.Detection, error)
}
