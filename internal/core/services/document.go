package services

import (
	"context"
	"fmt"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
	"github.com/radnorm/radnorm/internal/core/ports/driving"
	"github.com/radnorm/radnorm/internal/logger"
)

// Ensure the services implement their interfaces.
var (
	_ driving.DocumentService = (*DocumentService)(nil)
	_ driving.ExportService   = (*DocumentService)(nil)
)

// DocumentService exposes persisted canonical documents to driving
// adapters. It also implements the read-only export contract consumed by
// external report renderers.
type DocumentService struct {
	store driven.DocumentStore
}

// NewDocumentService creates a document service.
func NewDocumentService(store driven.DocumentStore) *DocumentService {
	return &DocumentService{store: store}
}

// Get retrieves a document by id.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.CanonicalDocument, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// GetContent retrieves a document's content payload.
func (s *DocumentService) GetContent(ctx context.Context, id string) (*domain.CanonicalContent, error) {
	content, err := s.store.GetContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return content, nil
}

// GetKeywords retrieves a document's keyword links, strongest first.
func (s *DocumentService) GetKeywords(ctx context.Context, id string) ([]domain.KeywordLink, error) {
	links, err := s.store.GetKeywords(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get keywords: %w", err)
	}
	return links, nil
}

// Search finds documents by query text and filter.
func (s *DocumentService) Search(ctx context.Context, query string, filter driven.SearchFilter) ([]domain.CanonicalDocument, error) {
	logger.Debug("Search: %q case=%q job=%q", query, filter.CaseName, filter.JobID)
	docs, err := s.store.Search(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return docs, nil
}

// Delete removes a document with its content and keyword links.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	logger.Info("Deleted document %s", id)
	return nil
}

// Export returns document+content+keyword rows matching the filter.
func (s *DocumentService) Export(ctx context.Context, filter driven.SearchFilter) ([]driven.ExportRecord, error) {
	records, err := s.store.Export(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return records, nil
}
