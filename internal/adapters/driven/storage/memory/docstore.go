// Package memory provides in-memory implementations of the driven storage
// ports, used in tests and as a scratch backend.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// upsertKey is the identity key: (source identifier, content hash).
type upsertKey struct {
	source string
	hash   string
}

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// A single mutex serialises all writes, which also satisfies the per-key
// upsert serialisation contract.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.CanonicalDocument
	contents  map[string]domain.CanonicalContent
	links     map[string][]domain.KeywordLink
	keywords  map[string]domain.Keyword // by lower-cased text
	byKey     map[upsertKey]string      // identity key -> document id
	bySource  map[string]string         // source identifier -> document id
	jobs      map[string]domain.BatchJob
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.CanonicalDocument),
		contents:  make(map[string]domain.CanonicalContent),
		links:     make(map[string][]domain.KeywordLink),
		keywords:  make(map[string]domain.Keyword),
		byKey:     make(map[upsertKey]string),
		bySource:  make(map[string]string),
		jobs:      make(map[string]domain.BatchJob),
	}
}

// Upsert writes one document atomically.
func (s *DocumentStore) Upsert(_ context.Context, item driven.UpsertItem) (*driven.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(item)
}

// upsertLocked applies the (source, hash) identity contract.
func (s *DocumentStore) upsertLocked(item driven.UpsertItem) (*driven.UpsertResult, error) {
	doc := item.Document
	if doc.SourceIdentifier == "" || doc.ContentHash == "" {
		return nil, fmt.Errorf("%w: missing source identifier or content hash", domain.ErrInvalidInput)
	}

	key := upsertKey{source: doc.SourceIdentifier, hash: doc.ContentHash}
	now := time.Now().UTC()

	// Identical (source, hash): no-op returning the existing id.
	if id, ok := s.byKey[key]; ok {
		return &driven.UpsertResult{DocumentID: id}, nil
	}

	// Same source, differing hash: update in place, keep the id.
	if id, ok := s.bySource[doc.SourceIdentifier]; ok {
		existing := s.documents[id]
		delete(s.byKey, upsertKey{source: existing.SourceIdentifier, hash: existing.ContentHash})

		existing.ContentHash = doc.ContentHash
		existing.CaseName = doc.CaseName
		existing.Confidence = doc.Confidence
		existing.Status = doc.Status
		existing.JobID = doc.JobID
		existing.UpdatedAt = now

		s.documents[id] = existing
		s.contents[id] = domain.CanonicalContent{DocumentID: id, Payload: item.Content.Payload}
		s.replaceKeywordsLocked(id, item.Links)
		s.byKey[key] = id
		return &driven.UpsertResult{DocumentID: id, Updated: true}, nil
	}

	// New document.
	doc.CreatedAt = now
	doc.UpdatedAt = now
	s.documents[doc.ID] = doc
	s.contents[doc.ID] = domain.CanonicalContent{DocumentID: doc.ID, Payload: item.Content.Payload}
	s.replaceKeywordsLocked(doc.ID, item.Links)
	s.byKey[key] = doc.ID
	s.bySource[doc.SourceIdentifier] = doc.ID
	return &driven.UpsertResult{DocumentID: doc.ID, Created: true}, nil
}

// BatchUpsert writes items with per-item atomicity.
func (s *DocumentStore) BatchUpsert(_ context.Context, items []driven.UpsertItem) ([]driven.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]driven.UpsertResult, len(items))
	var errs []error
	for i, item := range items {
		res, err := s.upsertLocked(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("item %d (%s): %w", i, item.Document.SourceIdentifier, err))
			continue
		}
		results[i] = *res
	}
	return results, errors.Join(errs...)
}

// Get retrieves a document by id.
func (s *DocumentStore) Get(_ context.Context, id string) (*domain.CanonicalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetContent retrieves the content payload owned by a document.
func (s *DocumentStore) GetContent(_ context.Context, documentID string) (*domain.CanonicalContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.contents[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &content, nil
}

// GetKeywords retrieves the keyword links for a document.
func (s *DocumentStore) GetKeywords(_ context.Context, documentID string) ([]domain.KeywordLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]domain.KeywordLink(nil), s.links[documentID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

// Search finds documents matching the query and filter.
func (s *DocumentStore) Search(_ context.Context, query string, filter driven.SearchFilter) ([]domain.CanonicalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))

	var out []domain.CanonicalDocument
	for id, doc := range s.documents {
		if !matchesFilter(doc, filter) {
			continue
		}
		if query != "" && !s.matchesQueryLocked(id, doc, query) {
			continue
		}
		out = append(out, doc)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter), nil
}

// Delete removes a document, cascading to content and keyword links.
func (s *DocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.contents, id)
	delete(s.links, id)
	delete(s.byKey, upsertKey{source: doc.SourceIdentifier, hash: doc.ContentHash})
	delete(s.bySource, doc.SourceIdentifier)
	return nil
}

// ReplaceKeywords swaps a document's keyword links wholesale.
func (s *DocumentStore) ReplaceKeywords(_ context.Context, documentID string, links []domain.KeywordLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return domain.ErrNotFound
	}
	s.replaceKeywordsLocked(documentID, links)
	return nil
}

// replaceKeywordsLocked interns keywords case-insensitively and rewrites
// the document's links.
func (s *DocumentStore) replaceKeywordsLocked(documentID string, links []domain.KeywordLink) {
	out := make([]domain.KeywordLink, 0, len(links))
	for _, link := range links {
		text := strings.ToLower(link.Keyword.Text)
		kw, ok := s.keywords[text]
		if !ok {
			kw = domain.Keyword{ID: uuid.New().String(), Text: text, Category: link.Keyword.Category}
			s.keywords[text] = kw
		}
		link.DocumentID = documentID
		link.Keyword = kw
		out = append(out, link)
	}
	s.links[documentID] = out
}

// DocumentFrequency returns how many documents link the term.
func (s *DocumentStore) DocumentFrequency(_ context.Context, term string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term = strings.ToLower(term)
	count := 0
	for _, links := range s.links {
		for _, link := range links {
			if link.Keyword.Text == term {
				count++
				break
			}
		}
	}
	return count, nil
}

// DocumentCount returns the total number of stored documents.
func (s *DocumentStore) DocumentCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

// Export returns the read-only export rows matching the filter.
func (s *DocumentStore) Export(_ context.Context, filter driven.SearchFilter) ([]driven.ExportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.CanonicalDocument
	for _, doc := range s.documents {
		if matchesFilter(doc, filter) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.Before(docs[j].CreatedAt) })
	docs = paginate(docs, filter)

	out := make([]driven.ExportRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, driven.ExportRecord{
			Document: doc,
			Content:  s.contents[doc.ID],
			Keywords: append([]domain.KeywordLink(nil), s.links[doc.ID]...),
		})
	}
	return out, nil
}

// SaveJob persists a batch job snapshot.
func (s *DocumentStore) SaveJob(_ context.Context, job domain.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// GetJob retrieves a batch job snapshot by id.
func (s *DocumentStore) GetJob(_ context.Context, id string) (*domain.BatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// ListJobs returns job snapshots, newest first.
func (s *DocumentStore) ListJobs(_ context.Context, limit int) ([]domain.BatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BatchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	// ULIDs sort by creation time, so the id ordering is chronological.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// matchesQueryLocked checks the query against source identifier and
// linked keyword text.
func (s *DocumentStore) matchesQueryLocked(id string, doc domain.CanonicalDocument, query string) bool {
	if strings.Contains(strings.ToLower(doc.SourceIdentifier), query) {
		return true
	}
	for _, link := range s.links[id] {
		if strings.Contains(link.Keyword.Text, query) {
			return true
		}
	}
	return false
}

// matchesFilter applies the search filter to a document.
func matchesFilter(doc domain.CanonicalDocument, filter driven.SearchFilter) bool {
	if filter.CaseName != "" && doc.CaseName != filter.CaseName {
		return false
	}
	if filter.Status != "" && doc.Status != filter.Status {
		return false
	}
	if filter.JobID != "" && doc.JobID != filter.JobID {
		return false
	}
	if !filter.From.IsZero() && doc.CreatedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && doc.CreatedAt.After(filter.To) {
		return false
	}
	return true
}

// paginate applies limit/offset to a result slice.
func paginate(docs []domain.CanonicalDocument, filter driven.SearchFilter) []domain.CanonicalDocument {
	if filter.Offset > 0 {
		if filter.Offset >= len(docs) {
			return nil
		}
		docs = docs[filter.Offset:]
	}
	if filter.Limit > 0 && len(docs) > filter.Limit {
		docs = docs[:filter.Limit]
	}
	return docs
}
