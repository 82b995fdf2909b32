package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite" // SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/radnorm/radnorm/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

// defaultSearchLimit bounds unpaginated queries.
const defaultSearchLimit = 100

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Store is the SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.radnorm/data/radnorm.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".radnorm", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "radnorm.db")

	// WAL mode for concurrency, immediate transactions so write
	// transactions take the lock up front and serialise per key.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert writes one document atomically under the (source identifier,
// content hash) identity contract.
func (s *Store) Upsert(ctx context.Context, item driven.UpsertItem) (*driven.UpsertResult, error) {
	doc := item.Document
	if doc.SourceIdentifier == "" || doc.ContentHash == "" {
		return nil, fmt.Errorf("%w: missing source identifier or content hash", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		// With _txlock=immediate the write lock is taken here, so a
		// saturated database surfaces as busy before any statement runs.
		return nil, classifyConflict(fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := s.upsertTx(ctx, tx, item)
	if err != nil {
		return nil, classifyConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classifyConflict(fmt.Errorf("committing upsert: %w", err))
	}
	return result, nil
}

// classifyConflict maps write contention to domain.ErrPersistenceConflict so
// callers can retry. SQLite serializes writes even in WAL mode, so a busy or
// locked handle past the busy timeout is transient, and a unique-constraint
// failure on (source_identifier, content_hash) means two writers raced the
// same document. Everything else passes through unchanged.
func classifyConflict(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff { // extended codes keep the base in the low byte
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %v", domain.ErrPersistenceConflict, err)
		}
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "constraint failed") {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceConflict, err)
	}
	return err
}

// upsertTx applies one upsert inside an open transaction.
func (s *Store) upsertTx(ctx context.Context, tx *sql.Tx, item driven.UpsertItem) (*driven.UpsertResult, error) {
	doc := item.Document
	now := time.Now().UTC()

	var existingID, existingHash string
	row := tx.QueryRowContext(ctx,
		"SELECT id, content_hash FROM documents WHERE source_identifier = ?",
		doc.SourceIdentifier)
	err := row.Scan(&existingID, &existingHash)
	switch {
	case err == nil && existingHash == doc.ContentHash:
		// Known (source, hash) pair: idempotent no-op.
		return &driven.UpsertResult{DocumentID: existingID}, nil

	case err == nil:
		// Known source, new hash: update in place, keep the id.
		_, err = tx.ExecContext(ctx, `
			UPDATE documents
			SET content_hash = ?, case_name = ?, confidence = ?, status = ?, job_id = ?, updated_at = ?
			WHERE id = ?
		`, doc.ContentHash, doc.CaseName, doc.Confidence, doc.Status, doc.JobID, now, existingID)
		if err != nil {
			return nil, fmt.Errorf("updating document: %w", err)
		}
		if err := s.writeContentTx(ctx, tx, existingID, item.Content.Payload); err != nil {
			return nil, err
		}
		if err := s.writeLinksTx(ctx, tx, existingID, item.Links); err != nil {
			return nil, err
		}
		return &driven.UpsertResult{DocumentID: existingID, Updated: true}, nil

	case errors.Is(err, sql.ErrNoRows):
		// New document.
		id := doc.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (id, source_identifier, content_hash, case_name, confidence, status, job_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, doc.SourceIdentifier, doc.ContentHash, doc.CaseName, doc.Confidence, doc.Status, doc.JobID, now, now)
		if err != nil {
			return nil, fmt.Errorf("inserting document: %w", err)
		}
		if err := s.writeContentTx(ctx, tx, id, item.Content.Payload); err != nil {
			return nil, err
		}
		if err := s.writeLinksTx(ctx, tx, id, item.Links); err != nil {
			return nil, err
		}
		return &driven.UpsertResult{DocumentID: id, Created: true}, nil

	default:
		return nil, fmt.Errorf("looking up document: %w", err)
	}
}

// writeContentTx replaces the 1:1 content payload for a document.
func (s *Store) writeContentTx(ctx context.Context, tx *sql.Tx, documentID string, payload domain.Content) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO contents (document_id, payload) VALUES (?, ?)
		ON CONFLICT(document_id) DO UPDATE SET payload = excluded.payload
	`, documentID, string(raw))
	if err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}

// writeLinksTx rewrites a document's keyword links, interning keyword rows
// case-insensitively by text.
func (s *Store) writeLinksTx(ctx context.Context, tx *sql.Tx, documentID string, links []domain.KeywordLink) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM keyword_links WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing keyword links: %w", err)
	}

	for _, link := range links {
		text := strings.ToLower(link.Keyword.Text)
		keywordID, err := s.internKeywordTx(ctx, tx, text, link.Keyword.Category)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO keyword_links (document_id, keyword_id, relevance, position)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(document_id, keyword_id) DO UPDATE SET
				relevance = excluded.relevance,
				position = excluded.position
		`, documentID, keywordID, link.Relevance, link.Position)
		if err != nil {
			return fmt.Errorf("writing keyword link %q: %w", text, err)
		}
	}
	return nil
}

// internKeywordTx returns the id of the keyword row for text, inserting it
// if absent.
func (s *Store) internKeywordTx(ctx context.Context, tx *sql.Tx, text, category string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, "SELECT id FROM keywords WHERE text = ?", text).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("looking up keyword %q: %w", text, err)
	}

	id = uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO keywords (id, text, category) VALUES (?, ?, ?)",
		id, text, category); err != nil {
		return "", fmt.Errorf("inserting keyword %q: %w", text, err)
	}
	return id, nil
}

// BatchUpsert writes items with per-item atomicity: each item commits in its
// own transaction so one failure does not roll back the rest.
func (s *Store) BatchUpsert(ctx context.Context, items []driven.UpsertItem) ([]driven.UpsertResult, error) {
	results := make([]driven.UpsertResult, len(items))
	var errs []error
	for i, item := range items {
		res, err := s.Upsert(ctx, item)
		if err != nil {
			errs = append(errs, fmt.Errorf("item %d (%s): %w", i, item.Document.SourceIdentifier, err))
			continue
		}
		results[i] = *res
	}
	return results, errors.Join(errs...)
}

// Get retrieves a document by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.CanonicalDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_identifier, content_hash, case_name, confidence, status, job_id, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// GetContent retrieves the content payload owned by a document.
func (s *Store) GetContent(ctx context.Context, documentID string) (*domain.CanonicalContent, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM contents WHERE document_id = ?", documentID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying content: %w", err)
	}

	var payload domain.Content
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	return &domain.CanonicalContent{DocumentID: documentID, Payload: payload}, nil
}

// GetKeywords retrieves the keyword links for a document, ordered by
// descending relevance then position.
func (s *Store) GetKeywords(ctx context.Context, documentID string) ([]domain.KeywordLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.document_id, k.id, k.text, k.category, l.relevance, l.position
		FROM keyword_links l
		JOIN keywords k ON k.id = l.keyword_id
		WHERE l.document_id = ?
		ORDER BY l.relevance DESC, l.position ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying keyword links: %w", err)
	}
	defer rows.Close()

	var links []domain.KeywordLink //nolint:prealloc // size unknown from query
	for rows.Next() {
		var link domain.KeywordLink
		if err := rows.Scan(&link.DocumentID, &link.Keyword.ID, &link.Keyword.Text,
			&link.Keyword.Category, &link.Relevance, &link.Position); err != nil {
			return nil, fmt.Errorf("scanning keyword link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating keyword links: %w", err)
	}
	return links, nil
}

// Search finds documents whose source identifier or linked keywords match
// the query, narrowed by the filter.
func (s *Store) Search(ctx context.Context, query string, filter driven.SearchFilter) ([]domain.CanonicalDocument, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT DISTINCT d.id, d.source_identifier, d.content_hash, d.case_name, d.confidence, d.status, d.job_id, d.created_at, d.updated_at
		FROM documents d
	`)
	var args []any

	query = strings.ToLower(strings.TrimSpace(query))
	if query != "" {
		sb.WriteString(`
		LEFT JOIN keyword_links l ON l.document_id = d.id
		LEFT JOIN keywords k ON k.id = l.keyword_id
		`)
	}

	where := filterClauses(filter, &args)
	if query != "" {
		where = append(where, "(LOWER(d.source_identifier) LIKE ? OR k.text LIKE ?)")
		pattern := "%" + query + "%"
		args = append(args, pattern, pattern)
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	sb.WriteString(" ORDER BY d.created_at DESC")
	appendPagination(&sb, &args, filter)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// Delete removes a document. Content and keyword links cascade.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceKeywords swaps a document's keyword links wholesale.
func (s *Store) ReplaceKeywords(ctx context.Context, documentID string, links []domain.KeywordLink) error {
	if _, err := s.Get(ctx, documentID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.writeLinksTx(ctx, tx, documentID, links); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing keyword replacement: %w", err)
	}
	return nil
}

// DocumentFrequency returns the number of documents linked to the term.
func (s *Store) DocumentFrequency(ctx context.Context, term string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT l.document_id)
		FROM keyword_links l
		JOIN keywords k ON k.id = l.keyword_id
		WHERE k.text = ?
	`, strings.ToLower(term)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("querying document frequency: %w", err)
	}
	return count, nil
}

// DocumentCount returns the total number of stored documents.
func (s *Store) DocumentCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Export returns the read-only export rows matching the filter, oldest first.
func (s *Store) Export(ctx context.Context, filter driven.SearchFilter) ([]driven.ExportRecord, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, source_identifier, content_hash, case_name, confidence, status, job_id, created_at, updated_at
		FROM documents
	`)
	var args []any
	if where := filterClauses(filter, &args); len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at ASC")
	appendPagination(&sb, &args, filter)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents for export: %w", err)
	}
	docs, err := collectDocuments(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	records := make([]driven.ExportRecord, 0, len(docs))
	for _, doc := range docs {
		content, err := s.GetContent(ctx, doc.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		links, err := s.GetKeywords(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		record := driven.ExportRecord{Document: doc, Keywords: links}
		if content != nil {
			record.Content = *content
		}
		records = append(records, record)
	}
	return records, nil
}

// SaveJob persists a batch job snapshot.
func (s *Store) SaveJob(ctx context.Context, job domain.BatchJob) error {
	var completedAt sql.NullTime
	if !job.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: job.CompletedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_jobs (id, status, total_items, processed_count, error_count, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			processed_count = excluded.processed_count,
			error_count = excluded.error_count,
			completed_at = excluded.completed_at
	`, job.ID, job.Status, job.TotalItems, job.ProcessedCount, job.ErrorCount, job.CreatedAt, completedAt)
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// GetJob retrieves a batch job snapshot by id.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.BatchJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, total_items, processed_count, error_count, created_at, completed_at
		FROM batch_jobs WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	return job, nil
}

// ListJobs returns job snapshots, newest first. ULIDs sort by creation time
// so the id ordering is chronological.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]domain.BatchJob, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, total_items, processed_count, error_count, created_at, completed_at
		FROM batch_jobs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.BatchJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one document row.
func scanDocument(row rowScanner) (*domain.CanonicalDocument, error) {
	var doc domain.CanonicalDocument
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.SourceIdentifier, &doc.ContentHash, &doc.CaseName,
		&doc.Confidence, &doc.Status, &doc.JobID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return &doc, nil
}

// scanJob reads one batch job row.
func scanJob(row rowScanner) (*domain.BatchJob, error) {
	var job domain.BatchJob
	var createdAt, completedAt sql.NullTime
	if err := row.Scan(&job.ID, &job.Status, &job.TotalItems, &job.ProcessedCount,
		&job.ErrorCount, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		job.CreatedAt = createdAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	return &job, nil
}

// collectDocuments drains a document query result.
func collectDocuments(rows *sql.Rows) ([]domain.CanonicalDocument, error) {
	var docs []domain.CanonicalDocument //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// filterClauses builds WHERE clauses for a search filter, appending args.
func filterClauses(filter driven.SearchFilter, args *[]any) []string {
	var where []string
	if filter.CaseName != "" {
		where = append(where, "case_name = ?")
		*args = append(*args, filter.CaseName)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		*args = append(*args, filter.Status)
	}
	if filter.JobID != "" {
		where = append(where, "job_id = ?")
		*args = append(*args, filter.JobID)
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= ?")
		*args = append(*args, filter.From)
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at <= ?")
		*args = append(*args, filter.To)
	}
	return where
}

// appendPagination applies limit/offset with the store default.
func appendPagination(sb *strings.Builder, args *[]any, filter driven.SearchFilter) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	sb.WriteString(" LIMIT ?")
	*args = append(*args, limit)
	if filter.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		*args = append(*args, filter.Offset)
	}
}
