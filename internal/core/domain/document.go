package domain

import "time"

// DocumentStatus tracks the lifecycle of a canonical document.
type DocumentStatus string

const (
	// StatusComplete means content and keyword links are fully written.
	StatusComplete DocumentStatus = "complete"

	// StatusPartial means the document persisted without keyword links
	// (keyword extraction produced a warning).
	StatusPartial DocumentStatus = "partial"
)

// CanonicalDocument is the normalised representation of one logical input,
// independent of its originating schema.
//
// Identity invariant: the pair (SourceIdentifier, ContentHash) determines
// whether an import creates a new document or updates an existing one.
// Re-importing the same logical document never creates a duplicate.
type CanonicalDocument struct {
	// ID is stable across re-imports of the same logical document.
	ID string

	// SourceIdentifier is the originating location of the raw input.
	SourceIdentifier string

	// ContentHash is the hex SHA-256 of the raw input bytes.
	ContentHash string

	// CaseName records which parse case produced this document, kept for
	// later schema-drift analysis by external collaborators.
	CaseName string

	// Confidence is the detection confidence the case matched with.
	Confidence float64

	// Status is the persistence status.
	Status DocumentStatus

	// JobID links the document to the batch job that ingested it.
	JobID string

	// CreatedAt is when the document was first persisted.
	CreatedAt time.Time

	// UpdatedAt is bumped whenever a differing content hash updates the row.
	UpdatedAt time.Time
}

// FieldValue is one canonical field value. Exactly one of the typed members
// is meaningful, selected by Kind. The closed kind set keeps the payload
// schema-checked rather than open-ended.
type FieldValue struct {
	Kind FieldKind `json:"kind"`

	Str    string       `json:"str,omitempty"`
	Int    int64        `json:"int,omitempty"`
	Float  float64      `json:"float,omitempty"`
	Date   time.Time    `json:"date,omitzero"`
	List   []FieldValue `json:"list,omitempty"`
	Nested Content      `json:"nested,omitempty"`
}

// Text returns the textual form of the value for keyword extraction.
func (v FieldValue) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindList:
		var out string
		for i, item := range v.List {
			if i > 0 {
				out += " "
			}
			out += item.Text()
		}
		return out
	case KindNested:
		var out string
		first := true
		for _, item := range v.Nested {
			if !first {
				out += " "
			}
			out += item.Text()
			first = false
		}
		return out
	}
	return ""
}

// Content is a structured payload keyed by canonical field names.
type Content map[string]FieldValue

// CanonicalContent is the content row owned 1:1 by a CanonicalDocument and
// cascade-deleted with it.
type CanonicalContent struct {
	// DocumentID is the owning document.
	DocumentID string

	// Payload is the schema-checked field map produced by the mapper.
	Payload Content
}
