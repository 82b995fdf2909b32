// Package domain defines the core business entities for radnorm.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawInput: Opaque annotation export bytes handed in for ingestion
//   - Node: The uniform parsed tree shared by all input formats
//   - StructuralFingerprint: A value-independent structural signature
//   - ParseCase: A recognised structural variant with field-mapping rules
//   - CanonicalDocument / CanonicalContent: The normalised representation
//   - Keyword / KeywordLink: Extracted search terms and their relevance
//   - BatchJob / ProgressEvent: Batch ingestion state and its observers' view
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
