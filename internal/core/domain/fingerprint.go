package domain

import (
	"hash/fnv"
	"strings"
)

// StructuralFingerprint is an ordered sequence of normalised shape tokens
// derived from a parsed tree. Two inputs with the same element names, nesting
// and repetition patterns produce the same fingerprint regardless of values.
// Fingerprints are used only for parse-case matching, never persisted as
// document content.
type StructuralFingerprint struct {
	// Tokens are the normalised shape tokens in canonical order.
	Tokens []string
}

// IsEmpty reports whether the fingerprint carries no shape information.
// The generic fallback case has an empty reference fingerprint.
func (f StructuralFingerprint) IsEmpty() bool {
	return len(f.Tokens) == 0
}

// Hash returns a stable 64-bit digest of the token sequence.
// Equal fingerprints always hash equally; used for cheap equality checks
// and detection caching.
func (f StructuralFingerprint) Hash() uint64 {
	h := fnv.New64a()
	for _, t := range f.Tokens {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// TokenSet returns the tokens as a set for overlap scoring.
func (f StructuralFingerprint) TokenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(f.Tokens))
	for _, t := range f.Tokens {
		set[t] = struct{}{}
	}
	return set
}

// String joins the tokens for logging and debugging.
func (f StructuralFingerprint) String() string {
	return strings.Join(f.Tokens, " ")
}
