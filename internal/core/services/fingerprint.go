package services

import (
	"sort"

	"github.com/radnorm/radnorm/internal/core/domain"
)

// DefaultMaxFingerprintDepth bounds the tree walk. Annotation exports are
// shallow; anything deeper is almost certainly generated noise.
const DefaultMaxFingerprintDepth = 12

// Fingerprinter computes value-independent structural signatures from
// parsed trees.
//
// A shape token is the slash path of an element, with "@name" appended for
// each attribute and "*" appended when the element repeats under its
// parent. Tokens are deduplicated and sorted, so sibling order and element
// values never affect the result: same element names, same nesting, same
// repetition patterns produce the same fingerprint.
type Fingerprinter struct {
	maxDepth int
}

// FingerprintOption configures a Fingerprinter.
type FingerprintOption func(*Fingerprinter)

// WithMaxDepth overrides the depth bound.
func WithMaxDepth(depth int) FingerprintOption {
	return func(f *Fingerprinter) {
		if depth > 0 {
			f.maxDepth = depth
		}
	}
}

// NewFingerprinter creates a fingerprint extractor.
func NewFingerprinter(opts ...FingerprintOption) *Fingerprinter {
	f := &Fingerprinter{maxDepth: DefaultMaxFingerprintDepth}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Extract computes the structural fingerprint of a parsed tree.
func (f *Fingerprinter) Extract(root *domain.Node) domain.StructuralFingerprint {
	if root == nil {
		return domain.StructuralFingerprint{}
	}

	seen := make(map[string]struct{})
	f.walk(root, "", false, 0, seen)

	tokens := make([]string, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	return domain.StructuralFingerprint{Tokens: tokens}
}

// walk records the shape tokens for node and descends into its children.
// repeated marks nodes that share their name with a sibling.
func (f *Fingerprinter) walk(node *domain.Node, prefix string, repeated bool, depth int, seen map[string]struct{}) {
	if depth > f.maxDepth {
		return
	}

	path := prefix + "/" + node.Name
	token := path
	if repeated {
		token += "*"
	}
	seen[token] = struct{}{}

	for attr := range node.Attrs {
		seen[path+"@"+attr] = struct{}{}
	}

	counts := make(map[string]int, len(node.Children))
	for _, c := range node.Children {
		counts[c.Name]++
	}
	for _, c := range node.Children {
		f.walk(c, path, counts[c.Name] > 1, depth+1, seen)
	}
}
