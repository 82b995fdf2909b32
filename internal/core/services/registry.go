package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/logger"
)

// DefaultConfidenceThreshold is the minimum similarity a registered case
// must score to win a detection. Below it the generic fallback is used.
const DefaultConfidenceThreshold = 0.55

// FallbackCaseName names the generic catch-all parse case.
const FallbackCaseName = "generic"

// CaseRegistry holds the known parse cases and performs detection.
// It is constructed once at process start, seeded from configuration, and
// passed by reference into the detector and mapper. Registration is an
// explicit method call; detection never mutates the registry.
type CaseRegistry struct {
	mu        sync.RWMutex
	threshold float64
	order     []string
	cases     map[string]domain.ParseCase
	fallback  domain.ParseCase
}

// RegistryOption configures a CaseRegistry.
type RegistryOption func(*CaseRegistry)

// WithThreshold overrides the confidence threshold.
func WithThreshold(t float64) RegistryOption {
	return func(r *CaseRegistry) {
		if t > 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// WithFallback replaces the default generic fallback case.
func WithFallback(c domain.ParseCase) RegistryOption {
	return func(r *CaseRegistry) {
		c.Reference = domain.StructuralFingerprint{}
		r.fallback = c
	}
}

// NewCaseRegistry creates a registry holding only the generic fallback.
func NewCaseRegistry(opts ...RegistryOption) *CaseRegistry {
	r := &CaseRegistry{
		threshold: DefaultConfidenceThreshold,
		cases:     make(map[string]domain.ParseCase),
		fallback: domain.ParseCase{
			Name:        FallbackCaseName,
			Description: "Generic fallback for unrecognised structures",
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a case, replacing any prior definition with the same name.
// A replaced case keeps its original registration position so detection
// tie-breaks stay reproducible across runs.
func (r *CaseRegistry) Register(c domain.ParseCase) error {
	if c.Name == "" {
		return fmt.Errorf("%w: case name is empty", domain.ErrInvalidInput)
	}
	for _, m := range c.Mappings {
		if !m.Kind.Valid() {
			return fmt.Errorf("%w: case %q field %q has unknown kind %q",
				domain.ErrInvalidInput, c.Name, m.Field, m.Kind)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Name == r.fallback.Name || c.Reference.IsEmpty() {
		c.Reference = domain.StructuralFingerprint{}
		c.Name = r.fallback.Name
		r.fallback = c
		return nil
	}

	if _, exists := r.cases[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.cases[c.Name] = c
	return nil
}

// Get returns a case by name.
func (r *CaseRegistry) Get(name string) (*domain.ParseCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == r.fallback.Name {
		c := r.fallback
		return &c, nil
	}
	c, ok := r.cases[name]
	if !ok {
		return nil, fmt.Errorf("parse case %q: %w", name, domain.ErrNotFound)
	}
	return &c, nil
}

// List returns all cases in registration order, fallback last.
func (r *CaseRegistry) List() []domain.ParseCase {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ParseCase, 0, len(r.order)+1)
	for _, name := range r.order {
		out = append(out, r.cases[name])
	}
	out = append(out, r.fallback)
	return out
}

// Detect matches a fingerprint against every registered case and returns
// the highest-scoring case if it meets the threshold, otherwise the
// fallback with LowConfidence set. Equal scores resolve to the case
// registered first. The same fingerprint against the same registry state
// always yields the same result.
func (r *CaseRegistry) Detect(fp domain.StructuralFingerprint) domain.Detection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	input := fp.TokenSet()

	var (
		best      domain.ParseCase
		bestScore float64
		found     bool
		scores    = make([]domain.CaseScore, 0, len(r.order))
	)

	for _, name := range r.order {
		c := r.cases[name]
		score := jaccard(input, c.Reference.TokenSet())
		scores = append(scores, domain.CaseScore{CaseName: name, Score: score})

		// Strict greater-than keeps the earlier registration on ties.
		if score > bestScore {
			best, bestScore, found = c, score, true
		}
	}

	if !found || bestScore < r.threshold {
		logger.Debug("No case reached threshold %.2f (best %.2f), using fallback", r.threshold, bestScore)
		return domain.Detection{
			Case:          r.fallback,
			Confidence:    bestScore,
			LowConfidence: true,
			Scores:        scores,
		}
	}

	matched, missing := diffTokens(input, best.Reference.TokenSet())
	return domain.Detection{
		Case:          best,
		Confidence:    bestScore,
		Scores:        scores,
		MatchedTokens: matched,
		MissingTokens: missing,
	}
}

// Threshold returns the configured confidence threshold.
func (r *CaseRegistry) Threshold() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.threshold
}

// jaccard is the normalised token overlap |A∩B| / |A∪B| in [0,1].
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// diffTokens splits the reference set into tokens the input has and tokens
// it lacks, sorted for stable output.
func diffTokens(input, reference map[string]struct{}) (matched, missing []string) {
	for t := range reference {
		if _, ok := input[t]; ok {
			matched = append(matched, t)
		} else {
			missing = append(missing, t)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	return matched, missing
}
