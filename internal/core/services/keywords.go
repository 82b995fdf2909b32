package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/logger"
)

// DefaultMaxKeywords caps the ranked terms kept per document.
const DefaultMaxKeywords = 20

// defaultStopwords filters boilerplate tokens. General English function
// words plus values annotation tools emit as filler.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"has", "have", "in", "into", "is", "it", "its", "no", "not", "of", "on",
	"or", "per", "that", "the", "this", "to", "was", "were", "with",
	"true", "false", "null", "none", "unknown", "n-a", "yes",
}

// categoryLexicon maps known radiology terms to keyword categories for
// directory browsing. Terms outside the lexicon stay uncategorised.
var categoryLexicon = map[string]string{
	"nodule":        "finding",
	"lesion":        "finding",
	"opacity":       "finding",
	"mass":          "finding",
	"malignancy":    "assessment",
	"subtlety":      "assessment",
	"calcification": "characteristic",
	"spiculation":   "characteristic",
	"lobulation":    "characteristic",
	"sphericity":    "characteristic",
	"margin":        "characteristic",
	"texture":       "characteristic",
	"lung":          "anatomy",
	"thorax":        "anatomy",
	"pleura":        "anatomy",
}

// CorpusStats answers document-frequency questions for scoring.
// The document store implements it, maintaining the counts incrementally.
type CorpusStats interface {
	// DocumentFrequency returns how many stored documents link the term.
	DocumentFrequency(ctx context.Context, term string) (int, error)

	// DocumentCount returns the total number of stored documents.
	DocumentCount(ctx context.Context) (int, error)
}

// KeywordExtractor derives ranked keyword candidates from canonical
// content: tokenise text-bearing fields, drop stopwords, aggregate term
// frequency, and weight by corpus rarity.
type KeywordExtractor struct {
	stopwords map[string]struct{}
	maxTerms  int
	stats     CorpusStats
}

// ExtractorOption configures a KeywordExtractor.
type ExtractorOption func(*KeywordExtractor)

// WithMaxTerms overrides the per-document term cap.
func WithMaxTerms(n int) ExtractorOption {
	return func(e *KeywordExtractor) {
		if n > 0 {
			e.maxTerms = n
		}
	}
}

// WithStopwords adds terms to the stopword set.
func WithStopwords(words []string) ExtractorOption {
	return func(e *KeywordExtractor) {
		for _, w := range words {
			e.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// NewKeywordExtractor creates an extractor. stats may be nil, in which
// case scoring degrades to raw term frequency.
func NewKeywordExtractor(stats CorpusStats, opts ...ExtractorOption) *KeywordExtractor {
	e := &KeywordExtractor{
		stopwords: make(map[string]struct{}, len(defaultStopwords)),
		maxTerms:  DefaultMaxKeywords,
		stats:     stats,
	}
	for _, w := range defaultStopwords {
		e.stopwords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract derives ranked keyword links (DocumentID left empty for the
// caller to fill) from canonical content. fields restricts extraction to
// the named fields; empty means every text-bearing field. Returns
// ErrKeywordExtraction when no terms survive; callers treat that as a
// warning, not a failure.
func (e *KeywordExtractor) Extract(ctx context.Context, payload domain.Content, fields []string) ([]domain.KeywordLink, error) {
	text := gatherText(payload, fields)
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no text-bearing fields", domain.ErrKeywordExtraction)
	}

	type candidate struct {
		term     string
		tf       int
		position int
		score    float64
	}

	byTerm := make(map[string]*candidate)
	order := make([]*candidate, 0)
	for i, tok := range tokens {
		if c, ok := byTerm[tok]; ok {
			c.tf++
			continue
		}
		c := &candidate{term: tok, tf: 1, position: i}
		byTerm[tok] = c
		order = append(order, c)
	}

	total := 0
	if e.stats != nil {
		n, err := e.stats.DocumentCount(ctx)
		if err != nil {
			logger.Warn("Corpus stats unavailable, falling back to term frequency: %v", err)
		} else {
			total = n
		}
	}

	for _, c := range order {
		c.score = float64(c.tf)
		if total > 0 {
			df, err := e.stats.DocumentFrequency(ctx, c.term)
			if err != nil {
				continue
			}
			// IDF-style weighting: frequent-everywhere terms sink.
			c.score = float64(c.tf) * math.Log(1+float64(total)/float64(1+df))
		}
	}

	// Rank by score, ties broken by first-seen order within the document.
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].position < order[j].position
	})

	if len(order) > e.maxTerms {
		order = order[:e.maxTerms]
	}

	links := make([]domain.KeywordLink, 0, len(order))
	for _, c := range order {
		links = append(links, domain.KeywordLink{
			Keyword: domain.Keyword{
				Text:     c.term,
				Category: categoryLexicon[c.term],
			},
			Relevance: c.score,
			Position:  c.position,
		})
	}
	return links, nil
}

// gatherText concatenates the text of the selected fields in stable
// (sorted field name) order, so extraction is deterministic.
func gatherText(payload domain.Content, fields []string) string {
	names := fields
	if len(names) == 0 {
		names = make([]string, 0, len(payload))
		for name := range payload {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	var b strings.Builder
	for _, name := range names {
		v, ok := payload[name]
		if !ok {
			continue
		}
		if t := v.Text(); t != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
	}
	return b.String()
}

// tokenize splits text into normalised tokens: lower-cased runs of
// letters, digits and hyphens, with stopwords, single runes and purely
// numeric tokens removed. Mixed tokens like "utf-8" survive.
func (e *KeywordExtractor) tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if tok := e.cleanToken(current.String()); tok != "" {
			tokens = append(tokens, tok)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			current.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// cleanToken strips stray hyphens and applies the drop rules.
func (e *KeywordExtractor) cleanToken(token string) string {
	token = strings.Trim(token, "-")
	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}
	if len(token) <= 1 || isNumericOnly(token) {
		return ""
	}
	if _, stop := e.stopwords[token]; stop {
		return ""
	}
	return token
}

// isNumericOnly reports whether the token is digits, dots and hyphens only.
// Pure identifiers like DICOM UIDs carry no keyword value.
func isNumericOnly(token string) bool {
	for _, r := range token {
		if r != '-' && r != '.' && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
