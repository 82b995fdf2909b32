package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/core/domain"
)

// stubStats is a fixed-answer CorpusStats implementation.
type stubStats struct {
	total int
	df    map[string]int
}

func (s *stubStats) DocumentFrequency(_ context.Context, term string) (int, error) {
	return s.df[term], nil
}

func (s *stubStats) DocumentCount(_ context.Context) (int, error) {
	return s.total, nil
}

func payloadWithText(text string) domain.Content {
	return domain.Content{
		"report": {Kind: domain.KindString, Str: text},
	}
}

func TestExtractRanksByFrequency(t *testing.T) {
	e := NewKeywordExtractor(nil)

	links, err := e.Extract(context.Background(),
		payloadWithText("nodule nodule nodule spiculated margin margin"), nil)
	require.NoError(t, err)
	require.Len(t, links, 3)

	assert.Equal(t, "nodule", links[0].Keyword.Text)
	assert.Equal(t, "margin", links[1].Keyword.Text)
	assert.Equal(t, "spiculated", links[2].Keyword.Text)
	assert.Greater(t, links[0].Relevance, links[1].Relevance)
}

func TestExtractCorpusRarityWeighting(t *testing.T) {
	// "nodule" appears everywhere in the corpus, "spiculation" nowhere.
	stats := &stubStats{total: 100, df: map[string]int{"nodule": 99}}
	e := NewKeywordExtractor(stats)

	links, err := e.Extract(context.Background(),
		payloadWithText("nodule spiculation"), nil)
	require.NoError(t, err)
	require.Len(t, links, 2)

	// Equal term frequency, but the rare term outranks the ubiquitous one.
	assert.Equal(t, "spiculation", links[0].Keyword.Text)
	assert.Equal(t, "nodule", links[1].Keyword.Text)
}

func TestExtractTieBreaksByFirstSeenPosition(t *testing.T) {
	e := NewKeywordExtractor(nil)

	links, err := e.Extract(context.Background(),
		payloadWithText("pleura thorax pleura thorax"), nil)
	require.NoError(t, err)
	require.Len(t, links, 2)

	assert.Equal(t, "pleura", links[0].Keyword.Text)
	assert.Equal(t, 0, links[0].Position)
	assert.Equal(t, "thorax", links[1].Keyword.Text)
}

func TestExtractDropsNoiseTokens(t *testing.T) {
	e := NewKeywordExtractor(nil)

	links, err := e.Extract(context.Background(),
		payloadWithText("the nodule is at 1.3.6.1.4.1 and x was true"), nil)
	require.NoError(t, err)

	terms := make([]string, 0, len(links))
	for _, l := range links {
		terms = append(terms, l.Keyword.Text)
	}
	// Stopwords, single runes and numeric-only UIDs never surface.
	assert.Equal(t, []string{"nodule"}, terms)
}

func TestExtractHyphenatedTokensSurvive(t *testing.T) {
	e := NewKeywordExtractor(nil)

	links, err := e.Extract(context.Background(),
		payloadWithText("ground-glass opacity"), nil)
	require.NoError(t, err)

	terms := make([]string, 0, len(links))
	for _, l := range links {
		terms = append(terms, l.Keyword.Text)
	}
	assert.Contains(t, terms, "ground-glass")
	assert.Contains(t, terms, "opacity")
}

func TestExtractCategorisesKnownTerms(t *testing.T) {
	e := NewKeywordExtractor(nil)

	links, err := e.Extract(context.Background(),
		payloadWithText("nodule malignancy calcification somethingelse"), nil)
	require.NoError(t, err)

	byTerm := make(map[string]string, len(links))
	for _, l := range links {
		byTerm[l.Keyword.Text] = l.Keyword.Category
	}
	assert.Equal(t, "finding", byTerm["nodule"])
	assert.Equal(t, "assessment", byTerm["malignancy"])
	assert.Equal(t, "characteristic", byTerm["calcification"])
	assert.Empty(t, byTerm["somethingelse"])
}

func TestExtractRestrictsToNamedFields(t *testing.T) {
	e := NewKeywordExtractor(nil)
	payload := domain.Content{
		"summary": {Kind: domain.KindString, Str: "spiculated nodule"},
		"noise":   {Kind: domain.KindString, Str: "lobulation lobulation"},
	}

	links, err := e.Extract(context.Background(), payload, []string{"summary"})
	require.NoError(t, err)

	for _, l := range links {
		assert.NotEqual(t, "lobulation", l.Keyword.Text)
	}
	require.Len(t, links, 2)
}

func TestExtractReadsListsAndNested(t *testing.T) {
	e := NewKeywordExtractor(nil)
	payload := domain.Content{
		"nodule_ids": {Kind: domain.KindList, List: []domain.FieldValue{
			{Kind: domain.KindString, Str: "left-apex"},
			{Kind: domain.KindString, Str: "right-base"},
		}},
		"characteristics": {Kind: domain.KindNested, Nested: domain.Content{
			"margin": {Kind: domain.KindString, Str: "spiculated"},
		}},
	}

	links, err := e.Extract(context.Background(), payload, nil)
	require.NoError(t, err)

	terms := make(map[string]bool, len(links))
	for _, l := range links {
		terms[l.Keyword.Text] = true
	}
	assert.True(t, terms["left-apex"])
	assert.True(t, terms["right-base"])
	assert.True(t, terms["spiculated"])
}

func TestExtractMaxTermsCap(t *testing.T) {
	e := NewKeywordExtractor(nil, WithMaxTerms(2))

	links, err := e.Extract(context.Background(),
		payloadWithText("alpha alpha beta beta gamma delta"), nil)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestExtractCustomStopwords(t *testing.T) {
	e := NewKeywordExtractor(nil, WithStopwords([]string{"nodule"}))

	links, err := e.Extract(context.Background(),
		payloadWithText("nodule margin"), nil)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "margin", links[0].Keyword.Text)
}

func TestExtractNoTextIsWarning(t *testing.T) {
	e := NewKeywordExtractor(nil)

	_, err := e.Extract(context.Background(), domain.Content{
		"count": {Kind: domain.KindInt, Int: 3},
	}, nil)
	assert.ErrorIs(t, err, domain.ErrKeywordExtraction)

	_, err = e.Extract(context.Background(), payloadWithText("the of and"), nil)
	assert.ErrorIs(t, err, domain.ErrKeywordExtraction)
}
