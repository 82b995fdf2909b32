package domain

// Keyword is a normalised search term extracted from canonical content.
// Text is lower-cased and unique case-insensitively across the store.
type Keyword struct {
	// ID is the unique identifier.
	ID string

	// Text is the normalised, lower-cased term.
	Text string

	// Category groups terms for directory browsing (e.g. "anatomy",
	// "finding"). Empty for uncategorised terms.
	Category string
}

// KeywordLink joins a document to a keyword with a relevance score.
// Links are replaced wholesale whenever a document's content is re-extracted.
type KeywordLink struct {
	// DocumentID is the linked document.
	DocumentID string

	// Keyword is the linked term.
	Keyword Keyword

	// Relevance is the extraction score (term frequency weighted by
	// corpus rarity).
	Relevance float64

	// Position is the first-seen order within the document, used as the
	// deterministic tie-break for equal scores.
	Position int
}
