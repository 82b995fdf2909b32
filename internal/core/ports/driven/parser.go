package driven

import (
	"context"

	"github.com/radnorm/radnorm/internal/core/domain"
)

// TreeParser turns raw export bytes into the uniform node tree.
// Each parser handles specific media types (XML, JSON).
type TreeParser interface {
	// SupportedMediaTypes returns the media types this parser handles.
	SupportedMediaTypes() []string

	// Parse builds the node tree for a raw input.
	// Returns domain.ErrParse (wrapped) when the bytes cannot be parsed
	// as the declared media type at all.
	Parse(ctx context.Context, raw *domain.RawInput) (*domain.Node, error)
}

// ParserRegistry selects the appropriate parser for a raw input.
// When the declared media type is missing or ambiguous the registry sniffs
// the content before dispatching.
type ParserRegistry interface {
	// Parse dispatches to the best matching parser.
	// Returns domain.ErrUnsupportedType when nothing handles the input.
	Parse(ctx context.Context, raw *domain.RawInput) (*domain.Node, error)

	// Register adds a parser to the registry.
	Register(parser TreeParser)

	// SupportedMediaTypes returns all media types that can be parsed.
	SupportedMediaTypes() []string
}
