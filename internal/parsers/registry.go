package parsers

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
	"github.com/radnorm/radnorm/internal/logger"
	"github.com/radnorm/radnorm/internal/parsers/jsontree"
	"github.com/radnorm/radnorm/internal/parsers/xmltree"
)

// Ensure Registry implements the interface.
var _ driven.ParserRegistry = (*Registry)(nil)

// Registry dispatches raw inputs to the parser registered for their media
// type. When the declared type is missing or ambiguous it sniffs the content
// and the source identifier's extension before giving up.
type Registry struct {
	mu      sync.RWMutex
	byType  map[string]driven.TreeParser
	parsers []driven.TreeParser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]driven.TreeParser)}
}

// NewDefaultRegistry creates a registry with the built-in XML and JSON
// parsers registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(xmltree.New())
	r.Register(jsontree.New())
	return r
}

// Register adds a parser. Later registrations win on media-type collisions.
func (r *Registry) Register(parser driven.TreeParser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers = append(r.parsers, parser)
	for _, mt := range parser.SupportedMediaTypes() {
		r.byType[normalizeMediaType(mt)] = parser
	}
}

// SupportedMediaTypes returns all media types that can be parsed.
func (r *Registry) SupportedMediaTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byType))
	for mt := range r.byType {
		out = append(out, mt)
	}
	return out
}

// Parse dispatches to the best matching parser.
func (r *Registry) Parse(ctx context.Context, raw *domain.RawInput) (*domain.Node, error) {
	if raw == nil || len(raw.Content) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrParse)
	}

	mt := normalizeMediaType(raw.MediaType)
	if mt == "" || mt == "application/octet-stream" {
		mt = sniffMediaType(raw)
		logger.Debug("Sniffed media type %q for %s", mt, raw.SourceIdentifier)
	}

	r.mu.RLock()
	parser, ok := r.byType[mt]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, raw.MediaType)
	}
	return parser.Parse(ctx, raw)
}

// normalizeMediaType lower-cases and strips parameters such as charset.
func normalizeMediaType(mt string) string {
	mt = strings.TrimSpace(strings.ToLower(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// sniffMediaType guesses the media type from content and file extension.
func sniffMediaType(raw *domain.RawInput) string {
	trimmed := bytes.TrimLeft(raw.Content, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '<':
			return "application/xml"
		case '{', '[':
			return "application/json"
		}
	}

	switch strings.ToLower(filepath.Ext(raw.SourceIdentifier)) {
	case ".xml":
		return "application/xml"
	case ".json":
		return "application/json"
	}
	return ""
}
