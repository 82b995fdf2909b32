package parsers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/parsers/jsontree"
	"github.com/radnorm/radnorm/internal/parsers/xmltree"
)

func newRegistry() *Registry {
	r := NewRegistry()
	r.Register(xmltree.New())
	r.Register(jsontree.New())
	return r
}

func TestRegistryDispatchByMediaType(t *testing.T) {
	r := newRegistry()

	root, err := r.Parse(context.Background(), &domain.RawInput{
		MediaType: "application/xml; charset=utf-8",
		Content:   []byte(`<doc><a>1</a></doc>`),
	})
	require.NoError(t, err)
	assert.Equal(t, "doc", root.Name)

	root, err = r.Parse(context.Background(), &domain.RawInput{
		MediaType: "APPLICATION/JSON",
		Content:   []byte(`{"a": 1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "root", root.Name)
}

func TestRegistrySniffsUnknownMediaType(t *testing.T) {
	r := newRegistry()

	tests := []struct {
		name      string
		mediaType string
		source    string
		content   string
		wantRoot  string
	}{
		{name: "xml by leading angle bracket", mediaType: "", content: "  \n<doc/>", wantRoot: "doc"},
		{name: "json by leading brace", mediaType: "application/octet-stream", content: `{"k": 1}`, wantRoot: "root"},
		{name: "xml by extension", mediaType: "", source: "scan_042.XML", content: "<doc/>", wantRoot: "doc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := r.Parse(context.Background(), &domain.RawInput{
				SourceIdentifier: tt.source,
				MediaType:        tt.mediaType,
				Content:          []byte(tt.content),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoot, root.Name)
		})
	}
}

func TestRegistryRejectsUnknownType(t *testing.T) {
	r := newRegistry()

	_, err := r.Parse(context.Background(), &domain.RawInput{
		MediaType: "application/pdf",
		Content:   []byte("%PDF-1.4"),
	})
	require.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistryRejectsEmptyInput(t *testing.T) {
	r := newRegistry()

	_, err := r.Parse(context.Background(), &domain.RawInput{MediaType: "application/xml"})
	require.ErrorIs(t, err, domain.ErrParse)
}
