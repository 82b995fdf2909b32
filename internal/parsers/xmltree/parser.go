// Package xmltree parses XML annotation exports into the uniform node tree.
package xmltree

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.TreeParser = (*Parser)(nil)

// Parser builds node trees from XML documents.
type Parser struct{}

// New creates a new XML tree parser.
func New() *Parser {
	return &Parser{}
}

// SupportedMediaTypes returns the media types this parser handles.
func (p *Parser) SupportedMediaTypes() []string {
	return []string{
		"application/xml",
		"text/xml",
	}
}

// Parse tokenises the XML document into a node tree. Namespace prefixes are
// dropped: authoring tools disagree about them while the local names are the
// stable part of the schema.
func (p *Parser) Parse(_ context.Context, raw *domain.RawInput) (*domain.Node, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	dec := xml.NewDecoder(bytes.NewReader(raw.Content))
	var (
		root  *domain.Node
		stack []*domain.Node
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &domain.Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				node.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
						continue
					}
					node.Attrs[a.Name.Local] = a.Value
				}
			}

			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", domain.ErrParse)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end element %q", domain.ErrParse, t.Name.Local)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			top := stack[len(stack)-1]
			if top.Value != "" {
				top.Value += " "
			}
			top.Value += text
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", domain.ErrParse)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: truncated document", domain.ErrParse)
	}
	return root, nil
}
