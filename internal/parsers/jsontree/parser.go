// Package jsontree parses JSON annotation exports into the uniform node tree.
package jsontree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/core/ports/driven"
)

// rootName is the synthetic element name given to the document root, since
// JSON has no named root the way XML does.
const rootName = "root"

// Ensure Parser implements the interface.
var _ driven.TreeParser = (*Parser)(nil)

// Parser builds node trees from JSON documents.
type Parser struct{}

// New creates a new JSON tree parser.
func New() *Parser {
	return &Parser{}
}

// SupportedMediaTypes returns the media types this parser handles.
func (p *Parser) SupportedMediaTypes() []string {
	return []string{
		"application/json",
		"text/json",
	}
}

// Parse decodes the JSON document and converts it to a node tree.
// Object members become named children (sorted by key, so structurally
// identical documents always yield the same tree regardless of member
// order), array elements become repeated children carrying the array's
// name, and scalars become leaf values.
func (p *Parser) Parse(_ context.Context, raw *domain.RawInput) (*domain.Node, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Content))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", domain.ErrParse)
	}

	root := &domain.Node{Name: rootName}
	appendValue(root, rootName, value)
	return root, nil
}

// appendValue converts one JSON value into children (or the value) of node.
func appendValue(node *domain.Node, name string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			child := v[k]
			if arr, ok := child.([]any); ok {
				// Arrays flatten into repeated children named after the key.
				for _, item := range arr {
					elem := &domain.Node{Name: k}
					appendValue(elem, k, item)
					node.Children = append(node.Children, elem)
				}
				continue
			}
			elem := &domain.Node{Name: k}
			appendValue(elem, k, child)
			node.Children = append(node.Children, elem)
		}

	case []any:
		for _, item := range v {
			elem := &domain.Node{Name: "item"}
			appendValue(elem, "item", item)
			node.Children = append(node.Children, elem)
		}

	case nil:
		// Absent value: leaf with empty text.

	case json.Number:
		node.Value = v.String()

	case bool:
		if v {
			node.Value = "true"
		} else {
			node.Value = "false"
		}

	case string:
		node.Value = v

	default:
		node.Value = fmt.Sprintf("%v", v)
	}
}
