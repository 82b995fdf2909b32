package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/radnorm/radnorm/internal/core/domain"
)

// dateLayouts are the timestamp formats accepted by the date kind, tried
// in order. Annotation tools emit a mix of these.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Mapper projects parsed trees into canonical content using a detected
// case's field-mapping rules.
type Mapper struct{}

// NewMapper creates a canonical mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapResult is the mapper's output for one item.
type MapResult struct {
	// Payload is the schema-checked canonical content.
	Payload domain.Content

	// Warnings notes optional fields that were present but uncoercible.
	Warnings []string
}

// Map applies the case's field-mapping rules to the tree. A missing
// required field with no default fails with ErrMapping; absent optional
// fields are omitted from the payload. For the fallback case (no mapping
// rules) the whole tree is flattened into string fields so nothing is lost.
func (m *Mapper) Map(root *domain.Node, c domain.ParseCase) (*MapResult, error) {
	if root == nil {
		return nil, domain.ErrInvalidInput
	}

	if len(c.Mappings) == 0 {
		return &MapResult{Payload: flatten(root)}, nil
	}

	result := &MapResult{Payload: make(domain.Content, len(c.Mappings))}

	for _, rule := range c.Mappings {
		value, found, err := m.applyRule(root, rule)
		if err != nil {
			if rule.Required {
				return nil, fmt.Errorf("%w: field %q: %v", domain.ErrMapping, rule.Field, err)
			}
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("field %q: %v", rule.Field, err))
			continue
		}
		if !found {
			if rule.Default != "" {
				dv, derr := coerce(rule.Default, rule.Kind)
				if derr != nil {
					return nil, fmt.Errorf("%w: field %q default: %v", domain.ErrMapping, rule.Field, derr)
				}
				result.Payload[rule.Field] = dv
				continue
			}
			if rule.Required {
				return nil, fmt.Errorf("%w: required field %q missing at %q",
					domain.ErrMapping, rule.Field, rule.Source)
			}
			continue
		}
		result.Payload[rule.Field] = value
	}

	return result, nil
}

// applyRule resolves one mapping rule against the tree.
func (m *Mapper) applyRule(root *domain.Node, rule domain.FieldMapping) (domain.FieldValue, bool, error) {
	path, attr := splitAttr(rule.Source)
	nodes := resolvePath(root, path)
	if len(nodes) == 0 {
		return domain.FieldValue{}, false, nil
	}

	switch rule.Kind {
	case domain.KindList:
		list := make([]domain.FieldValue, 0, len(nodes))
		for _, n := range nodes {
			text, ok := nodeText(n, attr)
			if !ok {
				continue
			}
			list = append(list, domain.FieldValue{Kind: domain.KindString, Str: transform(text, rule.Transform)})
		}
		if len(list) == 0 {
			return domain.FieldValue{}, false, nil
		}
		return domain.FieldValue{Kind: domain.KindList, List: list}, true, nil

	case domain.KindNested:
		nested := make(domain.Content)
		for _, child := range nodes[0].Children {
			if child.Value == "" && len(child.Children) > 0 {
				continue
			}
			nested[child.Name] = domain.FieldValue{Kind: domain.KindString, Str: child.Value}
		}
		if len(nested) == 0 {
			return domain.FieldValue{}, false, nil
		}
		return domain.FieldValue{Kind: domain.KindNested, Nested: nested}, true, nil

	default:
		text, ok := nodeText(nodes[0], attr)
		if !ok {
			return domain.FieldValue{}, false, nil
		}
		value, err := coerce(transform(text, rule.Transform), rule.Kind)
		if err != nil {
			return domain.FieldValue{}, false, err
		}
		return value, true, nil
	}
}

// nodeText extracts the text (or attribute) value of a node.
func nodeText(n *domain.Node, attr string) (string, bool) {
	if attr != "" {
		v, ok := n.Attrs[attr]
		return v, ok
	}
	if n.Value == "" {
		return "", false
	}
	return n.Value, true
}

// transform applies a named text transform.
func transform(text, name string) string {
	switch name {
	case "trim":
		return strings.TrimSpace(text)
	case "lower":
		return strings.ToLower(strings.TrimSpace(text))
	case "upper":
		return strings.ToUpper(strings.TrimSpace(text))
	}
	return text
}

// coerce converts raw text into a typed field value.
func coerce(text string, kind domain.FieldKind) (domain.FieldValue, error) {
	switch kind {
	case domain.KindString, "":
		return domain.FieldValue{Kind: domain.KindString, Str: text}, nil

	case domain.KindInt:
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("not an integer: %q", text)
		}
		return domain.FieldValue{Kind: domain.KindInt, Int: i}, nil

	case domain.KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("not a number: %q", text)
		}
		return domain.FieldValue{Kind: domain.KindFloat, Float: f}, nil

	case domain.KindDate:
		trimmed := strings.TrimSpace(text)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, trimmed); err == nil {
				return domain.FieldValue{Kind: domain.KindDate, Date: ts}, nil
			}
		}
		return domain.FieldValue{}, fmt.Errorf("unrecognised date: %q", text)
	}
	return domain.FieldValue{}, fmt.Errorf("unsupported kind %q", kind)
}

// splitAttr separates a trailing "@attr" selector from a source path.
func splitAttr(source string) (path, attr string) {
	if i := strings.LastIndexByte(source, '@'); i >= 0 {
		return strings.TrimSuffix(source[:i], "/"), source[i+1:]
	}
	return source, ""
}

// pathStep is one component of a source path.
type pathStep struct {
	name string
	deep bool // preceded by //, matches any descendant
}

// parsePath splits a slash path into steps.
func parsePath(path string) []pathStep {
	var steps []pathStep
	deep := false
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			// An empty part means a consecutive slash: the next named
			// step is a descendant search.
			deep = true
			continue
		}
		// The leading single slash also produces one empty part, so the
		// first step treats plain absolute paths as shallow.
		steps = append(steps, pathStep{name: part, deep: deep && pathDeep(path, len(steps))})
		deep = false
	}
	return steps
}

// pathDeep reports whether the step at index i was written with "//".
// parsePath's empty-part tracking alone cannot distinguish the leading "/"
// of an absolute path from "//" at the start, so the raw prefix decides.
func pathDeep(path string, i int) bool {
	if i == 0 {
		return strings.HasPrefix(path, "//")
	}
	return true
}

// resolvePath returns all nodes matching the path, in document order.
func resolvePath(root *domain.Node, path string) []*domain.Node {
	steps := parsePath(path)
	if len(steps) == 0 {
		return nil
	}

	current := []*domain.Node{}
	first := steps[0]
	if first.deep {
		collectDescendants(root, first.name, &current)
	} else if root.Name == first.name {
		current = append(current, root)
	} else {
		current = append(current, root.ChildrenNamed(first.name)...)
	}

	for _, step := range steps[1:] {
		var next []*domain.Node
		for _, n := range current {
			if step.deep {
				for _, c := range n.Children {
					collectDescendants(c, step.name, &next)
				}
			} else {
				next = append(next, n.ChildrenNamed(step.name)...)
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current
}

// collectDescendants gathers node and all its descendants named name.
func collectDescendants(node *domain.Node, name string, out *[]*domain.Node) {
	if node.Name == name {
		*out = append(*out, node)
	}
	for _, c := range node.Children {
		collectDescendants(c, name, out)
	}
}

// flatten turns a whole tree into string fields keyed by slash paths.
// Used by the generic fallback case so unmatched schemas still persist.
func flatten(root *domain.Node) domain.Content {
	out := make(domain.Content)
	flattenInto(root, "", out)
	return out
}

func flattenInto(node *domain.Node, prefix string, out domain.Content) {
	path := prefix + "/" + node.Name
	if node.Value != "" {
		key := strings.TrimPrefix(path, "/")
		// Repeated leaves accumulate into a list under one key.
		if existing, ok := out[key]; ok {
			switch existing.Kind {
			case domain.KindList:
				existing.List = append(existing.List, domain.FieldValue{Kind: domain.KindString, Str: node.Value})
				out[key] = existing
			default:
				out[key] = domain.FieldValue{Kind: domain.KindList, List: []domain.FieldValue{
					existing,
					{Kind: domain.KindString, Str: node.Value},
				}}
			}
		} else {
			out[key] = domain.FieldValue{Kind: domain.KindString, Str: node.Value}
		}
	}
	for _, c := range node.Children {
		flattenInto(c, path, out)
	}
}
