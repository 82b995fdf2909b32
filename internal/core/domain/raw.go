package domain

// RawInput represents opaque annotation export bytes before parsing.
// It is immutable: created per ingestion request and discarded after mapping.
type RawInput struct {
	// SourceIdentifier is the originating location (file path, upload name).
	// Together with the content hash it determines document identity.
	SourceIdentifier string

	// MediaType is the declared content type (e.g. "application/xml").
	// May be empty or wrong; the parser registry sniffs content when needed.
	MediaType string

	// Content is the raw bytes of the export.
	Content []byte

	// Metadata contains transport-specific key-value pairs.
	Metadata map[string]any
}

// Node is the uniform parsed tree shared by the XML and JSON parsers.
// Fingerprinting and canonical mapping operate on this shape only, so the
// rest of the engine never sees format-specific types.
type Node struct {
	// Name is the element name (XML tag, JSON object key).
	Name string

	// Value is the text content of a leaf, empty for interior nodes.
	Value string

	// Attrs holds XML attributes. Always nil for JSON-derived trees.
	Attrs map[string]string

	// Children are the child nodes in document order.
	Children []*Node
}

// Child returns the first child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all children with the given name, in document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
