package domain

// FieldKind is the closed set of value kinds a canonical field may hold.
type FieldKind string

const (
	// KindString holds free text.
	KindString FieldKind = "string"

	// KindInt holds a whole number.
	KindInt FieldKind = "int"

	// KindFloat holds a decimal number.
	KindFloat FieldKind = "float"

	// KindDate holds a timestamp.
	KindDate FieldKind = "date"

	// KindList holds repeated values collected from every matching node.
	KindList FieldKind = "list"

	// KindNested holds a sub-document keyed by child element names.
	KindNested FieldKind = "nested"
)

// Valid reports whether the kind is one of the closed set.
func (k FieldKind) Valid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindDate, KindList, KindNested:
		return true
	}
	return false
}

// FieldMapping projects one source location into one canonical field.
type FieldMapping struct {
	// Field is the canonical field name in the content payload.
	Field string

	// Source is a slash path over the parsed tree. "/" steps descend one
	// level, "//" matches any descendant, a trailing "@name" selects an
	// attribute. Example: "//unblindedReadNodule/characteristics/malignancy".
	Source string

	// Kind is the canonical value kind the source value is coerced to.
	Kind FieldKind

	// Required marks the field as mandatory. A missing required field with
	// no default fails the item with ErrMapping.
	Required bool

	// Default is used when the source is absent. Empty means no default.
	Default string

	// Transform is an optional named transform applied to the raw text
	// before coercion: "trim", "lower", "upper".
	Transform string
}

// ParseCase is a recognised structural variant of an input schema together
// with the rules for mapping it into canonical form.
type ParseCase struct {
	// Name uniquely identifies the case. Registering the same name again
	// replaces the prior definition.
	Name string

	// Description is a short operator-facing summary.
	Description string

	// Reference is the fingerprint this case is matched against.
	// The generic fallback case has an empty reference and always matches
	// with minimum confidence.
	Reference StructuralFingerprint

	// Mappings are the field-mapping rules applied by the canonical mapper.
	Mappings []FieldMapping

	// KeywordFields names the canonical fields whose text feeds keyword
	// extraction. Empty means every string-kind field.
	KeywordFields []string
}

// IsFallback reports whether this is the generic catch-all case.
func (c ParseCase) IsFallback() bool {
	return c.Reference.IsEmpty()
}

// RequiredFields returns the names of all required canonical fields.
func (c ParseCase) RequiredFields() []string {
	var out []string
	for _, m := range c.Mappings {
		if m.Required {
			out = append(out, m.Field)
		}
	}
	return out
}

// CaseScore is the similarity of one registered case to an input fingerprint.
type CaseScore struct {
	// CaseName identifies the scored case.
	CaseName string

	// Score is the normalised token overlap in [0,1].
	Score float64
}

// Detection is the outcome of matching an input fingerprint against the
// registry. Detection never mutates the registry.
type Detection struct {
	// Case is the best-matching parse case (the fallback when nothing
	// reached the confidence threshold).
	Case ParseCase

	// Confidence is the winning similarity score in [0,1].
	Confidence float64

	// LowConfidence is set when no registered case met the threshold and
	// the fallback was chosen. Recorded as a schema-drift warning, never
	// a failure.
	LowConfidence bool

	// Scores holds the per-case similarity for registry curation,
	// in registration order.
	Scores []CaseScore

	// MatchedTokens and MissingTokens describe how the input fingerprint
	// relates to the winning case's reference shape.
	MatchedTokens []string
	MissingTokens []string
}
