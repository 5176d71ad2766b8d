package output

// Element is one entry in a record's shaped output list: either a
// scalar Field/Value pair, a tree bracket, an Info summary line, or a
// free-form Custom label/value pair. Custom is meaningful only for
// FieldCustom, where Value holds the label and Custom the value,
// mirroring the teacher's and the original
// implementation's practice of reusing one small struct across many
// element kinds rather than a sum type per kind.
type Element struct {
	Field  Field
	Value  interface{}
	Custom string
}

// Builder accumulates a record's Element list.
type Builder struct {
	elems []Element
}

// Scalar appends a plain Field/Value pair. A nil value is dropped,
// matching the original's "empty values are not sent" rule.
func (b *Builder) Scalar(f Field, value interface{}) *Builder {
	if value == nil {
		return b
	}
	if s, ok := value.(string); ok && s == "" {
		return b
	}
	b.elems = append(b.elems, Element{Field: f, Value: value})
	return b
}

// OpenTree appends a tree-open bracket labeled by label.
func (b *Builder) OpenTree(label string) *Builder {
	b.elems = append(b.elems, Element{Field: FieldOpenTree, Value: label})
	return b
}

// CloseTree appends a tree-close bracket.
func (b *Builder) CloseTree() *Builder {
	b.elems = append(b.elems, Element{Field: FieldCloseTree})
	return b
}

// Info appends the one-line human-readable summary.
func (b *Builder) Info(text string) *Builder {
	b.elems = append(b.elems, Element{Field: FieldMessage, Value: text})
	return b
}

// Custom appends a free-form label/value pair that has no well-known Field.
func (b *Builder) Custom(label, value string) *Builder {
	b.elems = append(b.elems, Element{Field: FieldCustom, Value: label, Custom: value})
	return b
}

// Extend appends another builder's elements in order, for composing a
// child record's output into a parent tree (the event-set case).
func (b *Builder) Extend(other []Element) *Builder {
	b.elems = append(b.elems, other...)
	return b
}

// Elements returns the accumulated list.
func (b *Builder) Elements() []Element { return b.elems }
