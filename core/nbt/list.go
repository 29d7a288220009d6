package nbt

import "slices"

// List is an ordered sequence of values that share one tag type.
type List struct {
	elem  TagType
	items []Value
}

// NewList returns a list holding vs. The element type is taken from the first
// value; callers are responsible for passing values of one type.
func NewList(vs ...Value) *List {
	l := &List{}
	for _, v := range vs {
		l.Append(v)
	}
	return l
}

// Type implements Value.
func (l *List) Type() TagType { return TagList }

// ElemType returns the element tag type, TagEnd for an untyped empty list.
func (l *List) ElemType() TagType { return l.elem }

// Len returns the number of elements.
func (l *List) Len() int { return len(l.items) }

// Get returns element i, or nil when out of range.
func (l *List) Get(i int) Value {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Set replaces element i. Out of range indexes are ignored.
func (l *List) Set(i int, v Value) {
	if i < 0 || i >= len(l.items) || v == nil {
		return
	}
	l.items[i] = v
}

// Append adds v at the end.
func (l *List) Append(v Value) {
	if v == nil {
		return
	}
	if len(l.items) == 0 {
		l.elem = v.Type()
	}
	l.items = append(l.items, v)
}

// Insert adds v before index i, appending when i is past the end.
func (l *List) Insert(i int, v Value) {
	if v == nil {
		return
	}
	if i >= len(l.items) {
		l.Append(v)
		return
	}
	l.items = slices.Insert(l.items, max(i, 0), v)
}

// Remove deletes element i.
func (l *List) Remove(i int) {
	if i < 0 || i >= len(l.items) {
		return
	}
	l.items = slices.Delete(l.items, i, i+1)
}

// Values returns the elements. The slice is a copy; the values are not.
func (l *List) Values() []Value { return slices.Clone(l.items) }

// GetDocument returns element i when it is a compound.
func (l *List) GetDocument(i int) (*Document, bool) {
	d, ok := l.Get(i).(*Document)
	return d, ok
}

// GetDocumentOrEmpty returns element i when it is a compound, else a new
// detached empty document.
func (l *List) GetDocumentOrEmpty(i int) *Document {
	if d, ok := l.GetDocument(i); ok {
		return d
	}
	return New()
}

// GetString returns element i when it is a string, else "".
func (l *List) GetString(i int) string {
	s, _ := l.Get(i).(String)
	return string(s)
}

// GetFloat returns element i as a float, or 0 when not numeric.
func (l *List) GetFloat(i int) float32 {
	if n, ok := l.Get(i).(Numeric); ok {
		return float32(n.Float64())
	}
	return 0
}

// Clone returns a deep copy.
func (l *List) Clone() *List {
	c := &List{elem: l.elem, items: make([]Value, len(l.items))}
	for i, v := range l.items {
		c.items[i] = CloneValue(v)
	}
	return c
}

// Equal compares element by element.
func (l *List) Equal(o *List) bool {
	if l == nil || o == nil {
		return l == o
	}
	if len(l.items) != len(o.items) {
		return false
	}
	for i := range l.items {
		if !EqualValue(l.items[i], o.items[i]) {
			return false
		}
	}
	return true
}
