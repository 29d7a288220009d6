package nbt

import "slices"

// Document is a compound value: a mapping from field name to Value that
// remembers insertion order. Overwriting an existing key keeps its position.
type Document struct {
	keys   []string
	values map[string]Value
}

// New returns an empty document.
func New() *Document {
	return &Document{values: make(map[string]Value)}
}

// Type implements Value.
func (d *Document) Type() TagType { return TagCompound }

// Len returns the number of fields.
func (d *Document) Len() int { return len(d.keys) }

// IsEmpty reports whether the document has no fields.
func (d *Document) IsEmpty() bool { return len(d.keys) == 0 }

// Keys returns the field names in insertion order.
func (d *Document) Keys() []string { return slices.Clone(d.keys) }

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// HasType reports whether key is present with the given tag type.
func (d *Document) HasType(key string, t TagType) bool {
	v, ok := d.values[key]
	return ok && v.Type() == t
}

// HasNumber reports whether key holds any numeric scalar.
func (d *Document) HasNumber(key string) bool {
	_, ok := d.values[key].(Numeric)
	return ok
}

// Get returns the raw value for key.
func (d *Document) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Put sets key to v. A nil v removes the key.
func (d *Document) Put(key string, v Value) {
	if v == nil {
		d.Remove(key)
		return
	}
	if d.values == nil {
		d.values = make(map[string]Value)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Remove deletes key if present.
func (d *Document) Remove(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	if i := slices.Index(d.keys, key); i >= 0 {
		d.keys = slices.Delete(d.keys, i, i+1)
	}
}

// Range calls fn for each field in insertion order until fn returns false.
func (d *Document) Range(fn func(key string, v Value) bool) {
	for _, k := range d.keys {
		if !fn(k, d.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		keys:   slices.Clone(d.keys),
		values: make(map[string]Value, len(d.values)),
	}
	for k, v := range d.values {
		c.values[k] = CloneValue(v)
	}
	return c
}

// Equal reports whether d and o hold the same fields with deeply equal
// values. Field order is not significant.
func (d *Document) Equal(o *Document) bool {
	if d == nil || o == nil {
		return d == o
	}
	if len(d.values) != len(o.values) {
		return false
	}
	for k, v := range d.values {
		ov, ok := o.values[k]
		if !ok || !EqualValue(v, ov) {
			return false
		}
	}
	return true
}

// GetNumber returns the numeric value stored at key.
func (d *Document) GetNumber(key string) (Numeric, bool) {
	n, ok := d.values[key].(Numeric)
	return n, ok
}

// GetByte returns key as a byte, converting from any numeric type.
func (d *Document) GetByte(key string) (int8, bool) {
	n, ok := d.GetNumber(key)
	if !ok {
		return 0, false
	}
	return int8(n.Int64()), true
}

// GetShort returns key as a short, converting from any numeric type.
func (d *Document) GetShort(key string) (int16, bool) {
	n, ok := d.GetNumber(key)
	if !ok {
		return 0, false
	}
	return int16(n.Int64()), true
}

// GetInt returns key as an int, converting from any numeric type.
func (d *Document) GetInt(key string) (int32, bool) {
	n, ok := d.GetNumber(key)
	if !ok {
		return 0, false
	}
	return int32(n.Int64()), true
}

// GetLong returns key as a long, converting from any numeric type.
func (d *Document) GetLong(key string) (int64, bool) {
	n, ok := d.GetNumber(key)
	if !ok {
		return 0, false
	}
	return n.Int64(), true
}

// GetFloat returns key as a float, converting from any numeric type.
func (d *Document) GetFloat(key string) (float32, bool) {
	n, ok := d.GetNumber(key)
	if !ok {
		return 0, false
	}
	return float32(n.Float64()), true
}

// GetIntOr returns key as an int or def when absent or not numeric.
func (d *Document) GetIntOr(key string, def int32) int32 {
	if v, ok := d.GetInt(key); ok {
		return v
	}
	return def
}

// GetShortOr returns key as a short or def when absent or not numeric.
func (d *Document) GetShortOr(key string, def int16) int16 {
	if v, ok := d.GetShort(key); ok {
		return v
	}
	return def
}

// GetByteOr returns key as a byte or def when absent or not numeric.
func (d *Document) GetByteOr(key string, def int8) int8 {
	if v, ok := d.GetByte(key); ok {
		return v
	}
	return def
}

// GetBool reports whether key holds a nonzero number.
func (d *Document) GetBool(key string) bool {
	v, _ := d.GetByte(key)
	return v != 0
}

// GetString returns key when it holds a string.
func (d *Document) GetString(key string) (string, bool) {
	s, ok := d.values[key].(String)
	return string(s), ok
}

// GetStringOr returns key when it holds a string, else def.
func (d *Document) GetStringOr(key, def string) string {
	if s, ok := d.GetString(key); ok {
		return s
	}
	return def
}

// GetDocument returns key when it holds a compound.
func (d *Document) GetDocument(key string) (*Document, bool) {
	c, ok := d.values[key].(*Document)
	return c, ok
}

// GetDocumentOrEmpty returns key when it holds a compound, else a new empty
// document that is not attached to d.
func (d *Document) GetDocumentOrEmpty(key string) *Document {
	if c, ok := d.GetDocument(key); ok {
		return c
	}
	return New()
}

// GetList returns key when it holds a list.
func (d *Document) GetList(key string) (*List, bool) {
	l, ok := d.values[key].(*List)
	return l, ok
}

// GetListOf returns key when it holds a list whose elements are of type t.
// An empty list matches any element type.
func (d *Document) GetListOf(key string, t TagType) (*List, bool) {
	l, ok := d.GetList(key)
	if !ok || (l.Len() > 0 && l.ElemType() != t) {
		return nil, false
	}
	return l, true
}

// GetListOrEmpty returns key when it holds a list, else a new empty list that
// is not attached to d.
func (d *Document) GetListOrEmpty(key string) *List {
	if l, ok := d.GetList(key); ok {
		return l
	}
	return NewList()
}

// GetByteArray returns key when it holds a byte array.
func (d *Document) GetByteArray(key string) (ByteArray, bool) {
	a, ok := d.values[key].(ByteArray)
	return a, ok
}

// PutString sets key to a string.
func (d *Document) PutString(key, v string) { d.Put(key, String(v)) }

// PutByte sets key to a byte.
func (d *Document) PutByte(key string, v int8) { d.Put(key, Byte(v)) }

// PutBool sets key to 1b or 0b.
func (d *Document) PutBool(key string, v bool) { d.Put(key, Bool(v)) }

// PutShort sets key to a short.
func (d *Document) PutShort(key string, v int16) { d.Put(key, Short(v)) }

// PutInt sets key to an int.
func (d *Document) PutInt(key string, v int32) { d.Put(key, Int(v)) }

// PutLong sets key to a long.
func (d *Document) PutLong(key string, v int64) { d.Put(key, Long(v)) }

// PutFloat sets key to a float.
func (d *Document) PutFloat(key string, v float32) { d.Put(key, Float(v)) }

// PutDouble sets key to a double.
func (d *Document) PutDouble(key string, v float64) { d.Put(key, Double(v)) }

// PutIntArray sets key to an int array.
func (d *Document) PutIntArray(key string, v []int32) { d.Put(key, IntArray(v)) }

// PutDocument sets key to a compound.
func (d *Document) PutDocument(key string, v *Document) { d.Put(key, v) }

// PutList sets key to a list.
func (d *Document) PutList(key string, v *List) { d.Put(key, v) }
