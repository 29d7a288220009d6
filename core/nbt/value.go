// Package nbt implements the tree-structured document model migrated by the
// fixer: ordered compound documents, typed scalars, lists and arrays, plus the
// stringified (SNBT) and binary named-tag encodings used to persist them.
package nbt

import (
	"fmt"
	"slices"
)

// TagType identifies the wire type of a Value. The numbering matches the
// binary named-tag format.
type TagType byte

// Tag types.
const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = [...]string{
	TagEnd:       "end",
	TagByte:      "byte",
	TagShort:     "short",
	TagInt:       "int",
	TagLong:      "long",
	TagFloat:     "float",
	TagDouble:    "double",
	TagByteArray: "byte_array",
	TagString:    "string",
	TagList:      "list",
	TagCompound:  "compound",
	TagIntArray:  "int_array",
	TagLongArray: "long_array",
}

func (t TagType) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", byte(t))
}

// Value is any node of a document tree.
type Value interface {
	Type() TagType
}

// Numeric is implemented by every scalar number type. Numeric getters accept
// any of them and convert, so a field written as a short reads back as an int.
type Numeric interface {
	Value
	Int64() int64
	Float64() float64
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	String    string
	ByteArray []int8
	IntArray  []int32
	LongArray []int64
)

func (Byte) Type() TagType      { return TagByte }
func (Short) Type() TagType     { return TagShort }
func (Int) Type() TagType       { return TagInt }
func (Long) Type() TagType      { return TagLong }
func (Float) Type() TagType     { return TagFloat }
func (Double) Type() TagType    { return TagDouble }
func (String) Type() TagType    { return TagString }
func (ByteArray) Type() TagType { return TagByteArray }
func (IntArray) Type() TagType  { return TagIntArray }
func (LongArray) Type() TagType { return TagLongArray }

func (v Byte) Int64() int64   { return int64(v) }
func (v Short) Int64() int64  { return int64(v) }
func (v Int) Int64() int64    { return int64(v) }
func (v Long) Int64() int64   { return int64(v) }
func (v Float) Int64() int64  { return int64(v) }
func (v Double) Int64() int64 { return int64(v) }

func (v Byte) Float64() float64   { return float64(v) }
func (v Short) Float64() float64  { return float64(v) }
func (v Int) Float64() float64    { return float64(v) }
func (v Long) Float64() float64   { return float64(v) }
func (v Float) Float64() float64  { return float64(v) }
func (v Double) Float64() float64 { return float64(v) }

// Bool encodes a boolean the way documents store it: as a byte.
func Bool(b bool) Byte {
	if b {
		return 1
	}
	return 0
}

// CloneValue returns a deep copy of v. Scalars are returned as is.
func CloneValue(v Value) Value {
	switch x := v.(type) {
	case *Document:
		return x.Clone()
	case *List:
		return x.Clone()
	case ByteArray:
		return append(ByteArray(nil), x...)
	case IntArray:
		return append(IntArray(nil), x...)
	case LongArray:
		return append(LongArray(nil), x...)
	default:
		return v
	}
}

// EqualValue reports whether a and b are deeply equal. Documents compare as
// key sets; lists and arrays compare element by element in order.
func EqualValue(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch x := a.(type) {
	case *Document:
		return x.Equal(b.(*Document))
	case *List:
		return x.Equal(b.(*List))
	case ByteArray:
		return slices.Equal(x, b.(ByteArray))
	case IntArray:
		return slices.Equal(x, b.(IntArray))
	case LongArray:
		return slices.Equal(x, b.(LongArray))
	default:
		return a == b
	}
}
