package fixer

import (
	"sort"

	"github.com/FocuswithJustin/legacyfix/core/legacy"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

// Converter is a version-gated transform. It fires exactly once for a
// migration whose source is below Version and whose target is at or above it.
type Converter interface {
	Version() int
	Convert(doc *nbt.Document) *nbt.Document
}

// ValueConverter is a version-gated transform over a bare identifier.
type ValueConverter interface {
	Version() int
	ConvertValue(v string) string
}

// Recurser re-enters the engine for a nested record. Inspectors pass the
// target they were given, which is never above the legacy cutoff, so a nested
// record stops at the cutoff and reaches the modern engine only as part of
// its enclosing record.
type Recurser interface {
	Convert(kind Kind, doc *nbt.Document, source, target int) *nbt.Document
}

// Inspector is a structural transform that runs after the converters of its
// kind on every migration, typically to hand embedded records to the engine.
type Inspector interface {
	Inspect(r Recurser, doc *nbt.Document, source, target int) *nbt.Document
}

// InspectorFunc adapts a function to Inspector.
type InspectorFunc func(r Recurser, doc *nbt.Document, source, target int) *nbt.Document

// Inspect implements Inspector.
func (f InspectorFunc) Inspect(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
	return f(r, doc, source, target)
}

type converterFunc struct {
	version int
	fn      func(*nbt.Document) *nbt.Document
}

func (c converterFunc) Version() int                            { return c.version }
func (c converterFunc) Convert(doc *nbt.Document) *nbt.Document { return c.fn(doc) }

// NewConverter wraps fn as a Converter triggered at version.
func NewConverter(version int, fn func(*nbt.Document) *nbt.Document) Converter {
	return converterFunc{version: version, fn: fn}
}

type valueConverterFunc struct {
	version int
	fn      func(string) string
}

func (c valueConverterFunc) Version() int                 { return c.version }
func (c valueConverterFunc) ConvertValue(v string) string { return c.fn(v) }

// NewValueConverter wraps fn as a ValueConverter triggered at version.
func NewValueConverter(version int, fn func(string) string) ValueConverter {
	return valueConverterFunc{version: version, fn: fn}
}

type versioned interface {
	Version() int
}

// pipeline keeps its entries ordered by trigger version. Entries with equal
// versions stay in registration order.
type pipeline[T versioned] struct {
	items []T
}

func (p *pipeline[T]) add(item T) {
	v := item.Version()
	n := len(p.items)
	if n == 0 || v >= p.items[n-1].Version() {
		p.items = append(p.items, item)
		return
	}
	i := sort.Search(n, func(i int) bool { return p.items[i].Version() > v })
	p.items = append(p.items, item)
	copy(p.items[i+1:], p.items[i:n])
	p.items[i] = item
}

// window returns the entries that fire for a source to target migration.
func (p *pipeline[T]) window(source, target int) []T {
	var out []T
	for _, item := range p.items {
		v := item.Version()
		if v > source && v <= target {
			out = append(out, item)
		}
	}
	return out
}

func (p *pipeline[T]) versions() []int {
	out := make([]int, len(p.items))
	for i, item := range p.items {
		out[i] = item.Version()
	}
	return out
}

// Guarded restricts in to documents whose namespaced id equals the
// identifier registered for className. An unknown class name is an error.
func Guarded(tables *legacy.Tables, className string, in Inspector) (Inspector, error) {
	id, err := tables.ResolveClassName(className)
	if err != nil {
		return nil, err
	}
	return InspectorFunc(func(r Recurser, doc *nbt.Document, source, target int) *nbt.Document {
		if s, ok := doc.GetString("id"); !ok || legacy.Namespaced(s) != id {
			return doc
		}
		return in.Inspect(r, doc, source, target)
	}), nil
}
