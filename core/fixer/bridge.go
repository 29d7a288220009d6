package fixer

import (
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

// Ops is the field access interface a Dynamic carries across the modern
// engine boundary.
type Ops interface {
	Get(v nbt.Value, key string) (nbt.Value, bool)
	Put(v nbt.Value, key string, field nbt.Value) nbt.Value
	Remove(v nbt.Value, key string) nbt.Value
	CreateString(s string) nbt.Value
	StringValue(v nbt.Value) (string, bool)
}

// DocumentOps implements Ops over nbt values.
type DocumentOps struct{}

// Get returns key from a compound value.
func (DocumentOps) Get(v nbt.Value, key string) (nbt.Value, bool) {
	d, ok := v.(*nbt.Document)
	if !ok {
		return nil, false
	}
	return d.Get(key)
}

// Put sets key on a compound value. Non-compound values are returned
// unchanged.
func (DocumentOps) Put(v nbt.Value, key string, field nbt.Value) nbt.Value {
	if d, ok := v.(*nbt.Document); ok {
		d.Put(key, field)
	}
	return v
}

// Remove deletes key from a compound value.
func (DocumentOps) Remove(v nbt.Value, key string) nbt.Value {
	if d, ok := v.(*nbt.Document); ok {
		d.Remove(key)
	}
	return v
}

// CreateString wraps s as a string value.
func (DocumentOps) CreateString(s string) nbt.Value { return nbt.String(s) }

// StringValue unwraps a string value.
func (DocumentOps) StringValue(v nbt.Value) (string, bool) {
	s, ok := v.(nbt.String)
	return string(s), ok
}

// Dynamic pairs a value with the operations used to read and write it.
type Dynamic struct {
	Ops   Ops
	Value nbt.Value
}

// NewDynamic wraps v with DocumentOps.
func NewDynamic(v nbt.Value) Dynamic {
	return Dynamic{Ops: DocumentOps{}, Value: v}
}

// ModernEngine is the externally supplied migration engine that owns every
// version above the legacy cutoff.
type ModernEngine interface {
	Update(token TypeToken, d Dynamic, source, target int) (Dynamic, error)
}

// Passthrough is a ModernEngine that knows no migrations.
type Passthrough struct{}

// Update returns d unchanged.
func (Passthrough) Update(_ TypeToken, d Dynamic, _, _ int) (Dynamic, error) {
	return d, nil
}

// Bridge adapts an Engine to the ModernEngine interface. Legacy versions of
// a call are migrated by the engine's own pipelines and the remainder is
// delegated to the engine's modern engine, so bridges can be stacked.
type Bridge struct {
	engine *Engine
}

// Update migrates d from source to target.
func (b *Bridge) Update(token TypeToken, d Dynamic, source, target int) (Dynamic, error) {
	r := b.engine.newRun()
	out := r.bridge(token, d, source, target)
	return out, r.err
}

// bridge splits a migration at the legacy cutoff. Below it the legacy
// pipelines for the token run up to min(target, cutoff); the modern engine
// then takes the rest. Tokens without a legacy pipeline go straight to the
// modern engine.
func (r *run) bridge(token TypeToken, d Dynamic, source, target int) Dynamic {
	if source >= target {
		return d
	}
	e := r.engine
	from := source
	if source < e.cutoff {
		legacyTarget := min(target, e.cutoff)
		handled := false
		if kind, ok := KindForToken(token); ok {
			if doc, ok := d.Value.(*nbt.Document); ok {
				d.Value = r.legacy(kind, doc, source, legacyTarget)
				handled = true
			}
		} else if vk, ok := ValueKindForToken(token); ok {
			d.Value = e.applyValues(vk, d.Value, source, legacyTarget)
			handled = true
		}
		if handled {
			from = legacyTarget
		}
	}
	if from >= target {
		return d
	}
	out, err := e.modern.Update(token, d, from, target)
	if err != nil {
		r.fail(err)
		return d
	}
	return out
}
