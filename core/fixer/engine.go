// Package fixer migrates versioned documents from legacy schema versions to a
// target version.
//
// Each Kind owns a converter pipeline, ordered by trigger version, and an
// inspector pipeline, run in registration order after the converters.
// Inspectors hand embedded records back to the engine, so one migration can
// fan out across kinds. Versions above the legacy cutoff belong to a
// ModernEngine supplied by the caller; the bridge splits each call between
// the two.
//
// An Engine is immutable once built and safe for concurrent use. Each call
// tracks its own recursion depth.
package fixer

import (
	"log/slog"
	"math/rand/v2"

	"github.com/FocuswithJustin/legacyfix/core/blockstate"
	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/legacy"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

const (
	// LegacyCutoff is the data version of the last legacy schema.
	LegacyCutoff = 1343

	// DefaultTargetVersion is the data version documents are migrated to
	// when no target is given.
	DefaultTargetVersion = 4435

	// DefaultMaxDepth bounds nested FixUp frames within one call.
	DefaultMaxDepth = 64

	// UnknownVersion is the source version of documents without a
	// DataVersion field.
	UnknownVersion = -1
)

// Config holds engine settings. Zero fields take their defaults.
type Config struct {
	// TargetVersion is used by FixUp and FixValue.
	TargetVersion int

	// LegacyCutoff is the highest version handled by the legacy pipelines.
	LegacyCutoff int

	// MaxDepth is the recursion limit for nested records.
	MaxDepth int

	// Modern receives the part of each migration above the cutoff.
	// Defaults to Passthrough.
	Modern ModernEngine

	// Logger receives warnings about data left as is.
	Logger *slog.Logger

	// Rand returns a value in [0, n). Defaults to math/rand/v2.
	Rand func(n int) int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		TargetVersion: DefaultTargetVersion,
		LegacyCutoff:  LegacyCutoff,
		MaxDepth:      DefaultMaxDepth,
		Modern:        Passthrough{},
	}
}

// Engine runs the converter and inspector pipelines.
type Engine struct {
	target   int
	cutoff   int
	maxDepth int
	modern   ModernEngine
	logger   *slog.Logger
	rand     func(n int) int
	tables   *legacy.Tables

	converters [kindCount]pipeline[Converter]
	inspectors [kindCount][]Inspector
	values     [valueKindCount]pipeline[ValueConverter]
}

// New builds an engine and registers every converter and inspector. A
// registration that names an unknown legacy class fails here.
func New(cfg Config) (*Engine, error) {
	def := DefaultConfig()
	if cfg.TargetVersion == 0 {
		cfg.TargetVersion = def.TargetVersion
	}
	if cfg.LegacyCutoff == 0 {
		cfg.LegacyCutoff = def.LegacyCutoff
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.Modern == nil {
		cfg.Modern = def.Modern
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.IntN
	}
	if cfg.MaxDepth < 0 {
		return nil, errors.NewValidation("max_depth", "must be positive")
	}

	tables, err := legacy.Load()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		target:   cfg.TargetVersion,
		cutoff:   cfg.LegacyCutoff,
		maxDepth: cfg.MaxDepth,
		modern:   cfg.Modern,
		logger:   cfg.Logger,
		rand:     cfg.Rand,
		tables:   tables,
	}
	if err := e.registerAll(); err != nil {
		return nil, err
	}
	return e, nil
}

// TargetVersion returns the default target.
func (e *Engine) TargetVersion() int { return e.target }

// LegacyCutoff returns the version at which the bridge hands off.
func (e *Engine) LegacyCutoff() int { return e.cutoff }

// Tables returns the registry the engine was built with.
func (e *Engine) Tables() *legacy.Tables { return e.tables }

// Bridge returns a ModernEngine view of e.
func (e *Engine) Bridge() *Bridge { return &Bridge{engine: e} }

// ConverterVersions lists the trigger versions registered for kind in
// pipeline order.
func (e *Engine) ConverterVersions(kind Kind) []int {
	if !kind.valid() {
		return nil
	}
	return e.converters[kind].versions()
}

func (e *Engine) registerConverter(kind Kind, c Converter) {
	e.converters[kind].add(c)
}

func (e *Engine) registerInspector(kind Kind, in Inspector) {
	e.inspectors[kind] = append(e.inspectors[kind], in)
}

func (e *Engine) registerValue(kind ValueKind, c ValueConverter) {
	e.values[kind].add(c)
}

// FixUp migrates doc from source to the engine's target version.
func (e *Engine) FixUp(kind Kind, doc *nbt.Document, source int) (*nbt.Document, error) {
	return e.Update(kind, doc, source, e.target)
}

// FixUpFromDataVersion migrates doc using its DataVersion field as the
// source version. Documents without one are treated as UnknownVersion.
func (e *Engine) FixUpFromDataVersion(kind Kind, doc *nbt.Document) (*nbt.Document, error) {
	return e.FixUp(kind, doc, int(doc.GetIntOr("DataVersion", UnknownVersion)))
}

// Update migrates doc from source to target through the bridge. It is the
// identity when source >= target. doc may be modified in place; callers use
// the returned document.
func (e *Engine) Update(kind Kind, doc *nbt.Document, source, target int) (*nbt.Document, error) {
	if !kind.valid() {
		return nil, errors.NewValidation("kind", "unknown document kind")
	}
	if doc == nil {
		return nil, errors.NewValidation("document", "nil document")
	}
	out, err := e.Bridge().Update(kind.TypeToken(), NewDynamic(doc), source, target)
	d, ok := out.Value.(*nbt.Document)
	if !ok {
		if err == nil {
			err = errors.NewUnsupported("modern engine result", "expected a compound for "+kind.String())
		}
		return doc, err
	}
	return d, err
}

// Convert runs only the legacy pipelines of kind from source to target.
// Nested records still go through the bridge.
func (e *Engine) Convert(kind Kind, doc *nbt.Document, source, target int) (*nbt.Document, error) {
	if !kind.valid() {
		return nil, errors.NewValidation("kind", "unknown document kind")
	}
	if doc == nil {
		return nil, errors.NewValidation("document", "nil document")
	}
	r := e.newRun()
	out := r.legacy(kind, doc, source, target)
	return out, r.err
}

// FixValue migrates a bare identifier from source to the engine's target.
// Block states are decoded with the block-state codec first; a value that
// does not decode is returned unchanged.
func (e *Engine) FixValue(kind ValueKind, value string, source int) (string, error) {
	return e.UpdateValue(kind, value, source, e.target)
}

// UpdateValue is FixValue with an explicit target.
func (e *Engine) UpdateValue(kind ValueKind, value string, source, target int) (string, error) {
	if !kind.valid() {
		return "", errors.NewValidation("value_kind", "unknown value kind")
	}
	if source >= target {
		return value, nil
	}

	var in nbt.Value = nbt.String(value)
	if kind == BlockState {
		doc, err := blockstate.Decode(value)
		if err != nil {
			e.logger.Warn("block state left unchanged", "value", value, "error", err)
			return value, nil
		}
		in = doc
	}

	out, err := e.Bridge().Update(kind.TypeToken(), NewDynamic(in), source, target)
	if err != nil {
		return value, err
	}
	switch v := out.Value.(type) {
	case *nbt.Document:
		return blockstate.Encode(v), nil
	case nbt.String:
		return string(v), nil
	}
	return value, nil
}

// applyValues runs the value converters of kind over v. Block-state
// documents are converted through their text form.
func (e *Engine) applyValues(kind ValueKind, v nbt.Value, source, target int) nbt.Value {
	convs := e.values[kind].window(source, target)
	if len(convs) == 0 {
		return v
	}
	switch x := v.(type) {
	case nbt.String:
		s := string(x)
		for _, c := range convs {
			s = c.ConvertValue(s)
		}
		return nbt.String(s)
	case *nbt.Document:
		s := blockstate.Encode(x)
		for _, c := range convs {
			s = c.ConvertValue(s)
		}
		doc, err := blockstate.Decode(s)
		if err != nil {
			return v
		}
		return doc
	}
	return v
}

// CacheKey identifies one migration result for caching.
type CacheKey struct {
	Kind   Kind
	Source int
	Target int
	Digest string
}

// run is the state of one top-level call: recursion depth and the first
// error raised anywhere beneath it.
type run struct {
	engine *Engine
	depth  int
	err    error
}

func (e *Engine) newRun() *run {
	return &run{engine: e}
}

func (r *run) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Convert implements Recurser. Nested records take the full bridge path.
func (r *run) Convert(kind Kind, doc *nbt.Document, source, target int) *nbt.Document {
	return r.update(kind, doc, source, target)
}

func (r *run) update(kind Kind, doc *nbt.Document, source, target int) *nbt.Document {
	out := r.bridge(kind.TypeToken(), NewDynamic(doc), source, target)
	if d, ok := out.Value.(*nbt.Document); ok {
		return d
	}
	r.fail(errors.NewUnsupported("modern engine result", "expected a compound for "+kind.String()))
	return doc
}

// legacy runs the converters that fire in (source, target] and then every
// inspector of kind.
func (r *run) legacy(kind Kind, doc *nbt.Document, source, target int) *nbt.Document {
	if r.depth >= r.engine.maxDepth {
		r.fail(&errors.RecursionError{Kind: kind.String(), Depth: r.depth + 1})
		return doc
	}
	r.depth++
	defer func() { r.depth-- }()

	e := r.engine
	for _, c := range e.converters[kind].window(source, target) {
		doc = c.Convert(doc)
	}
	for _, in := range e.inspectors[kind] {
		doc = in.Inspect(r, doc, source, target)
	}
	return doc
}
