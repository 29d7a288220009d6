// Package chunkstore prepares chunk documents read from world storage: it
// migrates them to the running data version and classifies their on-disk
// layout.
package chunkstore

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/fixer"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

// Data versions at which the chunk layout changed.
const (
	VersionAnvil13 = 1519
	VersionAnvil15 = 2225
	VersionAnvil16 = 2566
	VersionAnvil17 = 2724
	VersionAnvil18 = 2860
)

// Format identifies the storage layout of a chunk.
type Format int

const (
	// Old is the pre-Anvil MCRegion layout.
	Old Format = iota
	Anvil
	Anvil13
	Anvil15
	Anvil16
	Anvil17
	// Anvil18 chunks keep their data at the root instead of under Level.
	Anvil18
)

var formatNames = [...]string{"old", "anvil", "anvil13", "anvil15", "anvil16", "anvil17", "anvil18"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// ChunkFixer migrates a chunk document from a source version to the running
// version. *fixer.Engine satisfies it.
type ChunkFixer interface {
	FixUp(kind fixer.Kind, doc *nbt.Document, source int) (*nbt.Document, error)
}

// ChunkStoreError reports a chunk document that cannot be interpreted.
type ChunkStoreError struct {
	Message string
}

func (e *ChunkStoreError) Error() string {
	return "chunk store: " + e.Message
}

func (e *ChunkStoreError) Unwrap() error {
	return errors.ErrInvalidInput
}

// Chunk is a prepared chunk document.
type Chunk struct {
	Root        *nbt.Document
	DataVersion int
	Format      Format
	// Fixed reports whether the document was migrated.
	Fixed bool
}

// Level returns the compound holding the chunk data for the chunk's format.
func (c *Chunk) Level() *nbt.Document {
	if c.Format == Anvil18 {
		return c.Root
	}
	return c.Root.GetDocumentOrEmpty("Level")
}

// Loader prepares chunks for a running data version. A nil Fixer leaves
// documents as stored.
type Loader struct {
	Fixer          ChunkFixer
	CurrentVersion int
	Logger         *slog.Logger
}

// Prepare migrates root when needed and selects its format.
//
// Chunks without a DataVersion are treated as unknown. They are only
// migrated when they carry Level.Sections, so MCRegion chunks are never
// touched.
func (l *Loader) Prepare(root *nbt.Document) (*Chunk, error) {
	if root == nil {
		return nil, &ChunkStoreError{Message: "nil root"}
	}
	version := int(root.GetIntOr("DataVersion", 0))
	if version == 0 {
		version = fixer.UnknownVersion
	}

	chunk := &Chunk{Root: root, DataVersion: version}
	if l.Fixer != nil && (version > 0 || hasLevelSections(root)) && version < l.CurrentVersion {
		fixed, err := l.Fixer.FixUp(fixer.Chunk, root, version)
		if err != nil {
			return nil, errors.Wrapf(err, "fix chunk from %d", version)
		}
		l.logger().Debug("chunk migrated", "from", version, "to", l.CurrentVersion)
		chunk.Root = fixed
		chunk.DataVersion = l.CurrentVersion
		chunk.Fixed = true
	}

	if chunk.DataVersion >= VersionAnvil18 {
		chunk.Format = Anvil18
		return chunk, nil
	}

	level, ok := chunk.Root.Get("Level")
	if !ok {
		return nil, &ChunkStoreError{Message: "missing root 'Level' tag"}
	}
	levelDoc, ok := level.(*nbt.Document)
	if !ok {
		return nil, &ChunkStoreError{Message: fmt.Sprintf("root 'Level' tag is %s, want compound", level.Type())}
	}

	switch v := chunk.DataVersion; {
	case v >= VersionAnvil17:
		chunk.Format = Anvil17
	case v >= VersionAnvil16:
		chunk.Format = Anvil16
	case v >= VersionAnvil15:
		chunk.Format = Anvil15
	case v >= VersionAnvil13:
		chunk.Format = Anvil13
	case levelDoc.Has("Sections"):
		chunk.Format = Anvil
	default:
		chunk.Format = Old
	}
	return chunk, nil
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func hasLevelSections(root *nbt.Document) bool {
	level, ok := root.GetDocument("Level")
	return ok && level.HasType("Sections", nbt.TagList)
}

// ReadCompound reads one named binary document from the stream returned by
// open and closes it.
func ReadCompound(open func() (io.ReadCloser, error)) (*nbt.Document, error) {
	rc, err := open()
	if err != nil {
		return nil, errors.NewIO("open", "", err)
	}
	defer rc.Close()

	_, doc, err := nbt.ReadNamed(rc)
	if err != nil {
		return nil, &ChunkStoreError{Message: "read compound: " + err.Error()}
	}
	return doc, nil
}
