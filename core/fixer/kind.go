package fixer

import (
	"strings"

	"github.com/FocuswithJustin/legacyfix/core/errors"
)

// Kind identifies a document category. Each kind has its own converter and
// inspector pipelines.
type Kind int

// Document kinds.
const (
	Level Kind = iota
	Player
	Chunk
	BlockEntity
	Entity
	ItemInstance
	Options
	Structure

	kindCount
)

// TypeToken names a type at the modern engine boundary.
type TypeToken string

var kindNames = [kindCount]string{
	"Level", "Player", "Chunk", "BlockEntity", "Entity", "ItemInstance", "Options", "Structure",
}

var kindTokens = [kindCount]TypeToken{
	"level", "player", "chunk", "block_entity", "entity", "item_stack", "options", "structure",
}

// Kinds returns every document kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, kindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) valid() bool { return k >= 0 && k < kindCount }

func (k Kind) String() string {
	if !k.valid() {
		return "Kind(?)"
	}
	return kindNames[k]
}

// TypeToken returns the modern engine's token for k.
func (k Kind) TypeToken() TypeToken {
	if !k.valid() {
		return ""
	}
	return kindTokens[k]
}

// ParseKind accepts a kind name (case-insensitive) or its type token.
func ParseKind(s string) (Kind, error) {
	for i := Kind(0); i < kindCount; i++ {
		if strings.EqualFold(s, kindNames[i]) || s == string(kindTokens[i]) {
			return i, nil
		}
	}
	return 0, errors.NewValidation("kind", "unknown document kind "+s)
}

// KindForToken maps a type token back to its legacy kind.
func KindForToken(t TypeToken) (Kind, bool) {
	for i := Kind(0); i < kindCount; i++ {
		if kindTokens[i] == t {
			return i, true
		}
	}
	return 0, false
}

// ValueKind identifies a bare string value migrated outside a document.
type ValueKind int

// Value kinds.
const (
	BlockState ValueKind = iota
	ItemType
	Biome

	valueKindCount
)

var valueKindNames = [valueKindCount]string{"BlockState", "ItemType", "Biome"}

var valueKindTokens = [valueKindCount]TypeToken{"block_state", "item_name", "biome"}

// ValueKinds returns every value kind in declaration order.
func ValueKinds() []ValueKind {
	return []ValueKind{BlockState, ItemType, Biome}
}

func (k ValueKind) valid() bool { return k >= 0 && k < valueKindCount }

func (k ValueKind) String() string {
	if !k.valid() {
		return "ValueKind(?)"
	}
	return valueKindNames[k]
}

// TypeToken returns the modern engine's token for k.
func (k ValueKind) TypeToken() TypeToken {
	if !k.valid() {
		return ""
	}
	return valueKindTokens[k]
}

// ParseValueKind accepts a value kind name (case-insensitive) or its token.
func ParseValueKind(s string) (ValueKind, error) {
	for i := ValueKind(0); i < valueKindCount; i++ {
		if strings.EqualFold(s, valueKindNames[i]) || s == string(valueKindTokens[i]) {
			return i, nil
		}
	}
	return 0, errors.NewValidation("value_kind", "unknown value kind "+s)
}

// ValueKindForToken maps a type token back to its value kind.
func ValueKindForToken(t TypeToken) (ValueKind, bool) {
	for i := ValueKind(0); i < valueKindCount; i++ {
		if valueKindTokens[i] == t {
			return i, true
		}
	}
	return 0, false
}
