// Package blockstate converts between the compact block-state text form
// (minecraft:oak_stairs[facing=east,half=top]) and its document form, a
// compound with a Name string and an optional Properties compound.
package blockstate

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/legacyfix/core/errors"
	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

// Field names of the document form.
const (
	NameKey       = "Name"
	PropertiesKey = "Properties"
)

// stateGrammar is the participle grammar for block-state strings.
// Examples: "minecraft:stone", "minecraft:chest[facing=north,waterlogged=false]"
//
//nolint:govet // participle grammar tags are not standard struct tags
type stateGrammar struct {
	Name  string         `@Ident`
	Props *propertyBlock `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type propertyBlock struct {
	Open  bool            `@"["`
	Pairs []*propertyPair `( @@ ( "," @@ )* )? "]"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type propertyPair struct {
	Key   string `@Ident "="`
	Value string `@Ident?`
}

var stateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[^\[\],=]+`},
	{Name: "Punct", Pattern: `[\[\],=]`},
})

var stateParser = participle.MustBuild[stateGrammar](
	participle.Lexer(stateLexer),
)

// Decode parses s into a document. The text before the first '[' becomes
// Name; each k=v pair inside the brackets becomes a string in Properties.
func Decode(s string) (*nbt.Document, error) {
	if s == "" {
		return nil, errors.NewParse("block state", "", "empty string")
	}
	parsed, err := stateParser.ParseString("", s)
	if err != nil {
		return nil, &errors.ParseError{Format: "block state", Message: err.Error(), Err: err}
	}

	doc := nbt.New()
	doc.PutString(NameKey, parsed.Name)
	if parsed.Props != nil {
		props := nbt.New()
		for _, p := range parsed.Props.Pairs {
			props.PutString(p.Key, p.Value)
		}
		doc.PutDocument(PropertiesKey, props)
	}
	return doc, nil
}

// Encode renders a block-state document. Properties are emitted in the
// document's insertion order, with double quotes stripped from values and no
// escaping, so decoding the result yields the same field set but not
// necessarily the same string.
func Encode(doc *nbt.Document) string {
	var b strings.Builder
	b.WriteString(doc.GetStringOr(NameKey, ""))
	props, ok := doc.GetDocument(PropertiesKey)
	if !ok {
		return b.String()
	}
	b.WriteByte('[')
	for i, k := range props.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(propertyText(props, k), `"`, ""))
	}
	b.WriteByte(']')
	return b.String()
}

func propertyText(props *nbt.Document, key string) string {
	if s, ok := props.GetString(key); ok {
		return s
	}
	v, _ := props.Get(key)
	return nbt.Format(v)
}

// FieldSet returns the Name and property pairs of a decoded state, the
// comparison key for round trips.
func FieldSet(doc *nbt.Document) (string, map[string]string) {
	props := map[string]string{}
	if p, ok := doc.GetDocument(PropertiesKey); ok {
		for _, k := range p.Keys() {
			props[k] = strings.ReplaceAll(propertyText(p, k), `"`, "")
		}
	}
	return doc.GetStringOr(NameKey, ""), props
}
