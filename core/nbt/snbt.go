package nbt

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/legacyfix/core/errors"
)

// snbtGrammar is the participle grammar for stringified documents.
// Examples: `{id:"minecraft:stone",Count:1b}`, `[I;1,2,3]`, `['a','b']`
//
//nolint:govet // participle grammar tags are not standard struct tags
type snbtValue struct {
	Compound *snbtCompound `  @@`
	Array    *snbtArray    `| @@`
	List     *snbtList     `| @@`
	Quoted   *string       `| @String`
	Word     *string       `| @Word`
}

//nolint:govet // participle grammar tags are not standard struct tags
type snbtCompound struct {
	Entries []*snbtEntry `"{" ( @@ ( "," @@ )* )? "}"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type snbtEntry struct {
	Key   string     `@( String | Word ) ":"`
	Value *snbtValue `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type snbtArray struct {
	Kind  string   `@ArrayOpen`
	Items []string `( @Word ( "," @Word )* )? "]"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type snbtList struct {
	Items []*snbtValue `"[" ( @@ ( "," @@ )* )? "]"`
}

// snbtLexer tokenizes stringified documents. Numbers are lexed as words and
// classified after parsing, so an unquoted value like 12ab stays a string.
var snbtLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`},
	{Name: "ArrayOpen", Pattern: `\[[BIL];`},
	{Name: "Word", Pattern: `[A-Za-z0-9._+\-]+`},
	{Name: "Punct", Pattern: `[{}\[\],:]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var snbtParser = participle.MustBuild[snbtValue](
	participle.Lexer(snbtLexer),
	participle.Elide("Whitespace"),
)

var (
	floatPattern   = regexp.MustCompile(`(?i)^[-+]?(?:[0-9]+[.]?|[0-9]*[.][0-9]+)(?:e[-+]?[0-9]+)?f$`)
	bytePattern    = regexp.MustCompile(`(?i)^[-+]?(?:0|[1-9][0-9]*)b$`)
	longPattern    = regexp.MustCompile(`(?i)^[-+]?(?:0|[1-9][0-9]*)l$`)
	shortPattern   = regexp.MustCompile(`(?i)^[-+]?(?:0|[1-9][0-9]*)s$`)
	intPattern     = regexp.MustCompile(`^[-+]?(?:0|[1-9][0-9]*)$`)
	doublePattern  = regexp.MustCompile(`(?i)^[-+]?(?:[0-9]+[.]?|[0-9]*[.][0-9]+)(?:e[-+]?[0-9]+)?d$`)
	decimalPattern = regexp.MustCompile(`(?i)^[-+]?(?:[0-9]+[.]|[0-9]*[.][0-9]+)(?:e[-+]?[0-9]+)?$`)
	bareKey        = regexp.MustCompile(`^[A-Za-z0-9._+\-]+$`)
)

// ParseSNBT parses a stringified compound such as `{id:"minecraft:stone"}`.
func ParseSNBT(s string) (*Document, error) {
	v, err := ParseValue(s)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*Document)
	if !ok {
		return nil, errors.NewParse("SNBT", "", "root is a "+v.Type().String()+", want compound")
	}
	return d, nil
}

// ParseValue parses any stringified value.
func ParseValue(s string) (Value, error) {
	if exceedsDepth(s, maxDepth) {
		return nil, errors.NewParse("SNBT", "", fmt.Sprintf("nesting deeper than %d", maxDepth))
	}
	parsed, err := snbtParser.ParseString("", strings.TrimSpace(s))
	if err != nil {
		return nil, &errors.ParseError{Format: "SNBT", Message: err.Error(), Err: err}
	}
	return parsed.build()
}

// exceedsDepth reports whether braces and brackets outside quoted strings
// nest deeper than limit. The parser recurses once per level, so this runs
// before it.
func exceedsDepth(s string, limit int) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '{' || c == '[':
			depth++
			if depth > limit {
				return true
			}
		case c == '}' || c == ']':
			depth--
		}
	}
	return false
}

func (v *snbtValue) build() (Value, error) {
	switch {
	case v.Compound != nil:
		d := New()
		for _, e := range v.Compound.Entries {
			child, err := e.Value.build()
			if err != nil {
				return nil, err
			}
			key := e.Key
			if isQuoted(key) {
				key = unquote(key)
			}
			d.Put(key, child)
		}
		return d, nil
	case v.Array != nil:
		return v.Array.build()
	case v.List != nil:
		l := NewList()
		for _, item := range v.List.Items {
			child, err := item.build()
			if err != nil {
				return nil, err
			}
			if l.Len() > 0 && child.Type() != l.ElemType() {
				return nil, errors.NewParse("SNBT", "",
					"mixed list element types "+l.ElemType().String()+" and "+child.Type().String())
			}
			l.Append(child)
		}
		return l, nil
	case v.Quoted != nil:
		return String(unquote(*v.Quoted)), nil
	case v.Word != nil:
		return classifyWord(*v.Word), nil
	}
	return nil, errors.NewParse("SNBT", "", "empty value")
}

func (a *snbtArray) build() (Value, error) {
	switch a.Kind[1] {
	case 'B':
		out := make(ByteArray, 0, len(a.Items))
		for _, w := range a.Items {
			n, err := strconv.ParseInt(strings.TrimRight(w, "bB"), 10, 8)
			if err != nil {
				return nil, errors.NewParse("SNBT", "", "bad byte array element "+w)
			}
			out = append(out, int8(n))
		}
		return out, nil
	case 'I':
		out := make(IntArray, 0, len(a.Items))
		for _, w := range a.Items {
			n, err := strconv.ParseInt(w, 10, 32)
			if err != nil {
				return nil, errors.NewParse("SNBT", "", "bad int array element "+w)
			}
			out = append(out, int32(n))
		}
		return out, nil
	default:
		out := make(LongArray, 0, len(a.Items))
		for _, w := range a.Items {
			n, err := strconv.ParseInt(strings.TrimRight(w, "lL"), 10, 64)
			if err != nil {
				return nil, errors.NewParse("SNBT", "", "bad long array element "+w)
			}
			out = append(out, n)
		}
		return out, nil
	}
}

// classifyWord turns an unquoted token into a typed number, a boolean byte,
// or a string when it is neither. Out of range numbers stay strings.
func classifyWord(w string) Value {
	body := w[:len(w)-1]
	if v, ok := nonFinite(body, w[len(w)-1]); ok {
		return v
	}
	switch {
	case floatPattern.MatchString(w):
		if f, err := strconv.ParseFloat(body, 32); err == nil {
			return Float(f)
		}
	case bytePattern.MatchString(w):
		if n, err := strconv.ParseInt(body, 10, 8); err == nil {
			return Byte(n)
		}
	case longPattern.MatchString(w):
		if n, err := strconv.ParseInt(body, 10, 64); err == nil {
			return Long(n)
		}
	case shortPattern.MatchString(w):
		if n, err := strconv.ParseInt(body, 10, 16); err == nil {
			return Short(n)
		}
	case intPattern.MatchString(w):
		if n, err := strconv.ParseInt(w, 10, 32); err == nil {
			return Int(n)
		}
	case doublePattern.MatchString(w):
		if f, err := strconv.ParseFloat(body, 64); err == nil {
			return Double(f)
		}
	case decimalPattern.MatchString(w):
		if f, err := strconv.ParseFloat(w, 64); err == nil {
			return Double(f)
		}
	case strings.EqualFold(w, "true"):
		return Byte(1)
	case strings.EqualFold(w, "false"):
		return Byte(0)
	}
	return String(w)
}

// nonFinite reads back the NaN and infinity words formatFloat writes, such
// as NaNf or -Infd.
func nonFinite(body string, suffix byte) (Value, bool) {
	var f float64
	switch body {
	case "NaN":
		f = math.NaN()
	case "Inf", "+Inf":
		f = math.Inf(1)
	case "-Inf":
		f = math.Inf(-1)
	default:
		return nil, false
	}
	switch suffix {
	case 'f', 'F':
		return Float(f), true
	case 'd', 'D':
		return Double(f), true
	}
	return nil, false
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// String renders the document in stringified form.
func (d *Document) String() string { return Format(d) }

// String renders the list in stringified form.
func (l *List) String() string { return Format(l) }

// Format renders v in stringified form. Compound fields keep insertion order.
func Format(v Value) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

func writeValue(b *strings.Builder, v Value) {
	switch x := v.(type) {
	case Byte:
		b.WriteString(strconv.FormatInt(int64(x), 10))
		b.WriteByte('b')
	case Short:
		b.WriteString(strconv.FormatInt(int64(x), 10))
		b.WriteByte('s')
	case Int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case Long:
		b.WriteString(strconv.FormatInt(int64(x), 10))
		b.WriteByte('L')
	case Float:
		b.WriteString(formatFloat(float64(x), 32))
		b.WriteByte('f')
	case Double:
		b.WriteString(formatFloat(float64(x), 64))
		b.WriteByte('d')
	case String:
		writeQuoted(b, string(x))
	case ByteArray:
		b.WriteString("[B;")
		for i, n := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(int64(n), 10))
			b.WriteByte('B')
		}
		b.WriteByte(']')
	case IntArray:
		b.WriteString("[I;")
		for i, n := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(int64(n), 10))
		}
		b.WriteByte(']')
	case LongArray:
		b.WriteString("[L;")
		for i, n := range x {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(n, 10))
			b.WriteByte('L')
		}
		b.WriteByte(']')
	case *List:
		b.WriteByte('[')
		for i, item := range x.items {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, item)
		}
		b.WriteByte(']')
	case *Document:
		b.WriteByte('{')
		for i, k := range x.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if bareKey.MatchString(k) {
				b.WriteString(k)
			} else {
				writeQuoted(b, k)
			}
			b.WriteByte(':')
			writeValue(b, x.values[k])
		}
		b.WriteByte('}')
	}
}

// formatFloat keeps a decimal point on integral values so 1.0f does not read
// back as an int when the suffix is dropped by hand-edited files.
func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eENI") {
		s += ".0"
	}
	return s
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
}
