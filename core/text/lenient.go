package text

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/legacyfix/core/errors"
)

// The lenient grammar accepts what hand-edited sign text tends to contain:
// unquoted keys and words, single-quoted strings, and missing or trailing
// commas.
//
//nolint:govet // participle grammar tags are not standard struct tags
type lenientValue struct {
	Object *lenientObject `  @@`
	Array  *lenientArray  `| @@`
	Str    *string        `| @String`
	Number *string        `| @Number`
	Word   *string        `| @Word`
}

//nolint:govet // participle grammar tags are not standard struct tags
type lenientObject struct {
	Fields []*lenientField `"{" ( @@ ","? )* "}"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type lenientField struct {
	Key   string        `@( String | Word | Number ) ":"`
	Value *lenientValue `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type lenientArray struct {
	Items []*lenientValue `"[" ( @@ ","? )* "]"`
}

var lenientLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"|'(\\.|[^'\\])*'`},
	{Name: "Number", Pattern: `-?\d+(\.\d+)?([eE][+-]?\d+)?`},
	{Name: "Word", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Punct", Pattern: `[{}\[\]:,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var lenientParser = participle.MustBuild[lenientValue](
	participle.Lexer(lenientLexer),
	participle.Elide("Whitespace"),
)

// maxDepth bounds object and array nesting accepted by the lenient decoder.
const maxDepth = 512

func decodeLenient(s string) (Component, error) {
	if tooDeep(s) {
		return Component{}, errors.NewParse("component", "", fmt.Sprintf("nesting deeper than %d", maxDepth))
	}
	parsed, err := lenientParser.ParseString("", s)
	if err != nil {
		return Component{}, &errors.ParseError{Format: "component", Message: err.Error(), Err: err}
	}
	v, err := parsed.value()
	if err != nil {
		return Component{}, err
	}
	return fromValue(v)
}

// tooDeep scans brace and bracket depth outside quoted strings.
func tooDeep(s string) bool {
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
			if depth++; depth > maxDepth {
				return true
			}
		case c == '}' || c == ']':
			depth--
		}
	}
	return false
}

// value lowers the parse tree to the same shapes encoding/json produces.
func (v *lenientValue) value() (any, error) {
	switch {
	case v.Object != nil:
		m := make(map[string]any, len(v.Object.Fields))
		for _, f := range v.Object.Fields {
			fv, err := f.Value.value()
			if err != nil {
				return nil, err
			}
			m[unquote(f.Key)] = fv
		}
		return m, nil
	case v.Array != nil:
		out := make([]any, 0, len(v.Array.Items))
		for _, item := range v.Array.Items {
			iv, err := item.value()
			if err != nil {
				return nil, err
			}
			out = append(out, iv)
		}
		return out, nil
	case v.Str != nil:
		return unquote(*v.Str), nil
	case v.Number != nil:
		f, err := strconv.ParseFloat(*v.Number, 64)
		if err != nil {
			return nil, errors.NewParse("component", "", "bad number "+*v.Number)
		}
		return f, nil
	case v.Word != nil:
		switch *v.Word {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return *v.Word, nil
	}
	return nil, errors.NewParse("component", "", "empty value")
}

// unquote strips matching single or double quotes and resolves backslash
// escapes. Unquoted input is returned as is.
func unquote(s string) string {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return s
	}
	body := s[1 : len(s)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if i+4 < len(body) {
				if r, err := strconv.ParseUint(body[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
