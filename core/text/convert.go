package text

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/legacyfix/core/errors"
)

// contentKeys are the fields that give an object component its content. An
// object with none of them is not a component.
var contentKeys = []string{"text", "translate", "score", "selector", "keybind", "nbt"}

// ConvertLegacy upgrades one stored line of legacy text to component JSON.
//
// Empty input and the literal "null" become an empty component. Input not
// wrapped in double quotes or braces is taken as plain text. Otherwise the
// decoders are tried in order: simple (primitives and arrays), strict
// objects, then the lenient grammar. If every decoder fails the raw input is
// kept as plain text. The result is always valid component JSON.
func ConvertLegacy(s string) string {
	return Parse(s).JSON()
}

// Parse is ConvertLegacy without the final serialization.
func Parse(s string) Component {
	if s == "" || s == "null" {
		return Literal("")
	}
	if !wrapped(s) {
		return Literal(s)
	}
	if c, err := decodeSimple(s); err == nil {
		return c
	}
	if c, err := decodeStrict(s); err == nil {
		return c
	}
	if c, err := decodeLenient(s); err == nil {
		return c
	}
	return Literal(s)
}

func wrapped(s string) bool {
	if len(s) < 2 {
		return s == `"`
	}
	first, last := s[0], s[len(s)-1]
	return (first == '"' && last == '"') || (first == '{' && last == '}')
}

// decodeSimple accepts JSON primitives and arrays of them. Array elements are
// flattened onto the first element.
func decodeSimple(s string) (Component, error) {
	v, err := decodeJSON(s)
	if err != nil {
		return Component{}, err
	}
	c, ok, err := simpleValue(v)
	if err != nil {
		return Component{}, err
	}
	if !ok {
		// An empty array decodes to nothing.
		return Literal(""), nil
	}
	return c, nil
}

func simpleValue(v any) (Component, bool, error) {
	switch x := v.(type) {
	case []any:
		var base Component
		found := false
		for _, e := range x {
			c, ok, err := simpleValue(e)
			if err != nil {
				return Component{}, false, err
			}
			if !ok {
				continue
			}
			if !found {
				base, found = c, true
			} else {
				base.Append(c)
			}
		}
		return base, found, nil
	case map[string]any:
		return Component{}, false, errors.NewParse("component", "", "object in simple form")
	case nil:
		return Component{}, false, errors.NewParse("component", "", "null element")
	default:
		return Literal(primitiveText(x)), true, nil
	}
}

// decodeStrict accepts standard JSON describing a component object.
func decodeStrict(s string) (Component, error) {
	v, err := decodeJSON(s)
	if err != nil {
		return Component{}, err
	}
	return fromValue(v)
}

func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &errors.ParseError{Format: "JSON", Message: err.Error(), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.NewParse("JSON", "", "trailing data")
	}
	return v, nil
}

// fromValue builds a component from a decoded JSON tree.
func fromValue(v any) (Component, error) {
	switch x := v.(type) {
	case map[string]any:
		return fromObject(x)
	case []any:
		if len(x) == 0 {
			return Component{}, errors.NewParse("component", "", "empty array")
		}
		base, err := fromValue(x[0])
		if err != nil {
			return Component{}, err
		}
		for _, e := range x[1:] {
			c, err := fromValue(e)
			if err != nil {
				return Component{}, err
			}
			base.Append(c)
		}
		return base, nil
	case nil:
		return Component{}, errors.NewParse("component", "", "null component")
	default:
		return Literal(primitiveText(x)), nil
	}
}

func fromObject(m map[string]any) (Component, error) {
	hasContent := false
	for _, k := range contentKeys {
		if _, ok := m[k]; ok {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return Component{}, errors.NewParse("component", "", "object has no content field")
	}

	var c Component
	for k, v := range m {
		switch k {
		case "text":
			if _, ok := v.(map[string]any); ok {
				return Component{}, errors.NewParse("component", "", "text is an object")
			}
			if _, ok := v.([]any); ok {
				return Component{}, errors.NewParse("component", "", "text is an array")
			}
			if v != nil {
				c.Text = primitiveText(v)
			}
		case "extra":
			list, ok := v.([]any)
			if !ok || len(list) == 0 {
				return Component{}, errors.NewParse("component", "", "extra must be a non-empty array")
			}
			for _, e := range list {
				child, err := fromValue(e)
				if err != nil {
					return Component{}, err
				}
				c.Append(child)
			}
		default:
			if c.Attrs == nil {
				c.Attrs = make(map[string]any)
			}
			c.Attrs[k] = v
		}
	}
	return c, nil
}

func primitiveText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
