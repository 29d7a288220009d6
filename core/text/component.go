// Package text models chat components and upgrades the legacy text stored in
// sign lines and book pages to component JSON.
package text

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Component is a rich-text node: its own text, optional style and content
// attributes, and child components rendered after it.
type Component struct {
	Text  string
	Extra []Component
	Attrs map[string]any
}

// Literal returns a plain text component.
func Literal(s string) Component {
	return Component{Text: s}
}

// Append adds c as a child of the receiver.
func (c *Component) Append(child Component) {
	c.Extra = append(c.Extra, child)
}

// JSON renders the component in the serialized form. The text field comes
// first, attributes follow in key order, then extra.
func (c Component) JSON() string {
	var buf bytes.Buffer
	c.writeJSON(&buf)
	return buf.String()
}

// MarshalJSON implements json.Marshaler.
func (c Component) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	c.writeJSON(&buf)
	return buf.Bytes(), nil
}

func (c Component) writeJSON(buf *bytes.Buffer) {
	buf.WriteString(`{"text":`)
	writeString(buf, c.Text)

	keys := make([]string, 0, len(c.Attrs))
	for k := range c.Attrs {
		if k == "text" || k == "extra" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		raw, err := json.Marshal(c.Attrs[k])
		if err != nil {
			continue
		}
		buf.WriteByte(',')
		writeString(buf, k)
		buf.WriteByte(':')
		buf.Write(raw)
	}

	if len(c.Extra) > 0 {
		buf.WriteString(`,"extra":[`)
		for i, e := range c.Extra {
			if i > 0 {
				buf.WriteByte(',')
			}
			e.writeJSON(buf)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
}
