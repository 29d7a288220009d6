package blockstate

import (
	"testing"

	"github.com/FocuswithJustin/legacyfix/core/nbt"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantName  string
		wantProps map[string]string
		wantBlock bool
	}{
		{
			name:     "bare",
			input:    "minecraft:stone",
			wantName: "minecraft:stone",
		},
		{
			name:      "properties",
			input:     "minecraft:oak_stairs[facing=east,half=top]",
			wantName:  "minecraft:oak_stairs",
			wantProps: map[string]string{"facing": "east", "half": "top"},
			wantBlock: true,
		},
		{
			name:      "empty brackets",
			input:     "minecraft:chest[]",
			wantName:  "minecraft:chest",
			wantProps: map[string]string{},
			wantBlock: true,
		},
		{
			name:      "empty value",
			input:     "minecraft:sign[rotation=]",
			wantName:  "minecraft:sign",
			wantProps: map[string]string{"rotation": ""},
			wantBlock: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", tt.input, err)
			}
			if got := doc.GetStringOr(NameKey, ""); got != tt.wantName {
				t.Errorf("Name = %q, want %q", got, tt.wantName)
			}
			props, ok := doc.GetDocument(PropertiesKey)
			if ok != tt.wantBlock {
				t.Fatalf("has Properties = %v, want %v", ok, tt.wantBlock)
			}
			if !ok {
				return
			}
			if props.Len() != len(tt.wantProps) {
				t.Errorf("Properties has %d entries, want %d", props.Len(), len(tt.wantProps))
			}
			for k, want := range tt.wantProps {
				if got := props.GetStringOr(k, "<missing>"); got != want {
					t.Errorf("Properties[%s] = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	inputs := []string{
		"",
		"minecraft:chest[facing=north",
		"minecraft:chest[facing]",
		"minecraft:chest[a=b]trailing",
		"[a=b]",
	}
	for _, in := range inputs {
		if _, err := Decode(in); err == nil {
			t.Errorf("Decode(%q) expected error", in)
		}
	}
}

func TestEncode(t *testing.T) {
	doc := nbt.New()
	doc.PutString(NameKey, "minecraft:stone")
	if got := Encode(doc); got != "minecraft:stone" {
		t.Errorf("Encode() = %q, want %q", got, "minecraft:stone")
	}

	props := nbt.New()
	props.PutString("half", "top")
	props.PutString("facing", `"east"`)
	props.PutByte("waterlogged", 0)
	doc.PutDocument(PropertiesKey, props)
	want := "minecraft:stone[half=top,facing=east,waterlogged=0b]"
	if got := Encode(doc); got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestBareNameRoundTrip(t *testing.T) {
	doc, err := Decode("minecraft:stone")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := Encode(doc); got != "minecraft:stone" {
		t.Errorf("Encode(Decode(s)) = %q, want %q", got, "minecraft:stone")
	}
}

func TestRoundTripFieldSet(t *testing.T) {
	inputs := []string{
		"minecraft:stone",
		"minecraft:oak_stairs[facing=east,half=top,shape=straight]",
		"minecraft:redstone_wire[west=none,east=side,power=15,north=up]",
		"custom:thing[a=1]",
	}
	for _, in := range inputs {
		first, err := Decode(in)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", in, err)
		}

		// Rebuild the properties in reverse order so the encoded string
		// differs while the field set stays the same.
		reordered := nbt.New()
		reordered.PutString(NameKey, first.GetStringOr(NameKey, ""))
		if props, ok := first.GetDocument(PropertiesKey); ok {
			rev := nbt.New()
			keys := props.Keys()
			for i := len(keys) - 1; i >= 0; i-- {
				v, _ := props.Get(keys[i])
				rev.Put(keys[i], v)
			}
			reordered.PutDocument(PropertiesKey, rev)
		}

		second, err := Decode(Encode(reordered))
		if err != nil {
			t.Fatalf("Decode(Encode(...)) error = %v", err)
		}
		name1, props1 := FieldSet(first)
		name2, props2 := FieldSet(second)
		if name1 != name2 {
			t.Errorf("%q: Name %q != %q", in, name1, name2)
		}
		if len(props1) != len(props2) {
			t.Errorf("%q: %d properties != %d", in, len(props1), len(props2))
		}
		for k, v := range props1 {
			if props2[k] != v {
				t.Errorf("%q: property %s = %q after round trip, want %q", in, k, props2[k], v)
			}
		}
	}
}
