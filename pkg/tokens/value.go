package tokens

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gnana997/stylesync/pkg/color"
)

// Kind discriminates the Value variants.
type Kind string

const (
	KindColor   Kind = "color"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
	KindAlias   Kind = "alias"
)

// Value is a token value: a color, number, string, boolean, or an alias to
// another variable. Exactly one payload field is meaningful, chosen by Kind.
type Value struct {
	Kind    Kind
	Color   color.Color
	Number  float64
	String  string
	Bool    bool
	AliasID string
}

// ColorValue returns a color Value.
func ColorValue(c color.Color) Value { return Value{Kind: KindColor, Color: c} }

// NumberValue returns a numeric Value.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{Kind: KindString, String: s} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// AliasValue returns a Value pointing at another variable.
func AliasValue(id string) Value { return Value{Kind: KindAlias, AliasID: id} }

// IsAlias reports whether v references another variable.
func (v Value) IsAlias() bool { return v.Kind == KindAlias }

type aliasJSON struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

const aliasType = "VARIABLE_ALIAS"

// MarshalJSON encodes colors as {r,g,b,a}, scalars as bare JSON values and
// aliases as {"type":"VARIABLE_ALIAS","id":...}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindColor:
		return json.Marshal(v.Color)
	case KindNumber:
		return json.Marshal(v.Number)
	case KindString:
		return json.Marshal(v.String)
	case KindBoolean:
		return json.Marshal(v.Bool)
	case KindAlias:
		return json.Marshal(aliasJSON{Type: aliasType, ID: v.AliasID})
	default:
		return nil, fmt.Errorf("tokens: cannot encode value of kind %q", v.Kind)
	}
}

// UnmarshalJSON discriminates by JSON shape. A color object without "a" is opaque.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("tokens: empty value")
	}
	switch data[0] {
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return err
		}
		if _, ok := probe["type"]; ok {
			var a aliasJSON
			if err := json.Unmarshal(data, &a); err != nil {
				return err
			}
			if a.Type != aliasType {
				return fmt.Errorf("tokens: unsupported value object type %q", a.Type)
			}
			*v = AliasValue(a.ID)
			return nil
		}
		c, err := decodeColor(data, probe)
		if err != nil {
			return err
		}
		*v = ColorValue(c)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case 'n':
		return fmt.Errorf("tokens: null value")
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("tokens: unsupported value %s: %w", data, err)
		}
		*v = NumberValue(n)
		return nil
	}
}

func decodeColor(data []byte, probe map[string]json.RawMessage) (color.Color, error) {
	for _, ch := range []string{"r", "g", "b"} {
		if _, ok := probe[ch]; !ok {
			return color.Color{}, fmt.Errorf("tokens: color object missing %q channel", ch)
		}
	}
	c := color.Color{A: 1}
	if err := json.Unmarshal(data, &c); err != nil {
		return color.Color{}, err
	}
	return c, nil
}

// ShapeOf names the kind a raw JSON value would decode to, for error
// messages. It never fails: unknown shapes are named by their JSON type.
func ShapeOf(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "nothing"
	}
	switch raw[0] {
	case '{':
		var v Value
		if err := v.UnmarshalJSON(raw); err == nil {
			return string(v.Kind)
		}
		return "object"
	case '[':
		return "array"
	case '"':
		return string(KindString)
	case 't', 'f':
		return string(KindBoolean)
	case 'n':
		return "null"
	default:
		return string(KindNumber)
	}
}
