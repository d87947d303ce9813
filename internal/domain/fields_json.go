package domain

import (
	"encoding/json"
	"fmt"
)

// valueJSON is the self-describing storage form of a Value:
// {"kind":"date","value":"1990-05-01"}. Null omits the value.
type valueJSON struct {
	Kind  ValueKind       `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes every field in its self-describing form.
func (f Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]valueJSON, len(f))
	for k, v := range f {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = enc
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Fields, len(raw))
	for k, enc := range raw {
		v, err := decodeValue(enc)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	*f = out
	return nil
}

// Plain converts the fields to JSON-friendly primitives for audit records and
// CLI output. Decimals and dates become strings.
func (f Fields) Plain() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = PlainValue(v)
	}
	return out
}

// PlainValue converts a single Value to a primitive.
func PlainValue(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	default:
		return val.String()
	}
}

func encodeValue(v Value) (valueJSON, error) {
	if v == nil {
		return valueJSON{Kind: KindNull}, nil
	}

	var (
		raw []byte
		err error
	)
	switch val := v.(type) {
	case Null:
		return valueJSON{Kind: KindNull}, nil
	case String:
		raw, err = json.Marshal(string(val))
	case Int:
		raw, err = json.Marshal(int64(val))
	case Bool:
		raw, err = json.Marshal(bool(val))
	case Decimal, Date:
		raw, err = json.Marshal(val.String())
	default:
		return valueJSON{}, fmt.Errorf("unknown value type %T", v)
	}
	if err != nil {
		return valueJSON{}, err
	}
	return valueJSON{Kind: v.Kind(), Value: raw}, nil
}

func decodeValue(enc valueJSON) (Value, error) {
	switch enc.Kind {
	case KindNull:
		return Null{}, nil
	case KindString:
		var s string
		if err := json.Unmarshal(enc.Value, &s); err != nil {
			return nil, fmt.Errorf("decode string: %w", err)
		}
		return String(s), nil
	case KindInt:
		var n int64
		if err := json.Unmarshal(enc.Value, &n); err != nil {
			return nil, fmt.Errorf("decode int: %w", err)
		}
		return Int(n), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(enc.Value, &b); err != nil {
			return nil, fmt.Errorf("decode bool: %w", err)
		}
		return Bool(b), nil
	case KindDecimal:
		var s string
		if err := json.Unmarshal(enc.Value, &s); err != nil {
			return nil, fmt.Errorf("decode decimal: %w", err)
		}
		return NewDecimal(s)
	case KindDate:
		var s string
		if err := json.Unmarshal(enc.Value, &s); err != nil {
			return nil, fmt.Errorf("decode date: %w", err)
		}
		return ParseDate(s)
	default:
		return nil, fmt.Errorf("unknown value kind %q", enc.Kind)
	}
}
