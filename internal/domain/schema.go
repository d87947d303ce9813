package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// FieldSpec describes one field of a persona category.
type FieldSpec struct {
	Kind     ValueKind
	Nullable bool
}

// Schema lists the fields that exist for a persona category. It is checked once
// at the service boundary; code behind it relies on the field set being valid.
type Schema struct {
	fields map[string]FieldSpec
}

// NewSchema builds a schema. The identity field is always added as a
// non-nullable string.
func NewSchema(fields map[string]FieldSpec) Schema {
	s := Schema{fields: make(map[string]FieldSpec, len(fields)+1)}
	for name, spec := range fields {
		s.fields[name] = spec
	}
	s.fields[FieldID] = FieldSpec{Kind: KindString}
	return s
}

// DefaultPersonaSchema is the persona field set used when no other schema is configured.
func DefaultPersonaSchema() Schema {
	text := FieldSpec{Kind: KindString}
	optText := FieldSpec{Kind: KindString, Nullable: true}
	flag := FieldSpec{Kind: KindBool}

	return NewSchema(map[string]FieldSpec{
		"username":        optText,
		"display_name":    text,
		"given_names":     text,
		"family_name":     text,
		"title":           optText,
		"name_supplement": optText,
		"pronouns":        optText,
		"birthday":        {Kind: KindDate, Nullable: true},
		"telephone":       optText,
		"mobile":          optText,
		"address":         optText,
		"postal_code":     optText,
		"location":        optText,
		"country":         optText,
		"notes":           optText,
		"balance":         {Kind: KindDecimal, Nullable: true},
		"trial_member":    flag,
		"is_member":       flag,
		"is_searchable":   flag,
		"is_active":       flag,
		"is_cde_realm":    flag,
		"is_event_realm":  flag,
	})
}

// Has reports whether name is a known field.
func (s Schema) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// FieldNames returns the sorted field names.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate checks that every entry of f is a known field of the right kind.
// With complete set, every schema field must also be present.
func (s Schema) Validate(f Fields, complete bool) error {
	var errs []FieldError

	for _, name := range f.Keys() {
		spec, ok := s.fields[name]
		if !ok {
			errs = append(errs, FieldError{Field: name, Message: "unknown field"})
			continue
		}
		v := f.Get(name)
		if v.Kind() == KindNull {
			if !spec.Nullable {
				errs = append(errs, FieldError{Field: name, Message: "must not be null"})
			}
			continue
		}
		if v.Kind() != spec.Kind {
			errs = append(errs, FieldError{
				Field:   name,
				Message: fmt.Sprintf("expected %s, got %s", spec.Kind, v.Kind()),
			})
		}
	}

	if complete {
		for _, name := range s.FieldNames() {
			if _, ok := f[name]; !ok {
				errs = append(errs, FieldError{Field: name, Message: "required"})
			}
		}
	}

	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Complete fills every schema field missing from f with its zero value
// (Null for nullable fields).
func (s Schema) Complete(f Fields) Fields {
	out := f.Clone()
	for name, spec := range s.fields {
		if _, ok := out[name]; ok {
			continue
		}
		out[name] = zeroValue(spec)
	}
	return out
}

// ParseText converts textual input (CLI flags, key=value pairs) into typed
// values according to the schema. "null" yields Null for nullable fields.
func (s Schema) ParseText(raw map[string]string) (Fields, error) {
	out := make(Fields, len(raw))
	var errs []FieldError

	for name, text := range raw {
		spec, ok := s.fields[name]
		if !ok {
			errs = append(errs, FieldError{Field: name, Message: "unknown field"})
			continue
		}
		v, err := parseValue(spec, text)
		if err != nil {
			errs = append(errs, FieldError{Field: name, Message: err.Error()})
			continue
		}
		out[name] = v
	}

	if len(errs) > 0 {
		slices.SortFunc(errs, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
		return nil, NewValidationErrors(errs)
	}
	return out, nil
}

func parseValue(spec FieldSpec, text string) (Value, error) {
	if spec.Nullable && text == "null" {
		return Null{}, nil
	}
	switch spec.Kind {
	case KindString:
		return String(text), nil
	case KindInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer")
		}
		return Int(n), nil
	case KindDecimal:
		d, err := NewDecimal(text)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal")
		}
		return d, nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean")
		}
		return Bool(b), nil
	case KindDate:
		d, err := ParseDate(text)
		if err != nil {
			return nil, fmt.Errorf("invalid date, want YYYY-MM-DD")
		}
		return d, nil
	}
	return nil, fmt.Errorf("unsupported kind %s", spec.Kind)
}

func zeroValue(spec FieldSpec) Value {
	if spec.Nullable {
		return Null{}
	}
	switch spec.Kind {
	case KindString:
		return String("")
	case KindInt:
		return Int(0)
	case KindDecimal:
		return MustDecimal("0")
	case KindBool:
		return Bool(false)
	}
	return Null{}
}
