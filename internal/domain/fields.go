package domain

import (
	"maps"
	"slices"
)

// FieldID is the identity field every persona snapshot carries.
const FieldID = "id"

// Fields is a full or partial set of persona field values keyed by field name.
type Fields map[string]Value

// Clone returns a shallow copy. Values are immutable, so this is a deep copy in effect.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Overlay returns a copy of f with every key of over applied on top.
func (f Fields) Overlay(over Fields) Fields {
	out := f.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Get returns the value of key, or Null when the key is absent.
func (f Fields) Get(key string) Value {
	if v, ok := f[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// ChangedKeys returns the sorted keys of candidate whose value differs from f.
// Keys missing from f compare against Null.
func (f Fields) ChangedKeys(candidate Fields) []string {
	var keys []string
	for k, v := range candidate {
		if !ValuesEqual(f.Get(k), v) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Diff returns the entries of candidate that differ from f, restricted to keys
// present in both maps.
func (f Fields) Diff(candidate Fields) Fields {
	out := Fields{}
	for k, v := range candidate {
		cur, ok := f[k]
		if !ok {
			continue
		}
		if !ValuesEqual(cur, v) {
			out[k] = v
		}
	}
	return out
}

// Pick returns the subset of f for the given keys that are present in f.
func (f Fields) Pick(keys ...string) Fields {
	out := Fields{}
	for _, k := range keys {
		if v, ok := f[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Keys returns the sorted field names.
func (f Fields) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Without returns a copy of f with the given keys removed.
func (f Fields) Without(keys ...string) Fields {
	out := f.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
