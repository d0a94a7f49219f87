// Package patch distinguishes between a JSON field that was omitted, one
// explicitly set to null, and one carrying a value.
package patch

import "encoding/json"

// Field is a tri-state request field. The zero value means "absent".
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a field carrying v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Clear returns a field explicitly set to null.
func Clear[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(b, &f.Value)
}

// HasValue reports whether a non-null value was supplied.
func (f Field[T]) HasValue() bool {
	return f.Set && !f.Null
}

// ApplyPtr handles nullable destinations: null clears, a value replaces.
func (f Field[T]) ApplyPtr(dst **T) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}
