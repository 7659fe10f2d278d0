// Package optional contains a safer alternative to pointers for
// representing values that may or may not be present.
package optional

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/ooni/geoquery/internal/runtimex"
)

// Value is an optional value. The zero value of this structure
// is equivalent to the one you get when calling [None].
type Value[T any] struct {
	// indirect is the indirect pointer to the value.
	indirect *T
}

// None constructs an empty value.
func None[T any]() Value[T] {
	return Value[T]{nil}
}

// Some creates some value. As a special case, if T is a pointer
// and the given value is nil, this function returns [None].
func Some[T any](value T) Value[T] {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return None[T]()
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return None[T]()
		}
	}
	return Value[T]{&value}
}

// IsNone returns whether this [Value] is empty.
func (v Value[T]) IsNone() bool {
	return v.indirect == nil
}

// Unwrap returns the underlying value or panics. In case of
// panic, the value passed to panic is an error.
func (v Value[T]) Unwrap() T {
	runtimex.Assert(!v.IsNone(), "is none")
	return *v.indirect
}

// UnwrapOr returns the fallback if the [Value] is empty.
func (v Value[T]) UnwrapOr(fallback T) T {
	if v.IsNone() {
		return fallback
	}
	return v.Unwrap()
}

var nullJSON = []byte("null")

// MarshalJSON implements json.Marshaler. An empty value serializes
// to null and otherwise we serialize the underlying value.
func (v Value[T]) MarshalJSON() ([]byte, error) {
	if v.IsNone() {
		return nullJSON, nil
	}
	return json.Marshal(*v.indirect)
}

// UnmarshalJSON implements json.Unmarshaler. A null input produces
// an empty value and otherwise we unmarshal into the underlying type.
func (v *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, nullJSON) {
		v.indirect = nil
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*v = Some(value)
	return nil
}

// Equal returns whether two values are both empty or both contain deeply
// equal values. Having this method allows go-cmp to compare structs
// containing optional values.
func (v Value[T]) Equal(other Value[T]) bool {
	if v.IsNone() || other.IsNone() {
		return v.IsNone() == other.IsNone()
	}
	return reflect.DeepEqual(*v.indirect, *other.indirect)
}
