// Package optional provides a value-or-nothing wrapper without pointers.
package optional

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Optional holds a value of T that may be absent.
type Optional[T any] struct {
	value T
	isSet bool
}

// Some creates a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, isSet: true}
}

// None creates an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// IsSet returns true if the value is present.
func (o Optional[T]) IsSet() bool {
	return o.isSet
}

// Set stores v.
func (o *Optional[T]) Set(v T) {
	o.value = v
	o.isSet = true
}

// Unset clears the value.
func (o *Optional[T]) Unset() {
	var zero T
	o.value = zero
	o.isSet = false
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.isSet
}

// GetOr returns the value or def if absent.
func (o Optional[T]) GetOr(def T) T {
	if o.isSet {
		return o.value
	}
	return def
}

// Unwrap returns the value or panics if absent.
func (o Optional[T]) Unwrap() T {
	if o.isSet {
		return o.value
	}
	panic("optional value is not set")
}

func (o Optional[T]) String() string {
	if !o.isSet {
		return "none"
	}
	return fmt.Sprint(o.value)
}

// CastInt converts between integer optionals.
func CastInt[A, B constraints.Integer](a Optional[A]) (out Optional[B]) {
	if a.IsSet() {
		out.Set(B(a.Unwrap()))
	}
	return out
}
