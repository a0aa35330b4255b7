package tabstate

import "fmt"

// Option is an explicit presence/absence container. A tab's physical index
// uses it because "no index assigned" is a normal state, not an error.
type Option[T any] struct {
	value T
	valid bool
}

// Some wraps a present value.
func Some[T any](v T) Option[T] {
	return Option[T]{value: v, valid: true}
}

// None returns the absent value.
func None[T any]() Option[T] {
	return Option[T]{}
}

// IsSome reports whether a value is present.
func (o Option[T]) IsSome() bool {
	return o.valid
}

// IsNone reports whether the option is empty.
func (o Option[T]) IsNone() bool {
	return !o.valid
}

// Get returns the contained value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.value, o.valid
}

// OrElse returns the contained value, or fallback when empty.
func (o Option[T]) OrElse(fallback T) T {
	if o.valid {
		return o.value
	}
	return fallback
}

// String renders "Some(v)" or "None" for logs and test output.
func (o Option[T]) String() string {
	if o.valid {
		return fmt.Sprintf("Some(%v)", o.value)
	}
	return "None"
}
