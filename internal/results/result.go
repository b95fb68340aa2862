package results

// Empty is the value type of results that carry no payload.
type Empty = struct{}

// Result holds either a value or an error, never both.
type Result[T any] struct {
	value T
	err   *Error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Void returns a successful result without a payload.
func Void() Result[Empty] {
	return Result[Empty]{}
}

// FromError wraps err into a failed result. err must not be nil.
func FromError[T any](err *Error) Result[T] {
	if err == nil {
		panic("results: FromError called with nil error")
	}
	return Result[T]{err: err}
}

// Propagate re-types a failed result.
func Propagate[U, T any](r Result[T]) Result[U] {
	return FromError[U](r.err)
}

func (r Result[T]) HasError() bool { return r.err != nil }

// Err returns the failure or nil on success.
func (r Result[T]) Err() *Error { return r.err }

// Value returns the payload. It panics when the result holds an error.
func (r Result[T]) Value() T {
	if r.err != nil {
		panic("results: value read from failed result: " + r.err.Error())
	}
	return r.value
}

// Unwrap converts the result into the usual (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}
