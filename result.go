package interact

// Result encapsulates a value along with an error. A batch resolves into one
// Result per submitted transaction.
type Result[T any] struct {
	Value T
	Error error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}

// Get returns the value and error contained in the Result.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Error
}
