package site

// ResultStatus tags a Result as a success or a failure.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailure ResultStatus = "failure"
)

// Result is the outcome of one stage or provider invocation: either a value
// (possibly produced by a fallback generator) or a classified failure.
// A Result is never mutated after construction.
type Result[T any] struct {
	Status       ResultStatus `json:"status"`
	Value        T            `json:"value,omitempty"`
	UsedFallback bool         `json:"usedFallback"`
	Kind         ErrorKind    `json:"error,omitempty"`
	Err          error        `json:"-"`
}

// Success wraps a produced value.
func Success[T any](v T, usedFallback bool) Result[T] {
	return Result[T]{Status: StatusSuccess, Value: v, UsedFallback: usedFallback}
}

// Failure wraps a classified error.
func Failure[T any](kind ErrorKind, err error) Result[T] {
	return Result[T]{Status: StatusFailure, Kind: kind, Err: err}
}

// OK reports whether the result carries a value.
func (r Result[T]) OK() bool { return r.Status == StatusSuccess }

// Error returns the failure as an error, or nil on success.
func (r Result[T]) Error() error {
	if r.OK() {
		return nil
	}
	if r.Err != nil {
		if KindOf(r.Err) == r.Kind {
			return r.Err
		}
		return NewError(r.Kind, "", r.Err)
	}
	return NewError(r.Kind, "", nil)
}
