package bridge

// Response is the outcome of one outbound Post: either a success value
// (possibly nil) or a failure.
type Response struct {
	value any
	err   *Error
}

// Success wraps the value returned by the remote context.
func Success(value any) Response {
	return Response{value: value}
}

// Failure wraps a bridge error.
func Failure(err *Error) Response {
	return Response{err: err}
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	return r.err == nil
}

// Value returns the success value; nil for failures.
func (r Response) Value() any {
	return r.value
}

// Err returns the failure; nil for successes.
func (r Response) Err() *Error {
	return r.err
}
