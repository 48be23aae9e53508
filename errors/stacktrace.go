package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// stackTracer is implemented by errors that carry a call stack, as
// produced by the pkg/errors package.
type stackTracer interface {
	error
	StackTrace() errors.StackTrace
}

// stackTrace returns the call stack attached to any error in the cause
// chain, or nil when none was recorded yet.
func stackTrace(err error) errors.StackTrace {
	for ; err != nil; err = cause(err) {
		if st, ok := err.(stackTracer); ok {
			return st.StackTrace()
		}
	}
	return nil
}

func cause(err error) error {
	c, ok := err.(causer)
	if !ok {
		return nil
	}
	return c.Cause()
}

// Format works like pkg/errors, with additions.
//
//	%s is just the error message
//	%+v is the full stack trace
//	%v appends a compressed [filename:line] where the error was created
func (e *wrappedError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		if st := stackTrace(e); st != nil {
			fmt.Fprintf(s, "%+v\n", st)
		}
	}
	fmt.Fprint(s, e.Error())
}

// StackTrace exposes the deepest recorded stack of this error chain. It
// is implemented to cooperate with the pkg/errors tooling.
func (e *wrappedError) StackTrace() errors.StackTrace {
	return stackTrace(e.parent)
}
