package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// PanicError is a recovered panic from a tree worker or a request handler.
type PanicError struct {
	Operation  string
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Format prints the stack captured at recovery time for %+v.
func (e *PanicError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s\n%s", e.Error(), e.StackTrace)
		return
	}
	fmt.Fprint(s, e.Error())
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "PanicError").
		Str("operation", e.Operation).
		Str("panic_value", fmt.Sprint(e.Value))
}

func NewPanicError(operation string, value any) *PanicError {
	return &PanicError{Operation: operation, Value: value, StackTrace: string(debug.Stack())}
}

// Recover turns a panic into a PanicError stored in *err. Defer it with the
// address of a named error result:
//
//	func (f *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "RandomForestRegressor.Fit")
//
// An error already held in *err stays the primary one.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	pe := NewPanicError(operation, r)
	if *err == nil {
		*err = pe
		return
	}
	*err = CombineErrors(*err, pe)
}

// SafeExecute runs fn, returning its error or the PanicError of a panic.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
