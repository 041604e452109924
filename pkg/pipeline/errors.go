package pipeline

import (
	"fmt"
	"runtime/debug"
)

// PanicError is the cause attached to the 500 response of a flow whose
// handler panicked.
type PanicError struct {
	Stage string
	Value any
	Stack []byte
}

func newPanicError(stage string, v any) *PanicError {
	return &PanicError{Stage: stage, Value: v, Stack: debug.Stack()}
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("pipeline: panic in stage %s: %v", e.Stage, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
