// Package xerrors wraps errors with call-site PCs or full stacks so the logger
// can report where a failure started.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxDepth = 64

type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }
func (w *withStack) IsXerrorsWrapper()   {}

type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error     { return w.err }
func (w *wrap) PC() uintptr       { return w.pc }
func (w *wrap) IsXerrorsWrapper() {}

// PanicError carries a recovered panic value and the stack of the panicking goroutine.
type PanicError struct {
	Value any
	pcs   []uintptr
}

func (p *PanicError) Error() string {
	switch v := p.Value.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

func (p *PanicError) StackPCs() []uintptr { return p.pcs }

// FromPanic converts a recover() value into an error. It must be called from
// the deferred function so the captured stack includes the panic site.
func FromPanic(v any) error {
	if v == nil {
		return nil
	}
	return &PanicError{Value: v, pcs: captureStack(1)}
}

// captureStack skips runtime.Callers, captureStack and skip more frames.
func captureStack(skip int) []uintptr {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

func withStackSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: captureStack(skip)}
}

func WithStack(err error) error { return withStackSkip(err, 2) }

// EnsureTrace attaches a stack unless something in the chain already carries one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && len(hs.StackPCs()) > 0 {
		return err
	}
	return withStackSkip(err, 2)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: msg, pc: callerPC(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

func New(msg string) error             { return withStackSkip(errors.New(msg), 2) }
func Newf(f string, args ...any) error { return withStackSkip(fmt.Errorf(f, args...), 2) }
