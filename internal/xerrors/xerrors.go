// Package xerrors wraps errors with call-site information so the logger
// can render where a build stage failed without a panic trace.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxStackDepth = 64

// stacked carries the full call stack captured where the error entered
// our code (New, Newf, WithStack, EnsureTrace).
type stacked struct {
	err error
	pcs []uintptr
}

func (s *stacked) Error() string       { return s.err.Error() }
func (s *stacked) Unwrap() error       { return s.err }
func (s *stacked) StackPCs() []uintptr { return s.pcs }
func (s *stacked) IsXerrorsWrapper()   {}

// annotated adds a message prefix and a single caller PC.
type annotated struct {
	err error
	msg string
	pc  uintptr
}

func (a *annotated) Error() string     { return a.msg + ": " + a.err.Error() }
func (a *annotated) Unwrap() error     { return a.err }
func (a *annotated) PC() uintptr       { return a.pc }
func (a *annotated) IsXerrorsWrapper() {}

// skip counts frames above runtime.Callers and this function
func stackAt(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func pcAt(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(2+skip, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

func New(msg string) error {
	return &stacked{err: errors.New(msg), pcs: stackAt(1)}
}

func Newf(format string, args ...any) error {
	return &stacked{err: fmt.Errorf(format, args...), pcs: stackAt(1)}
}

func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &stacked{err: err, pcs: stackAt(1)}
}

// EnsureTrace attaches a stack unless one is already somewhere in the chain.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && len(hs.StackPCs()) > 0 {
		return err
	}
	return &stacked{err: err, pcs: stackAt(1)}
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &annotated{err: err, msg: msg, pc: pcAt(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &annotated{err: err, msg: fmt.Sprintf(format, args...), pc: pcAt(1)}
}
