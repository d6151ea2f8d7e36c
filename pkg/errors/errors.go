// Package errors marks errors with the place they pass through.
//
//	return xe.Wrap(err)
//
// The message of a wrapped error reads like
//
//	@ pkg.Func "file.go" l42 <- cause
//
// so a chain of Wraps tells where the error has been.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

type ErrWithCaller struct {
	file     string
	line     int
	funcname string
	err      error
}

func (e *ErrWithCaller) File() string {
	return e.file
}

func (e *ErrWithCaller) Line() int {
	return e.line
}

func (e *ErrWithCaller) Error() string {
	return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.funcname, e.file, e.line, e.err.Error())
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

// New creates an error with text, marked with the caller.
func New(text string) error {
	return wrap(errors.New(text), 1)
}

// Wrap marks err with the caller.
//
// nil is not wrapped.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return wrap(err, 1)
}

func wrap(err error, depth int) error {
	pc, file, line, ok := runtime.Caller(depth + 1)
	funcname := "(unknown func)"
	if !ok {
		file = "?"
		line = -1
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		funcname = fn.Name()
	}

	return &ErrWithCaller{funcname: funcname, file: file, line: line, err: err}
}
