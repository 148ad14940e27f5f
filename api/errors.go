// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and tagged error results for hioload-fiber.

package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// Common errors used across the library.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOverflow        = errors.New("value too large")
	ErrClosed          = errors.New("use of closed resource")
	ErrCanceled        = errors.New("operation canceled")
	ErrNotSupported    = errors.New("operation not supported")
)

// Domain tells which number space an Error's Num belongs to.
type Domain uint8

const (
	// DomainNone marks errors that carry no system number.
	DomainNone Domain = iota
	// DomainErrno is the POSIX errno space.
	DomainErrno
	// DomainOS is the native OS space (Win32 / WSA error codes).
	DomainOS
	// DomainResolve is the address resolution space.
	DomainResolve
)

func (d Domain) String() string {
	switch d {
	case DomainErrno:
		return "errno"
	case DomainOS:
		return "os"
	case DomainResolve:
		return "resolve"
	default:
		return "none"
	}
}

// Error is the tagged result of every fallible operation. It records where
// the failure was raised, the number space and the number itself.
type Error struct {
	Func   string
	File   string
	Line   int
	Domain Domain
	Num    int
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("unknown error")
	}
	if e.Domain != DomainNone {
		fmt.Fprintf(&b, " (%s %d)", e.Domain, e.Num)
	}
	if e.Func != "" {
		fmt.Fprintf(&b, " [%s %s:%d]", e.Func, filepath.Base(e.File), e.Line)
	}
	return b.String()
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a tagged error for op with the caller's location.
func NewError(domain Domain, num int, op string, err error) *Error {
	e := &Error{Domain: domain, Num: num, Op: op, Err: err}
	e.locate(2)
	return e
}

// Errno wraps a system call failure. Errno values land in the errno domain
// on POSIX systems and in the OS domain on Windows. Nil stays nil.
func Errno(op string, err error) error {
	if err == nil {
		return nil
	}
	e := &Error{Op: op, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.Domain = errnoDomain
		e.Num = int(errno)
	}
	e.locate(2)
	return e
}

// Resolve wraps an address resolution failure.
func Resolve(op string, err error) error {
	if err == nil {
		return nil
	}
	e := &Error{Op: op, Err: err, Domain: DomainResolve}
	var dnsErr interface{ Temporary() bool }
	if errors.As(err, &dnsErr) && dnsErr.Temporary() {
		e.Num = 1
	}
	e.locate(2)
	return e
}

// Wrap tags a plain sentinel with the caller's location.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	e := &Error{Op: op, Err: err}
	e.locate(2)
	return e
}

func (e *Error) locate(skip int) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return
	}
	e.File, e.Line = file, line
	if fn := runtime.FuncForPC(pc); fn != nil {
		name := fn.Name()
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		e.Func = name
	}
}

// IsTemporary reports whether err is a would-block or interrupted
// condition.
func IsTemporary(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return errno.Temporary()
}
