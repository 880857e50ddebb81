// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package ex provides errors that carry the stack of the point where they were
// created.
//
// Create an error at its origin with New or Newf, or attach a stack to an
// error coming from a library with Wrap or Wrapf. Intermediate callers simply
// return the error; Wrapf may be used anywhere to add context. Wrapping an
// error that already carries a stack only appends the message, the original
// stack is preserved.
package ex

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

const (
	numSkipFrame = 4 // runtime.Callers, captureStack, wrapOrCreate, {New,Newf,Wrap,Wrapf}
	modPrefix    = "github.com/y1yang0/otel-go-server-decorator/"
	maxFrames    = 30
)

type stackfulError struct {
	message []string
	frame   []string
	wrapped error
}

func (e *stackfulError) Error() string { return strings.Join(e.message, ": ") }
func (e *stackfulError) Unwrap() error { return e.wrapped }

func captureStack() []string {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(numSkipFrame, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	frameList := make([]string, 0, n)
	for cnt := 0; ; cnt++ {
		frame, more := frames.Next()
		fnName := strings.TrimPrefix(frame.Function, modPrefix)
		frameList = append(frameList, fmt.Sprintf("[%d]%s:%d %s", cnt, frame.File, frame.Line, fnName))
		if !more {
			break
		}
	}
	return frameList
}

func wrapOrCreate(previousErr error, format string, args ...any) error {
	var se *stackfulError
	if errors.As(previousErr, &se) {
		if attach := fmt.Sprintf(format, args...); attach != "" {
			se.message = append([]string{attach}, se.message...)
		}
		return previousErr
	}
	errMsg := fmt.Sprintf(format, args...)
	if previousErr != nil {
		if errMsg == "" {
			errMsg = previousErr.Error()
		} else {
			errMsg = errMsg + ": " + previousErr.Error()
		}
	}
	return &stackfulError{
		message: []string{errMsg},
		frame:   captureStack(),
		wrapped: previousErr,
	}
}

// Wrap attaches a stack to err. It returns nil when err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return wrapOrCreate(err, "")
}

// Wrapf attaches a stack and a message to err. It returns nil when err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return wrapOrCreate(err, format, args...)
}

func New(message string) error {
	return wrapOrCreate(nil, "%s", message)
}

func Newf(format string, args ...any) error {
	return wrapOrCreate(nil, format, args...)
}

// Stack returns the frames recorded when err was created, or nil if err does
// not carry a stack.
func Stack(err error) []string {
	var se *stackfulError
	if errors.As(err, &se) {
		return se.frame
	}
	return nil
}

// Fatal prints err with its stack to stderr and exits.
func Fatal(err error) {
	if err == nil {
		panic("fatal error: unknown")
	}
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	if frames := Stack(err); len(frames) > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "Stack:\n%s\n", strings.Join(frames, "\n"))
	}
	os.Exit(1)
}
