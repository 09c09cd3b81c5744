// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

var (
	// Configuration and connection errors

	// ErrConfiguration is returned when required setup is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection is returned when a session cannot be established.
	ErrConnection = errors.New("connection error")

	// ErrNotConnected is returned for operations attempted outside the connected state.
	ErrNotConnected = errors.New("not connected")

	// Namespace errors. The fs sentinels are reused so that callers can test
	// results with the standard library helpers as well.

	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = fs.ErrNotExist

	// ErrAlreadyExists is returned when a path exists and would be overwritten.
	ErrAlreadyExists = fs.ErrExist

	// ErrPermission is returned when the session user may not access a path.
	ErrPermission = fs.ErrPermission

	// ErrNotADirectory is returned when a directory was expected.
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory is returned when a file was expected.
	ErrIsADirectory = errors.New("is a directory")

	// ErrDirectoryNotEmpty is returned by a non-recursive unlink of a populated directory.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// Argument errors

	// ErrInvalidArgument is returned for bad caller-supplied ranges or arguments.
	ErrInvalidArgument = fs.ErrInvalid

	// ErrIndexOutOfBounds is returned when an offset/length pair does not fit a buffer.
	ErrIndexOutOfBounds = errors.New("index out of bounds")

	// Stream errors

	// ErrEndOfFile is returned when a read-fully operation came up short.
	ErrEndOfFile = io.ErrUnexpectedEOF

	// ErrClosedStream is returned for use of a stream after Close.
	ErrClosedStream = fs.ErrClosed

	// Lifecycle errors

	// ErrIllegalState is returned when a component is used outside its lifecycle.
	ErrIllegalState = errors.New("illegal state")

	// ErrNotImplemented is returned by operations the protocol does not support.
	ErrNotImplemented = errors.New("not implemented")

	// ErrIO is the catch-all for session failures not otherwise classified.
	ErrIO = errors.New("i/o error")
)

// taxonomy lists every sentinel a classified error may match.
var taxonomy = []error{
	ErrConfiguration,
	ErrConnection,
	ErrNotConnected,
	ErrNotFound,
	ErrAlreadyExists,
	ErrPermission,
	ErrNotADirectory,
	ErrIsADirectory,
	ErrInvalidArgument,
	ErrIndexOutOfBounds,
	ErrEndOfFile,
	ErrClosedStream,
	ErrIllegalState,
	ErrNotImplemented,
	ErrIO,
}

// Classify returns err unchanged when it already belongs to the error
// taxonomy, and otherwise marks it as ErrIO. io.EOF and context errors pass
// through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, sentinel := range taxonomy {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

// PathError records a failed namespace operation and the path it targeted.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "redfish " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError classifies err and wraps it with the operation and path.
func NewPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: Classify(err)}
}

// StreamError records a failed stream operation and the position at which it
// was attempted.
type StreamError struct {
	Op     string
	Path   string
	Offset int64
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("redfish %s %s at offset %d: %v", e.Op, e.Path, e.Offset, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// NewStreamError classifies err and wraps it with the operation, path and offset.
func NewStreamError(op, path string, offset int64, err error) error {
	if err == nil {
		return nil
	}
	return &StreamError{Op: op, Path: path, Offset: offset, Err: Classify(err)}
}
