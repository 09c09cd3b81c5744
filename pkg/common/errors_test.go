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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), ErrNotFound},
		{"already exists", ErrAlreadyExists, ErrAlreadyExists},
		{"not a directory", ErrNotADirectory, ErrNotADirectory},
		{"validation", &ValidationError{Field: "path", Message: "bad"}, ErrInvalidArgument},
		{"unclassified", errors.New("disk on fire"), ErrIO},
		{"directory not empty", ErrDirectoryNotEmpty, ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Same(t, io.EOF, Classify(io.EOF))
	assert.Equal(t, context.Canceled, Classify(context.Canceled))
	assert.NotErrorIs(t, Classify(context.DeadlineExceeded), ErrIO)
}

func TestStandardLibraryAliases(t *testing.T) {
	assert.ErrorIs(t, ErrNotFound, fs.ErrNotExist)
	assert.ErrorIs(t, ErrAlreadyExists, fs.ErrExist)
	assert.ErrorIs(t, ErrPermission, fs.ErrPermission)
	assert.ErrorIs(t, ErrClosedStream, fs.ErrClosed)
	assert.ErrorIs(t, ErrEndOfFile, io.ErrUnexpectedEOF)
}

func TestPathError(t *testing.T) {
	err := NewPathError("open", "/a/b", ErrNotFound)
	require.Error(t, err)

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "open", pe.Op)
	assert.Equal(t, "/a/b", pe.Path)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "redfish open /a/b")

	assert.NoError(t, NewPathError("open", "/a", nil))
}

func TestStreamError(t *testing.T) {
	err := NewStreamError("pread", "/f", 10, errors.New("connection reset"))

	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(10), se.Offset)
	assert.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "at offset 10")
}
