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
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPathLength is the longest path a session accepts, in bytes.
	MaxPathLength = 4096

	// MaxComponentLength is the longest single path element, in bytes.
	MaxComponentLength = 255

	// MaxUserLength is the longest user or group name, in bytes.
	MaxUserLength = 64
)

// ValidationError reports a malformed argument. It matches ErrInvalidArgument.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// ValidatePath checks that p is an absolute, canonical Redfish path.
func ValidatePath(p string) error {
	if p == "" {
		return &ValidationError{Field: "path", Message: "path cannot be empty"}
	}
	if len(p) > MaxPathLength {
		return &ValidationError{
			Field:   "path",
			Message: fmt.Sprintf("path length exceeds maximum of %d bytes", MaxPathLength),
		}
	}
	if p[0] != '/' {
		return &ValidationError{Field: "path", Message: "path must be absolute"}
	}
	if !utf8.ValidString(p) {
		return &ValidationError{Field: "path", Message: "path must be valid UTF-8"}
	}
	if strings.IndexByte(p, 0) >= 0 {
		return &ValidationError{Field: "path", Message: "path cannot contain null bytes"}
	}
	if path.Clean(p) != p {
		return &ValidationError{Field: "path", Message: "path is not canonical"}
	}
	for _, elem := range strings.Split(p[1:], "/") {
		if len(elem) > MaxComponentLength {
			return &ValidationError{
				Field:   "path",
				Message: fmt.Sprintf("path component exceeds maximum of %d bytes", MaxComponentLength),
			}
		}
	}
	return nil
}

// ValidateUser checks a user or group name. field names the argument in the
// error message.
func ValidateUser(field, name string) error {
	if name == "" {
		return &ValidationError{Field: field, Message: "name cannot be empty"}
	}
	if len(name) > MaxUserLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("name exceeds maximum of %d bytes", MaxUserLength),
		}
	}
	if strings.ContainsAny(name, "/:\x00\n") {
		return &ValidationError{Field: field, Message: "name contains invalid characters"}
	}
	return nil
}
