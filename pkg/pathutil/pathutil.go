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

// Package pathutil resolves Redfish paths against a working directory.
// Nothing in this package performs I/O.
package pathutil

import (
	"path"
	"strings"
)

// Separator is the Redfish path separator.
const Separator = "/"

// IsAbs reports whether p starts at the filesystem root.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, Separator)
}

// Resolve returns the canonical absolute form of p. Relative paths are
// joined to cwd first; an empty p resolves to cwd. The result never contains
// "." or ".." elements and never ends in a separator unless it is the root.
func Resolve(p, cwd string) string {
	if !IsAbs(p) {
		base := cwd
		if !IsAbs(base) {
			base = Separator + base
		}
		p = base + Separator + p
	}
	return path.Clean(p)
}

// Parent returns the directory enclosing p. The parent of the root is the root.
func Parent(p string) string {
	return path.Dir(path.Clean(p))
}

// Base returns the last element of p.
func Base(p string) string {
	return path.Base(p)
}

// Join joins elements onto an absolute directory and cleans the result.
func Join(dir string, elem ...string) string {
	return path.Clean(path.Join(append([]string{Separator, dir}, elem...)...))
}

// Split returns the elements of a canonical absolute path. The root has none.
func Split(p string) []string {
	p = strings.Trim(path.Clean(p), Separator)
	if p == "" {
		return nil
	}
	return strings.Split(p, Separator)
}

// IsDescendant reports whether p lies strictly below dir.
func IsDescendant(p, dir string) bool {
	if dir == Separator {
		return p != Separator
	}
	return strings.HasPrefix(p, dir+Separator)
}

// Rebase moves p from below oldDir to the same position below newDir.
func Rebase(p, oldDir, newDir string) string {
	if p == oldDir {
		return newDir
	}
	return Join(newDir, strings.TrimPrefix(p, oldDir+Separator))
}
