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

import "io/fs"

// Access is a set of permission bits requested for an operation, expressed
// in the "other" position (r=4, w=2, x=1).
type Access fs.FileMode

const (
	// AccessRead requests read permission.
	AccessRead Access = 0o4

	// AccessWrite requests write permission.
	AccessWrite Access = 0o2

	// AccessExecute requests search permission on a directory.
	AccessExecute Access = 0o1
)

// CheckAccess applies the Redfish permission rules to status on behalf of
// user. The superuser always passes; otherwise the other, owner and group
// bits are consulted in that order. A user is a member of the group that
// bears its own name.
func CheckAccess(user string, status FileStatus, want Access) error {
	if user == SuperuserName {
		return nil
	}
	mode := status.Mode.Perm()
	w := fs.FileMode(want)
	if mode&w == w {
		return nil
	}
	if status.Owner == user && mode&(w<<6) == w<<6 {
		return nil
	}
	if status.Group == user && mode&(w<<3) == w<<3 {
		return nil
	}
	return ErrPermission
}

// CheckOwnership reports whether user may change the metadata of status.
func CheckOwnership(user string, status FileStatus) error {
	if user == SuperuserName || status.Owner == user {
		return nil
	}
	return ErrPermission
}
