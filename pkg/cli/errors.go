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

package cli

import "errors"

var (
	// ErrConfigFileRequired is returned when no Redfish configuration file
	// is given by flag, environment or fishtool config.
	ErrConfigFileRequired = errors.New("a Redfish configuration file is required (--config)")

	// ErrUnsupportedOutputFormat is returned when an unsupported output format is specified.
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")

	// ErrInvalidMode is returned when a permission argument is not octal.
	ErrInvalidMode = errors.New("invalid mode: expected octal permission bits such as 0644")

	// ErrInvalidOwner is returned when a chown argument has neither owner nor group.
	ErrInvalidOwner = errors.New("invalid owner: expected owner, owner:group or :group")
)
