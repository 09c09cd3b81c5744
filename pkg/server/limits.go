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

package server

import "time"

// Server-wide limits of the Redfish metadata server.
const (
	// MaxSessions caps concurrently connected sessions.
	MaxSessions = 4096

	// MaxHandlesPerSession caps open streams per session.
	MaxHandlesPerSession = 1024

	// MaxReadSize is the largest chunk a single Read RPC returns (4 MiB).
	MaxReadSize = 4 * 1024 * 1024

	// MaxWriteSize is the largest chunk a single Write RPC accepts (4 MiB).
	MaxWriteSize = 4 * 1024 * 1024

	// MaxMessageSize covers the largest chunk after base64 encoding.
	MaxMessageSize = 2 * MaxWriteSize

	// DefaultSessionIdleTimeout disconnects sessions that issue no RPCs.
	DefaultSessionIdleTimeout = 30 * time.Minute

	// HealthCheckTimeout bounds a single backend health check.
	HealthCheckTimeout = 5 * time.Second

	// DefaultRequestTimeout is the default deadline for client RPCs.
	DefaultRequestTimeout = 30 * time.Second

	// MaxConcurrentStreams is the HTTP/2 stream limit per connection.
	MaxConcurrentStreams = 1000
)
