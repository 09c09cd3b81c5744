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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimits(t *testing.T) {
	assert.Greater(t, MaxSessions, 0)
	assert.Greater(t, MaxHandlesPerSession, 0)
	assert.Equal(t, MaxReadSize, MaxWriteSize)
	assert.Greater(t, MaxMessageSize, MaxWriteSize)
	assert.Less(t, HealthCheckTimeout, DefaultRequestTimeout)
	assert.Greater(t, DefaultSessionIdleTimeout, DefaultRequestTimeout)
}
