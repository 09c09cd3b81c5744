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

// Package factory builds Redfish sessions from a backend name and its
// settings.
package factory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// SessionCreator connects a session for user with the given backend settings.
type SessionCreator func(ctx context.Context, settings map[string]string, user string) (common.Session, error)

// ErrUnknownBackend is returned for a backend name nothing registered. It is
// a configuration error.
var ErrUnknownBackend = fmt.Errorf("%w: unknown backend type", common.ErrConfiguration)

var (
	registryMu      sync.RWMutex
	sessionRegistry = make(map[string]SessionCreator)
)

// RegisterSession registers a session backend creator.
func RegisterSession(backend string, creator SessionCreator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	sessionRegistry[backend] = creator
}

// NewSession connects a session of the given backend type.
func NewSession(ctx context.Context, backend string, settings map[string]string, user string) (common.Session, error) {
	registryMu.RLock()
	creator, exists := sessionRegistry[backend]
	registryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, backend)
	}
	if settings == nil {
		settings = map[string]string{}
	}
	return creator(ctx, settings, user)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(sessionRegistry))
	for name := range sessionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
