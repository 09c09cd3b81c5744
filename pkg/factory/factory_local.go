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

package factory

import (
	"context"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/local"
)

func init() {
	RegisterSession("local", func(ctx context.Context, settings map[string]string, user string) (common.Session, error) {
		store, err := local.Open(local.BaseFromSettings(settings))
		if err != nil {
			return nil, err
		}
		return store.Connect(user), nil
	})
}
