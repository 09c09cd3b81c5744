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

package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

func TestWatch_Reload(t *testing.T) {
	path := writeConfig(t, "redfish.yaml", "backend: memory\nmemory:\n  name: one\n")

	var changes atomic.Int32
	w, err := Watch(path, WatchOptions{
		Debounce: 10 * time.Millisecond,
		OnChange: func(*Config) { changes.Add(1) },
	})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, "one", w.Current().Settings["name"])

	require.NoError(t, os.WriteFile(path, []byte("backend: memory\nmemory:\n  name: two\n"), 0o600))
	require.Eventually(t, func() bool {
		return w.Current().Settings["name"] == "two"
	}, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, changes.Load(), int32(1))
}

func TestWatch_KeepsPreviousOnParseError(t *testing.T) {
	path := writeConfig(t, "redfish.yaml", "backend: memory\n")

	w, err := Watch(path, WatchOptions{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed\n"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "memory", w.Current().Backend)

	require.NoError(t, os.WriteFile(path, []byte("backend: local\n"), 0o600))
	require.Eventually(t, func() bool {
		return w.Current().Backend == "local"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatch_IgnoresSiblings(t *testing.T) {
	path := writeConfig(t, "redfish.yaml", "backend: memory\n")

	var changes atomic.Int32
	w, err := Watch(path, WatchOptions{
		Debounce: 10 * time.Millisecond,
		OnChange: func(*Config) { changes.Add(1) },
	})
	require.NoError(t, err)
	defer w.Close()

	sibling := filepath.Join(filepath.Dir(path), "other.yaml")
	require.NoError(t, os.WriteFile(sibling, []byte("backend: local\n"), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, changes.Load())
	assert.Equal(t, "memory", w.Current().Backend)
}

func TestWatch_Errors(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), WatchOptions{})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestWatch_CloseIdempotent(t *testing.T) {
	w, err := Watch(writeConfig(t, "redfish.yaml", "backend: memory\n"), WatchOptions{})
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
