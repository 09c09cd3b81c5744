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

// Package redfishfs exposes a Redfish session as a filesystem with a
// working directory, streams and a guarded lifecycle.
package redfishfs

import (
	"context"
	"io/fs"
	"net/url"
	"time"

	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/stream"
)

const (
	// Scheme is the URI scheme of Redfish filesystems.
	Scheme = "redfish"

	// ConfigFileKey names the Redfish configuration file in a Configuration.
	ConfigFileKey = "fs.redfish.configFile"

	// HomePrefix is the parent of every user's home directory.
	HomePrefix = "/user"
)

// ErrConfigFileNotSet is returned by Initialize when the configuration does
// not name a Redfish configuration file. It matches common.ErrConfiguration.
var ErrConfigFileNotSet error = missingConfigFile{}

type missingConfigFile struct{}

func (missingConfigFile) Error() string {
	return "you must set " + ConfigFileKey + " to the path to a valid Redfish configuration file"
}

func (missingConfigFile) Unwrap() error { return common.ErrConfiguration }

// Configuration supplies string settings. *viper.Viper satisfies it.
type Configuration interface {
	GetString(key string) string
}

// MapConfiguration is a Configuration backed by a map.
type MapConfiguration map[string]string

// GetString returns the value of key, or "" when it is unset.
func (m MapConfiguration) GetString(key string) string {
	return m[key]
}

// FileSystem is the Redfish filesystem. Relative paths resolve against the
// working directory current at the time of the call.
type FileSystem interface {
	Initialize(ctx context.Context, uri string, conf Configuration) error
	Close(ctx context.Context) error

	Open(ctx context.Context, p string) (*stream.InputStream, error)
	Create(ctx context.Context, p string, opts common.CreateOptions) (*stream.OutputStream, error)
	Append(ctx context.Context, p string) (*stream.OutputStream, error)
	Rename(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, p string, recursive bool) (bool, error)
	ListStatus(ctx context.Context, p string) ([]common.FileStatus, error)
	Mkdirs(ctx context.Context, p string, mode fs.FileMode) (bool, error)
	GetFileStatus(ctx context.Context, p string) (common.FileStatus, error)
	SetOwner(ctx context.Context, p, user, group string) error
	SetPermission(ctx context.Context, p string, mode fs.FileMode) error
	SetTimes(ctx context.Context, p string, mtime, atime time.Time) error
	GetFileBlockLocations(ctx context.Context, st *common.FileStatus, start, length int64) ([]common.BlockLocation, error)

	SetWorkingDirectory(p string) error
	GetWorkingDirectory() (string, error)
	HomeDirectory() string
	URI() *url.URL
	Statistics() *stream.Statistics
	DefaultBlockSize() int64
	DefaultReplication() int16
}
