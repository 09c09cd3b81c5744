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

// Package stream adapts Redfish read and write handles to the io
// interfaces. Each stream owns its handle exclusively and is not safe for
// concurrent use; distinct streams are independent.
package stream

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
	"github.com/jeremyhahn/go-redfish/pkg/common"
)

type options struct {
	stats  *Statistics
	logger adapters.Logger
}

// Option configures a stream.
type Option func(*options)

// WithStatistics makes the stream report its I/O to stats.
func WithStatistics(stats *Statistics) Option {
	return func(o *options) {
		o.stats = stats
	}
}

// WithLogger sets the logger used to report leaked streams.
func WithLogger(logger adapters.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.stats == nil {
		o.stats = &Statistics{}
	}
	if o.logger == nil {
		o.logger = adapters.NewNoOpLogger()
	}
	return o
}

// checkBounds validates a sub-range of a buffer of the given size.
func checkBounds(size, off, length int) error {
	if off < 0 || length < 0 || off > size || length > size-off {
		return fmt.Errorf("%w: offset %d length %d buffer %d", common.ErrIndexOutOfBounds, off, length, size)
	}
	return nil
}

type handleCloser interface {
	Close(ctx context.Context) error
}

// leak is what the cleanup of an unreachable stream needs to release its
// handle. It must not reference the stream itself.
type leak struct {
	kind   string
	path   string
	handle handleCloser
	logger adapters.Logger
}

// guard arranges for h to be closed if stream becomes unreachable while
// still open. Stop the returned cleanup once the stream is closed.
func guard[T any](stream *T, kind, path string, h handleCloser, logger adapters.Logger) runtime.Cleanup {
	return runtime.AddCleanup(stream, releaseLeaked, &leak{kind: kind, path: path, handle: h, logger: logger})
}

func releaseLeaked(l *leak) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(ctx, "Releasing leaked Redfish stream panicked",
				adapters.Field{Key: "path", Value: l.path},
				adapters.Field{Key: "panic", Value: fmt.Sprint(r)},
			)
		}
	}()

	l.logger.Warn(ctx, "Redfish "+l.kind+" stream was never closed, releasing its handle",
		adapters.Field{Key: "path", Value: l.path},
	)
	if err := l.handle.Close(ctx); err != nil {
		l.logger.Warn(ctx, "Releasing leaked Redfish stream failed",
			adapters.Field{Key: "path", Value: l.path},
			adapters.ErrorField(err),
		)
	}
}
