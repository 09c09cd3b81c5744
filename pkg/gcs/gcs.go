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

//go:build !nogcs

// Package gcs stores a Redfish namespace in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jeremyhahn/go-redfish/pkg/blobfs"
	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// bucketAPI is the subset of a bucket handle used by this package.
type bucketAPI interface {
	Attrs(ctx context.Context, name string) (*storage.ObjectAttrs, error)
	NewWriter(ctx context.Context, name string, meta map[string]string) io.WriteCloser
	NewRangeReader(ctx context.Context, name string, off, n int64) (io.ReadCloser, error)
	Copy(ctx context.Context, src, dst string) error
	Update(ctx context.Context, name string, meta map[string]string) error
	Delete(ctx context.Context, name string) error
	Objects(ctx context.Context, q *storage.Query) objectIterator
}

type objectIterator interface {
	Next() (*storage.ObjectAttrs, error)
}

// handleAPI forwards to a real bucket handle.
type handleAPI struct {
	bh *storage.BucketHandle
}

func (h handleAPI) Attrs(ctx context.Context, name string) (*storage.ObjectAttrs, error) {
	return h.bh.Object(name).Attrs(ctx)
}

func (h handleAPI) NewWriter(ctx context.Context, name string, meta map[string]string) io.WriteCloser {
	w := h.bh.Object(name).NewWriter(ctx)
	w.Metadata = meta
	return w
}

func (h handleAPI) NewRangeReader(ctx context.Context, name string, off, n int64) (io.ReadCloser, error) {
	r, err := h.bh.Object(name).NewRangeReader(ctx, off, n)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (h handleAPI) Copy(ctx context.Context, src, dst string) error {
	_, err := h.bh.Object(dst).CopierFrom(h.bh.Object(src)).Run(ctx)
	return err
}

func (h handleAPI) Update(ctx context.Context, name string, meta map[string]string) error {
	_, err := h.bh.Object(name).Update(ctx, storage.ObjectAttrsToUpdate{Metadata: meta})
	return err
}

func (h handleAPI) Delete(ctx context.Context, name string) error {
	return h.bh.Object(name).Delete(ctx)
}

func (h handleAPI) Objects(ctx context.Context, q *storage.Query) objectIterator {
	return h.bh.Objects(ctx, q)
}

var newClient = func(ctx context.Context, opts ...option.ClientOption) (*storage.Client, error) {
	return storage.NewClient(ctx, opts...)
}

// Bucket adapts one GCS bucket to blobfs.Bucket.
type Bucket struct {
	api  bucketAPI
	name string
}

var _ blobfs.Bucket = (*Bucket)(nil)

// NewBucket wraps a bucket handle.
func NewBucket(bh *storage.BucketHandle, name string) *Bucket {
	return &Bucket{api: handleAPI{bh: bh}, name: name}
}

// Configure builds a store from backend settings.
//
// Settings:
//   - bucket: the bucket holding the namespace (required)
//   - prefix: key prefix for the namespace (optional)
//   - credentials_file: service account key file (optional)
//   - endpoint: custom endpoint, e.g. a storage emulator (optional)
//   - anonymous: "true" to send unauthenticated requests (optional)
func Configure(ctx context.Context, settings map[string]string) (*blobfs.Store, error) {
	name := settings["bucket"]
	if name == "" {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, blobfs.ErrBucketNotSet)
	}

	var opts []option.ClientOption
	if file := settings["credentials_file"]; file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	if endpoint := settings["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if settings["anonymous"] == "true" {
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := newClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	return blobfs.NewStore(NewBucket(client.Bucket(name), name),
		blobfs.WithPrefix(settings["prefix"]),
		blobfs.WithBlockHost(common.BlockHost{Hostname: "storage.googleapis.com", Port: 443}),
	), nil
}

func (b *Bucket) Head(ctx context.Context, key string) (blobfs.Attrs, error) {
	a, err := b.api.Attrs(ctx, key)
	if err != nil {
		return blobfs.Attrs{}, mapError(err)
	}
	return blobfs.Attrs{Size: a.Size, Metadata: a.Metadata, Updated: a.Updated}, nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte, meta map[string]string) error {
	w := b.api.NewWriter(ctx, key, meta)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *Bucket) ReadRange(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	r, err := b.api.NewRangeReader(ctx, key, off, n)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (b *Bucket) Copy(ctx context.Context, src, dst string) error {
	return mapError(b.api.Copy(ctx, src, dst))
}

// SetMetadata patches the object metadata in place.
func (b *Bucket) SetMetadata(ctx context.Context, key string, meta map[string]string) error {
	return mapError(b.api.Update(ctx, key, meta))
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.api.Delete(ctx, key)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *Bucket) Walk(ctx context.Context, prefix, delimiter string, fn func(key string, isPrefix bool) bool) error {
	it := b.api.Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: delimiter})
	for {
		a, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if a.Prefix != "" {
			if !fn(a.Prefix, true) {
				return nil
			}
			continue
		}
		if !fn(a.Name, false) {
			return nil
		}
	}
}

// mapError converts missing-object errors to common.ErrNotFound.
func mapError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}
	return err
}
