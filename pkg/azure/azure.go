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

//go:build !noazure

// Package azure stores a Redfish namespace in an Azure Blob Storage
// container.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/jeremyhahn/go-redfish/pkg/blobfs"
	"github.com/jeremyhahn/go-redfish/pkg/common"
)

var (
	// ErrAccountNotSet is returned when neither an account key nor anonymous
	// access is configured.
	ErrAccountNotSet = errors.New("azure account name and key are required")

	// ErrContainerNotSet is returned when no container is configured.
	ErrContainerNotSet = errors.New("azure container not set")
)

// listPage is one segment of a container listing.
type listPage struct {
	blobs    []string
	prefixes []string
	next     string
}

// containerAPI is the subset of a container used by this package. Metadata
// keys are passed through unchanged; Bucket owns their encoding.
type containerAPI interface {
	GetProperties(ctx context.Context, name string) (blobfs.Attrs, error)
	Upload(ctx context.Context, name string, data []byte, meta map[string]string) error
	Download(ctx context.Context, name string, off, n int64) (io.ReadCloser, error)
	SetMetadata(ctx context.Context, name string, meta map[string]string) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, marker, prefix, delimiter string) (listPage, error)
}

// containerURL forwards to a real container.
type containerURL struct {
	c azblob.ContainerURL
}

func (u containerURL) GetProperties(ctx context.Context, name string) (blobfs.Attrs, error) {
	resp, err := u.c.NewBlockBlobURL(name).GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return blobfs.Attrs{}, err
	}
	return blobfs.Attrs{
		Size:     resp.ContentLength(),
		Metadata: resp.NewMetadata(),
		Updated:  resp.LastModified(),
	}, nil
}

func (u containerURL) Upload(ctx context.Context, name string, data []byte, meta map[string]string) error {
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, u.c.NewBlockBlobURL(name), azblob.UploadToBlockBlobOptions{
		Metadata: meta,
	})
	return err
}

func (u containerURL) Download(ctx context.Context, name string, off, n int64) (io.ReadCloser, error) {
	resp, err := u.c.NewBlockBlobURL(name).Download(ctx, off, n, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, err
	}
	return resp.Body(azblob.RetryReaderOptions{}), nil
}

func (u containerURL) SetMetadata(ctx context.Context, name string, meta map[string]string) error {
	_, err := u.c.NewBlockBlobURL(name).SetMetadata(ctx, meta, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	return err
}

func (u containerURL) Delete(ctx context.Context, name string) error {
	_, err := u.c.NewBlockBlobURL(name).Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	return err
}

func (u containerURL) List(ctx context.Context, marker, prefix, delimiter string) (listPage, error) {
	m := azblob.Marker{}
	if marker != "" {
		m.Val = &marker
	}
	opts := azblob.ListBlobsSegmentOptions{Prefix: prefix}

	var page listPage
	if delimiter == "" {
		resp, err := u.c.ListBlobsFlatSegment(ctx, m, opts)
		if err != nil {
			return listPage{}, err
		}
		for _, item := range resp.Segment.BlobItems {
			page.blobs = append(page.blobs, item.Name)
		}
		page.next = markerValue(resp.NextMarker)
		return page, nil
	}

	resp, err := u.c.ListBlobsHierarchySegment(ctx, m, delimiter, opts)
	if err != nil {
		return listPage{}, err
	}
	for _, item := range resp.Segment.BlobItems {
		page.blobs = append(page.blobs, item.Name)
	}
	for _, p := range resp.Segment.BlobPrefixes {
		page.prefixes = append(page.prefixes, p.Name)
	}
	page.next = markerValue(resp.NextMarker)
	return page, nil
}

func markerValue(m azblob.Marker) string {
	if m.Val == nil {
		return ""
	}
	return *m.Val
}

// Bucket adapts one Azure container to blobfs.Bucket.
type Bucket struct {
	api       containerAPI
	container string
}

var _ blobfs.Bucket = (*Bucket)(nil)

// NewBucket wraps a container URL.
func NewBucket(c azblob.ContainerURL, container string) *Bucket {
	return &Bucket{api: containerURL{c: c}, container: container}
}

// Configure builds a store from backend settings.
//
// Settings:
//   - container: the container holding the namespace (required)
//   - account_name, account_key: shared key credentials (required unless anonymous)
//   - endpoint: service URL, e.g. Azurite's http://127.0.0.1:10000/devstoreaccount1 (optional)
//   - prefix: key prefix for the namespace (optional)
//   - anonymous: "true" to send unauthenticated requests (optional)
func Configure(settings map[string]string) (*blobfs.Store, error) {
	container := settings["container"]
	if container == "" {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, ErrContainerNotSet)
	}
	account := settings["account_name"]

	var credential azblob.Credential
	if settings["anonymous"] == "true" {
		credential = azblob.NewAnonymousCredential()
	} else {
		key := settings["account_key"]
		if account == "" || key == "" {
			return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, ErrAccountNotSet)
		}
		shared, err := azblob.NewSharedKeyCredential(account, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
		}
		credential = shared
	}

	endpoint := settings["endpoint"]
	if endpoint == "" {
		if account == "" {
			return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, ErrAccountNotSet)
		}
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", account)
	}
	u, err := url.Parse(strings.TrimSuffix(endpoint, "/") + "/" + container)
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %w", common.ErrConfiguration, endpoint, err)
	}

	c := azblob.NewContainerURL(*u, azblob.NewPipeline(credential, azblob.PipelineOptions{}))
	return blobfs.NewStore(NewBucket(c, container),
		blobfs.WithPrefix(settings["prefix"]),
		blobfs.WithBlockHost(blockHost(u)),
	), nil
}

func blockHost(u *url.URL) common.BlockHost {
	port := 443
	if u.Scheme == "http" {
		port = 80
	}
	if p, err := strconv.Atoi(u.Port()); err == nil {
		port = p
	}
	return common.BlockHost{Hostname: u.Hostname(), Port: port}
}

func (b *Bucket) Head(ctx context.Context, key string) (blobfs.Attrs, error) {
	a, err := b.api.GetProperties(ctx, key)
	if err != nil {
		return blobfs.Attrs{}, mapError(err)
	}
	a.Metadata = decodeMeta(a.Metadata)
	return a, nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte, meta map[string]string) error {
	return b.api.Upload(ctx, key, data, encodeMeta(meta))
}

func (b *Bucket) ReadRange(ctx context.Context, key string, off, n int64) (io.ReadCloser, error) {
	if n <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	r, err := b.api.Download(ctx, key, off, n)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

// Copy downloads src and uploads it to dst. A server-side copy completes
// asynchronously, which would let a rename observe a pending destination.
func (b *Bucket) Copy(ctx context.Context, src, dst string) error {
	a, err := b.api.GetProperties(ctx, src)
	if err != nil {
		return mapError(err)
	}
	var data []byte
	if a.Size > 0 {
		r, err := b.api.Download(ctx, src, 0, a.Size)
		if err != nil {
			return mapError(err)
		}
		data, err = io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return err
		}
	}
	return b.api.Upload(ctx, dst, data, a.Metadata)
}

// SetMetadata replaces the blob metadata in place.
func (b *Bucket) SetMetadata(ctx context.Context, key string, meta map[string]string) error {
	return mapError(b.api.SetMetadata(ctx, key, encodeMeta(meta)))
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.api.Delete(ctx, key)
	if isNotFound(err) {
		return nil
	}
	return err
}

// Walk pages through the listing. Within a page, blobs and folded prefixes
// are reported in key order.
func (b *Bucket) Walk(ctx context.Context, prefix, delimiter string, fn func(key string, isPrefix bool) bool) error {
	marker := ""
	for {
		page, err := b.api.List(ctx, marker, prefix, delimiter)
		if err != nil {
			return err
		}
		blobs, prefixes := page.blobs, page.prefixes
		for len(blobs) > 0 || len(prefixes) > 0 {
			var (
				key      string
				isPrefix bool
			)
			if len(prefixes) > 0 && (len(blobs) == 0 || prefixes[0] < blobs[0]) {
				key, isPrefix, prefixes = prefixes[0], true, prefixes[1:]
			} else {
				key, blobs = blobs[0], blobs[1:]
			}
			if !fn(key, isPrefix) {
				return nil
			}
		}
		if page.next == "" {
			return nil
		}
		marker = page.next
	}
}

// Azure metadata names must be valid identifiers, so dashes travel as
// underscores.
func encodeMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[strings.ReplaceAll(k, "-", "_")] = v
	}
	return out
}

func decodeMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[strings.ReplaceAll(strings.ToLower(k), "_", "-")] = v
	}
	return out
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, common.ErrNotFound) {
		return true
	}
	var stgErr azblob.StorageError
	if errors.As(err, &stgErr) {
		switch stgErr.ServiceCode() {
		case azblob.ServiceCodeBlobNotFound, azblob.ServiceCodeContainerNotFound:
			return true
		}
	}
	return false
}

// mapError converts missing-blob errors to common.ErrNotFound.
func mapError(err error) error {
	if err != nil && isNotFound(err) && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}
	return err
}
