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

package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/blobfs"
	"github.com/jeremyhahn/go-redfish/pkg/common"
	"github.com/jeremyhahn/go-redfish/pkg/sessiontest"
)

var errBoom = errors.New("boom")

// storageError mimics the service errors returned by azblob.
type storageError struct {
	code azblob.ServiceCodeType
}

func (e storageError) Error() string { return "azure: " + string(e.code) }
func (e storageError) Timeout() bool { return false }
func (e storageError) Temporary() bool { return false }
func (e storageError) Response() *http.Response { return &http.Response{StatusCode: http.StatusNotFound} }
func (e storageError) ServiceCode() azblob.ServiceCodeType { return e.code }

var errBlobNotFound = storageError{code: azblob.ServiceCodeBlobNotFound}

type blob struct {
	data    []byte
	meta    map[string]string
	updated time.Time
}

// fakeContainer is an in-memory containerAPI. Like the service it rejects
// metadata names that are not identifiers and pages listings.
type fakeContainer struct {
	mu       sync.Mutex
	blobs    map[string]*blob
	calls    map[string]int
	pageSize int
}

func newFakeContainer() *fakeContainer {
	return &fakeContainer{
		blobs:    make(map[string]*blob),
		calls:    make(map[string]int),
		pageSize: 1000,
	}
}

func (f *fakeContainer) GetProperties(_ context.Context, name string) (blobfs.Attrs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetProperties"]++

	b, ok := f.blobs[name]
	if !ok {
		return blobfs.Attrs{}, errBlobNotFound
	}
	return blobfs.Attrs{Size: int64(len(b.data)), Metadata: maps.Clone(b.meta), Updated: b.updated}, nil
}

func validMeta(meta map[string]string) error {
	for k := range meta {
		if strings.ContainsAny(k, "-.") {
			return fmt.Errorf("invalid metadata name %q", k)
		}
	}
	return nil
}

func (f *fakeContainer) Upload(_ context.Context, name string, data []byte, meta map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Upload"]++

	if err := validMeta(meta); err != nil {
		return err
	}
	f.blobs[name] = &blob{data: bytes.Clone(data), meta: maps.Clone(meta), updated: time.Now()}
	return nil
}

func (f *fakeContainer) Download(_ context.Context, name string, off, n int64) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Download"]++

	b, ok := f.blobs[name]
	if !ok {
		return nil, errBlobNotFound
	}
	end := int64(len(b.data))
	if n != azblob.CountToEnd {
		end = min(off+n, end)
	}
	off = min(off, end)
	return io.NopCloser(bytes.NewReader(bytes.Clone(b.data[off:end]))), nil
}

func (f *fakeContainer) SetMetadata(_ context.Context, name string, meta map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SetMetadata"]++

	b, ok := f.blobs[name]
	if !ok {
		return errBlobNotFound
	}
	if err := validMeta(meta); err != nil {
		return err
	}
	b.meta = maps.Clone(meta)
	return nil
}

func (f *fakeContainer) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Delete"]++

	if _, ok := f.blobs[name]; !ok {
		return errBlobNotFound
	}
	delete(f.blobs, name)
	return nil
}

// List returns blobs and folded prefixes separately, the way the
// hierarchical listing does. The marker is the last key of the previous page.
func (f *fakeContainer) List(_ context.Context, marker, prefix, delimiter string) (listPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["List"]++

	var entries []string
	isPrefix := make(map[string]bool)
	for name := range f.blobs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if delimiter != "" {
			if i := strings.Index(name[len(prefix):], delimiter); i >= 0 {
				p := name[:len(prefix)+i+len(delimiter)]
				if !isPrefix[p] {
					isPrefix[p] = true
					entries = append(entries, p)
				}
				continue
			}
		}
		entries = append(entries, name)
	}
	sort.Strings(entries)

	var page listPage
	for _, e := range entries {
		if marker != "" && e <= marker {
			continue
		}
		if len(page.blobs)+len(page.prefixes) == f.pageSize {
			page.next = marker
			break
		}
		if isPrefix[e] {
			page.prefixes = append(page.prefixes, e)
		} else {
			page.blobs = append(page.blobs, e)
		}
		marker = e
	}
	return page, nil
}

type failingContainer struct{ *fakeContainer }

func (failingContainer) List(context.Context, string, string, string) (listPage, error) {
	return listPage{}, errBoom
}

func newStore(api containerAPI, opts ...blobfs.StoreOption) *blobfs.Store {
	return blobfs.NewStore(&Bucket{api: api, container: "test"}, opts...)
}

func TestSession(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) sessiontest.Connector {
		store := newStore(newFakeContainer())
		return func(t *testing.T, user string) common.Session {
			return store.Connect(user)
		}
	})
}

func TestSessionWithPrefix(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) sessiontest.Connector {
		api := newFakeContainer()
		api.pageSize = 2
		store := newStore(api, blobfs.WithPrefix("tenants/c"))
		return func(t *testing.T, user string) common.Session {
			return store.Connect(user)
		}
	})
}

func TestConfigureErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		want     error
	}{
		{"no container", map[string]string{"account_name": "fish", "account_key": "a2V5"}, ErrContainerNotSet},
		{"no key", map[string]string{"container": "ns", "account_name": "fish"}, ErrAccountNotSet},
		{"anonymous without endpoint or account", map[string]string{"container": "ns", "anonymous": "true"}, ErrAccountNotSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Configure(tt.settings)
			assert.ErrorIs(t, err, common.ErrConfiguration)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Configure(map[string]string{"container": "ns", "account_name": "fish", "account_key": "not base64!"})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestConfigure(t *testing.T) {
	store, err := Configure(map[string]string{
		"container":    "ns",
		"account_name": "fishacct",
		"account_key":  "dGVzdC1rZXk=",
		"prefix":       "tenant",
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant/", store.Prefix())

	b, ok := store.Bucket().(*Bucket)
	require.True(t, ok)
	assert.Equal(t, "ns", b.container)
	api, ok := b.api.(containerURL)
	require.True(t, ok)
	u := api.c.URL()
	assert.Equal(t, "https://fishacct.blob.core.windows.net/ns", u.String())
}

func TestConfigureEndpoint(t *testing.T) {
	store, err := Configure(map[string]string{
		"container": "ns",
		"endpoint":  "http://127.0.0.1:10000/devstoreaccount1/",
		"anonymous": "true",
	})
	require.NoError(t, err)

	b := store.Bucket().(*Bucket)
	u := b.api.(containerURL).c.URL()
	assert.Equal(t, "http://127.0.0.1:10000/devstoreaccount1/ns", u.String())

	assert.Equal(t, common.BlockHost{Hostname: "127.0.0.1", Port: 10000}, blockHost(&u))
}

func TestKeyLayout(t *testing.T) {
	ctx := context.Background()
	api := newFakeContainer()
	sess := newStore(api).Connect("alice")

	_, err := sess.Mkdirs(ctx, "/d", 0)
	require.NoError(t, err)
	sessiontest.WriteFile(t, sess, "/d/f", sessiontest.Pattern(3), 0)

	require.Contains(t, api.blobs, "d/")
	require.Contains(t, api.blobs, "d/f")
	assert.Equal(t, "alice", api.blobs["d/f"].meta["redfish_owner"])

	st, err := sess.GetPathStatus(ctx, "/d/f")
	require.NoError(t, err)
	assert.Equal(t, "alice", st.Owner)
}

func TestChmodReplacesMetadataInPlace(t *testing.T) {
	ctx := context.Background()
	api := newFakeContainer()
	sess := newStore(api).Connect("alice")
	sessiontest.WriteFile(t, sess, "/f", sessiontest.Pattern(8), 0)

	uploads := api.calls["Upload"]
	require.NoError(t, sess.Chmod(ctx, "/f", 0o600))
	assert.Equal(t, uploads, api.calls["Upload"])
	assert.Equal(t, 1, api.calls["SetMetadata"])
	assert.Equal(t, "600", api.blobs["f"].meta["redfish_mode"])
	assert.Equal(t, sessiontest.Pattern(8), api.blobs["f"].data)
}

func TestCopyKeepsDataAndMetadata(t *testing.T) {
	ctx := context.Background()
	b := &Bucket{api: newFakeContainer(), container: "c"}
	require.NoError(t, b.Put(ctx, "src", []byte("payload"), map[string]string{"redfish-owner": "bob"}))
	require.NoError(t, b.Put(ctx, "empty", nil, nil))

	require.NoError(t, b.Copy(ctx, "src", "dst"))
	a, err := b.Head(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.Size)
	assert.Equal(t, map[string]string{"redfish-owner": "bob"}, a.Metadata)

	require.NoError(t, b.Copy(ctx, "empty", "empty2"))
	a, err = b.Head(ctx, "empty2")
	require.NoError(t, err)
	assert.Zero(t, a.Size)
}

func TestMissingBlobs(t *testing.T) {
	ctx := context.Background()
	b := &Bucket{api: newFakeContainer(), container: "c"}

	_, err := b.Head(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = b.ReadRange(ctx, "nope", 0, 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, b.Copy(ctx, "nope", "dst"), common.ErrNotFound)
	assert.ErrorIs(t, b.SetMetadata(ctx, "nope", nil), common.ErrNotFound)
	assert.NoError(t, b.Delete(ctx, "nope"))

	assert.True(t, isNotFound(storageError{code: azblob.ServiceCodeContainerNotFound}))
	assert.False(t, isNotFound(storageError{code: "AuthenticationFailed"}))
	assert.False(t, isNotFound(errBoom))
	assert.False(t, isNotFound(nil))
}

func TestWalkMergesPages(t *testing.T) {
	ctx := context.Background()
	api := newFakeContainer()
	api.pageSize = 2
	b := &Bucket{api: api, container: "c"}
	for _, key := range []string{"a/1", "a/2", "b", "c/d/e", "d"} {
		require.NoError(t, b.Put(ctx, key, nil, nil))
	}

	type entry struct {
		key      string
		isPrefix bool
	}
	var got []entry
	require.NoError(t, b.Walk(ctx, "", "/", func(key string, isPrefix bool) bool {
		got = append(got, entry{key, isPrefix})
		return true
	}))
	assert.Equal(t, []entry{{"a/", true}, {"b", false}, {"c/", true}, {"d", false}}, got)
	assert.Equal(t, 2, api.calls["List"])

	got = nil
	require.NoError(t, b.Walk(ctx, "a/", "", func(key string, isPrefix bool) bool {
		got = append(got, entry{key, isPrefix})
		return false
	}))
	assert.Equal(t, []entry{{"a/1", false}}, got)
	assert.Equal(t, 3, api.calls["List"])
}

func TestWalkError(t *testing.T) {
	b := &Bucket{api: failingContainer{newFakeContainer()}, container: "c"}
	err := b.Walk(context.Background(), "", "", func(string, bool) bool { return true })
	assert.ErrorIs(t, err, errBoom)

	sess := blobfs.NewStore(b).Connect("alice")
	_, err = sess.ListDirectory(context.Background(), "/")
	assert.ErrorIs(t, err, errBoom)
}
