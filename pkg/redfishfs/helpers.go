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

package redfishfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// Exists reports whether p names a file or directory.
func Exists(ctx context.Context, fsys FileSystem, p string) (bool, error) {
	_, err := fsys.GetFileStatus(ctx, p)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// IsDirectory reports whether p is a directory. A missing path is not.
func IsDirectory(ctx context.Context, fsys FileSystem, p string) (bool, error) {
	st, err := fsys.GetFileStatus(ctx, p)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.IsDir, nil
}

// IsFile reports whether p is a regular file. A missing path is not.
func IsFile(ctx context.Context, fsys FileSystem, p string) (bool, error) {
	st, err := fsys.GetFileStatus(ctx, p)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !st.IsDir, nil
}

// DeleteIfExists removes p when it exists and reports whether it did.
func DeleteIfExists(ctx context.Context, fsys FileSystem, p string, recursive bool) (bool, error) {
	exists, err := Exists(ctx, fsys, p)
	if err != nil || !exists {
		return false, err
	}
	return fsys.Delete(ctx, p, recursive)
}

// ReadFile returns the contents of p.
func ReadFile(ctx context.Context, fsys FileSystem, p string) ([]byte, error) {
	in, err := fsys.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	return data, in.Close()
}

// WriteFile writes data to p, creating it with opts.
func WriteFile(ctx context.Context, fsys FileSystem, p string, data []byte, opts common.CreateOptions) error {
	out, err := fsys.Create(ctx, p, opts)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.Write(data); err != nil {
		return err
	}
	return out.Close()
}

// CopyFromLocal uploads the local file src to dst.
func CopyFromLocal(ctx context.Context, fsys FileSystem, src, dst string, opts common.CreateOptions) (int64, error) {
	f, err := os.Open(src) // #nosec G304 -- src is chosen by the caller
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s", common.ErrIsADirectory, src)
	}
	if opts.Mode == 0 {
		opts.Mode = info.Mode().Perm()
	}

	out, err := fsys.Create(ctx, dst, opts)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, f)
	if err != nil {
		return n, err
	}
	return n, out.Close()
}

// CopyToLocal downloads src to the local file dst, replacing it.
func CopyToLocal(ctx context.Context, fsys FileSystem, src, dst string) (int64, error) {
	in, err := fsys.Open(ctx, src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, common.DefaultFileMode) // #nosec G304 -- dst is chosen by the caller
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, in)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
