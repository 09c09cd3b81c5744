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

package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// newCommandContext returns a command context over a memory namespace
// private to the test, with /user/alice created.
func newCommandContext(t *testing.T) *CommandContext {
	t.Helper()
	dir := t.TempDir()
	configFile := filepath.Join(dir, "redfish.yaml")
	name := strings.ReplaceAll(t.Name(), "/", "-")
	content := fmt.Sprintf("backend: memory\nmemory:\n  name: cli-%s-%d\n", name, time.Now().UnixNano())
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	ctx := context.Background()
	cc, err := NewCommandContext(ctx, &Config{ConfigFile: configFile, OutputFormat: "text", User: "alice"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close(context.Background()) })

	_, err = cc.MkdirCommand(ctx, "/user/alice", 0o755)
	require.NoError(t, err)
	return cc
}

func TestNewCommandContextValidates(t *testing.T) {
	_, err := NewCommandContext(context.Background(), &Config{OutputFormat: "text"})
	assert.ErrorIs(t, err, ErrConfigFileRequired)

	_, err = NewCommandContext(context.Background(), &Config{ConfigFile: "x.yaml", OutputFormat: "xml"})
	assert.ErrorIs(t, err, ErrUnsupportedOutputFormat)

	_, err = NewCommandContext(context.Background(), &Config{
		ConfigFile: filepath.Join(t.TempDir(), "absent.yaml"), OutputFormat: "text", User: "alice",
	})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestNewCommandContextWorkingDirectory(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "redfish.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("backend: memory\n"), 0o600))

	cc, err := NewCommandContext(context.Background(), &Config{
		ConfigFile: configFile, OutputFormat: "json", User: "bob", Cwd: "/data",
	})
	require.NoError(t, err)
	defer cc.Close(context.Background())

	cwd, err := cc.FS.GetWorkingDirectory()
	require.NoError(t, err)
	assert.Equal(t, "/data", cwd)
	assert.Equal(t, FormatJSON, cc.Format())
}

func TestPutGetCat(t *testing.T) {
	ctx := context.Background()
	cc := newCommandContext(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello redfish"), 0o600))

	n, err := cc.PutCommand(ctx, src, "hello.txt", false)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	_, err = cc.PutCommand(ctx, src, "hello.txt", false)
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	_, err = cc.PutCommand(ctx, src, "hello.txt", true)
	require.NoError(t, err)

	var out bytes.Buffer
	n, err = cc.CatCommand(ctx, "/user/alice/hello.txt", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, "hello redfish", out.String())

	out.Reset()
	_, err = cc.GetCommand(ctx, "hello.txt", "-", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello redfish", out.String())

	dst := filepath.Join(dir, "copy.txt")
	_, err = cc.GetCommand(ctx, "hello.txt", dst, nil)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello redfish", string(data))
}

func TestPutReader(t *testing.T) {
	ctx := context.Background()
	cc := newCommandContext(t)

	n, err := cc.PutReader(ctx, strings.NewReader("streamed"), "stdin.txt", common.CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	st, err := cc.StatCommand(ctx, "stdin.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(8), st.Length)
}

func TestListCommand(t *testing.T) {
	ctx := context.Background()
	cc := newCommandContext(t)

	_, err := cc.MkdirCommand(ctx, "sub", 0o755)
	require.NoError(t, err)
	_, err = cc.PutReader(ctx, strings.NewReader("x"), "file", common.CreateOptions{})
	require.NoError(t, err)

	entries, err := cc.ListCommand(ctx, ".")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/user/alice/file", entries[0].Path)
	assert.Equal(t, "/user/alice/sub", entries[1].Path)

	entries, err = cc.ListCommand(ctx, "file")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsDir)

	_, err = cc.ListCommand(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRemoveAndMove(t *testing.T) {
	ctx := context.Background()
	cc := newCommandContext(t)

	_, err := cc.MkdirCommand(ctx, "tree/leaf", 0o755)
	require.NoError(t, err)

	assert.ErrorIs(t, cc.RemoveCommand(ctx, "tree", false), common.ErrDirectoryNotEmpty)
	require.NoError(t, cc.MoveCommand(ctx, "tree", "moved"))
	require.NoError(t, cc.RemoveCommand(ctx, "moved", true))
	assert.ErrorIs(t, cc.RemoveCommand(ctx, "moved", true), common.ErrNotFound)
}

func TestChmodChown(t *testing.T) {
	ctx := context.Background()
	cc := newCommandContext(t)
	_, err := cc.PutReader(ctx, strings.NewReader("x"), "f", common.CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, cc.ChmodCommand(ctx, "f", "600"))
	assert.ErrorIs(t, cc.ChmodCommand(ctx, "f", "rwx"), ErrInvalidMode)

	require.NoError(t, cc.ChownCommand(ctx, "f", ":staff"))
	st, err := cc.StatCommand(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "alice", st.Owner)
	assert.Equal(t, "staff", st.Group)
	assert.Equal(t, 0o600, int(st.Permission()))

	assert.ErrorIs(t, cc.ChownCommand(ctx, "f", ":"), ErrInvalidOwner)
}

func TestTouchCommand(t *testing.T) {
	ctx := context.Background()
	cc := newCommandContext(t)

	require.NoError(t, cc.TouchCommand(ctx, "t", time.Now()))
	st, err := cc.StatCommand(ctx, "t")
	require.NoError(t, err)
	assert.Zero(t, st.Length)

	when := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, cc.TouchCommand(ctx, "t", when))
	st, err = cc.StatCommand(ctx, "t")
	require.NoError(t, err)
	assert.True(t, when.Equal(st.ModTime))
	assert.True(t, when.Equal(st.AccessTime))
}

func TestLocateCommand(t *testing.T) {
	ctx := context.Background()
	cc := newCommandContext(t)
	_, err := cc.PutReader(ctx, strings.NewReader("0123456789"), "blocks", common.CreateOptions{})
	require.NoError(t, err)

	blocks, err := cc.LocateCommand(ctx, "blocks", 2, -1)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, int64(2), blocks[0].Offset)
	assert.Equal(t, int64(8), blocks[0].Length)

	blocks, err = cc.LocateCommand(ctx, "blocks", 20, 5)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	_, err = cc.LocateCommand(ctx, ".", 0, 1)
	assert.ErrorIs(t, err, common.ErrIsADirectory)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"644", 0o644, true},
		{"0755", 0o755, true},
		{"7777", 0, false},
		{"9", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, uint32(got))
		})
	}
}

func TestParseOwner(t *testing.T) {
	tests := []struct {
		in, owner, group string
		ok               bool
	}{
		{"bob", "bob", "", true},
		{"bob:staff", "bob", "staff", true},
		{":staff", "", "staff", true},
		{"", "", "", false},
		{":", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, group, err := ParseOwner(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidOwner)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.group, group)
		})
	}
}
