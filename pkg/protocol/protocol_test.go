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

package protocol

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

func TestCodecRegistered(t *testing.T) {
	assert.NotNil(t, encoding.GetCodec(CodecName))
}

func TestCodecRoundTrip(t *testing.T) {
	in := &ListResponse{Entries: []common.FileStatus{{
		Path:    "/a/b",
		Length:  42,
		Mode:    0o640,
		Owner:   "alice",
		ModTime: time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC),
	}}}

	data, err := Codec{}.Marshal(in)
	require.NoError(t, err)

	out := &ListResponse{}
	require.NoError(t, Codec{}.Unmarshal(data, out))
	require.Len(t, out.Entries, 1)
	assert.Equal(t, in.Entries[0].Path, out.Entries[0].Path)
	assert.Equal(t, in.Entries[0].Mode, out.Entries[0].Mode)
	assert.True(t, in.Entries[0].ModTime.Equal(out.Entries[0].ModTime))
}

func TestFullMethod(t *testing.T) {
	assert.Equal(t, "/redfish.v1.Metadata/Create", FullMethod(MethodCreate))
}

func TestServiceDescCoversServer(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range ServiceDesc.Methods {
		assert.False(t, seen[m.MethodName], "duplicate method %s", m.MethodName)
		seen[m.MethodName] = true
	}
	assert.Len(t, seen, 21)
}

func TestStatusRoundTrip(t *testing.T) {
	for _, k := range kinds {
		t.Run(k.reason, func(t *testing.T) {
			wire := ToStatus(fmt.Errorf("op failed: %w", k.err))
			st, ok := status.FromError(wire)
			require.True(t, ok)
			assert.Equal(t, k.code, st.Code())

			back := FromStatus(wire)
			assert.ErrorIs(t, back, k.err)
			assert.Contains(t, back.Error(), "op failed")
		})
	}
}

func TestStatusContextErrors(t *testing.T) {
	assert.ErrorIs(t, FromStatus(ToStatus(context.Canceled)), context.Canceled)
	assert.ErrorIs(t, FromStatus(ToStatus(context.DeadlineExceeded)), context.DeadlineExceeded)
}

func TestStatusUnclassified(t *testing.T) {
	wire := ToStatus(errors.New("disk on fire"))
	assert.Equal(t, codes.Internal, status.Code(wire))
	assert.ErrorIs(t, FromStatus(wire), common.ErrIO)
}

func TestStatusPassthrough(t *testing.T) {
	orig := status.Error(codes.ResourceExhausted, "slow down")
	assert.Equal(t, orig, ToStatus(orig))
	assert.Nil(t, ToStatus(nil))
	assert.Nil(t, FromStatus(nil))

	plain := errors.New("not a status")
	assert.Equal(t, plain, FromStatus(plain))
}

func TestFromStatusWithoutDetails(t *testing.T) {
	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.NotFound, common.ErrNotFound},
		{codes.AlreadyExists, common.ErrAlreadyExists},
		{codes.Unauthenticated, common.ErrPermission},
		{codes.InvalidArgument, common.ErrInvalidArgument},
		{codes.Unavailable, common.ErrConnection},
		{codes.Unimplemented, common.ErrNotImplemented},
		{codes.ResourceExhausted, common.ErrIO},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := FromStatus(status.Error(tt.code, "x"))
			assert.ErrorIs(t, err, tt.want)

			var remote *RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tt.code, remote.Code)
		})
	}
}
