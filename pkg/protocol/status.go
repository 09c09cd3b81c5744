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

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jeremyhahn/go-redfish/pkg/common"
)

// ErrorDomain identifies Redfish error details attached to a status.
const ErrorDomain = "redfish"

// errorKind pairs a Redfish sentinel with its wire representation.
type errorKind struct {
	err    error
	code   codes.Code
	reason string
}

// kinds is ordered from most to least specific; the first match wins.
var kinds = []errorKind{
	{common.ErrNotFound, codes.NotFound, "NOT_FOUND"},
	{common.ErrAlreadyExists, codes.AlreadyExists, "ALREADY_EXISTS"},
	{common.ErrPermission, codes.PermissionDenied, "PERMISSION_DENIED"},
	{common.ErrNotADirectory, codes.FailedPrecondition, "NOT_A_DIRECTORY"},
	{common.ErrIsADirectory, codes.FailedPrecondition, "IS_A_DIRECTORY"},
	{common.ErrDirectoryNotEmpty, codes.FailedPrecondition, "DIRECTORY_NOT_EMPTY"},
	{common.ErrClosedStream, codes.FailedPrecondition, "CLOSED"},
	{common.ErrNotConnected, codes.FailedPrecondition, "NOT_CONNECTED"},
	{common.ErrIllegalState, codes.FailedPrecondition, "ILLEGAL_STATE"},
	{common.ErrConfiguration, codes.FailedPrecondition, "CONFIGURATION"},
	{common.ErrIndexOutOfBounds, codes.OutOfRange, "INDEX_OUT_OF_BOUNDS"},
	{common.ErrEndOfFile, codes.OutOfRange, "END_OF_FILE"},
	{common.ErrInvalidArgument, codes.InvalidArgument, "INVALID_ARGUMENT"},
	{common.ErrNotImplemented, codes.Unimplemented, "NOT_IMPLEMENTED"},
	{common.ErrConnection, codes.Unavailable, "CONNECTION"},
	{common.ErrIO, codes.Internal, "IO"},
}

// RemoteError is a Redfish error reported by the server.
type RemoteError struct {
	Code    codes.Code
	Message string
	Err     error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Err }

// ToStatus converts a Redfish error to a gRPC status error carrying an
// ErrorInfo detail that names the sentinel.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := errorKind{common.ErrIO, codes.Internal, "IO"}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			kind = k
			break
		}
	}

	st := status.New(kind.code, err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: kind.reason,
		Domain: ErrorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// FromStatus converts a gRPC status error back to a Redfish error. Errors
// that do not carry a status are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		for _, k := range kinds {
			if k.reason == info.GetReason() {
				return &RemoteError{Code: st.Code(), Message: st.Message(), Err: k.err}
			}
		}
	}

	var sentinel error
	switch st.Code() {
	case codes.Canceled:
		sentinel = context.Canceled
	case codes.DeadlineExceeded:
		sentinel = context.DeadlineExceeded
	case codes.NotFound:
		sentinel = common.ErrNotFound
	case codes.AlreadyExists:
		sentinel = common.ErrAlreadyExists
	case codes.PermissionDenied, codes.Unauthenticated:
		sentinel = common.ErrPermission
	case codes.InvalidArgument:
		sentinel = common.ErrInvalidArgument
	case codes.OutOfRange:
		sentinel = common.ErrIndexOutOfBounds
	case codes.Unimplemented:
		sentinel = common.ErrNotImplemented
	case codes.Unavailable:
		sentinel = common.ErrConnection
	default:
		sentinel = common.ErrIO
	}
	return &RemoteError{Code: st.Code(), Message: st.Message(), Err: sentinel}
}
