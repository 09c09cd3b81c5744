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

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "redfish.v1.Metadata"

// Method names of the Metadata service.
const (
	MethodConnect           = "Connect"
	MethodDisconnect        = "Disconnect"
	MethodCreate            = "Create"
	MethodOpen              = "Open"
	MethodMkdirs            = "Mkdirs"
	MethodListDirectory     = "ListDirectory"
	MethodGetPathStatus     = "GetPathStatus"
	MethodGetBlockLocations = "GetBlockLocations"
	MethodUnlink            = "Unlink"
	MethodUnlinkTree        = "UnlinkTree"
	MethodRename            = "Rename"
	MethodChmod             = "Chmod"
	MethodChown             = "Chown"
	MethodSetTimes          = "SetTimes"
	MethodWrite             = "Write"
	MethodFlush             = "Flush"
	MethodRead              = "Read"
	MethodSeek              = "Seek"
	MethodTell              = "Tell"
	MethodAvailable         = "Available"
	MethodCloseHandle       = "CloseHandle"
)

// FullMethod returns the "/service/method" path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// MetadataServer is the server side of the Metadata service.
type MetadataServer interface {
	Connect(context.Context, *ConnectRequest) (*ConnectResponse, error)
	Disconnect(context.Context, *SessionRequest) (*Empty, error)
	Create(context.Context, *CreateRequest) (*HandleResponse, error)
	Open(context.Context, *PathRequest) (*HandleResponse, error)
	Mkdirs(context.Context, *MkdirsRequest) (*BoolResponse, error)
	ListDirectory(context.Context, *PathRequest) (*ListResponse, error)
	GetPathStatus(context.Context, *PathRequest) (*StatusResponse, error)
	GetBlockLocations(context.Context, *BlockLocationsRequest) (*BlockLocationsResponse, error)
	Unlink(context.Context, *PathRequest) (*BoolResponse, error)
	UnlinkTree(context.Context, *PathRequest) (*BoolResponse, error)
	Rename(context.Context, *RenameRequest) (*Empty, error)
	Chmod(context.Context, *ChmodRequest) (*Empty, error)
	Chown(context.Context, *ChownRequest) (*Empty, error)
	SetTimes(context.Context, *SetTimesRequest) (*Empty, error)
	Write(context.Context, *WriteRequest) (*CountResponse, error)
	Flush(context.Context, *HandleRequest) (*Empty, error)
	Read(context.Context, *ReadRequest) (*ReadResponse, error)
	Seek(context.Context, *SeekRequest) (*Empty, error)
	Tell(context.Context, *HandleRequest) (*CountResponse, error)
	Available(context.Context, *HandleRequest) (*CountResponse, error)
	CloseHandle(context.Context, *HandleRequest) (*Empty, error)
}

// unary builds the method descriptor of one unary RPC.
func unary[Req, Resp any](name string, call func(MetadataServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "decode %s request: %v", name, err)
			}
			if interceptor == nil {
				return call(srv.(MetadataServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MetadataServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the Metadata service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MetadataServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodConnect, MetadataServer.Connect),
		unary(MethodDisconnect, MetadataServer.Disconnect),
		unary(MethodCreate, MetadataServer.Create),
		unary(MethodOpen, MetadataServer.Open),
		unary(MethodMkdirs, MetadataServer.Mkdirs),
		unary(MethodListDirectory, MetadataServer.ListDirectory),
		unary(MethodGetPathStatus, MetadataServer.GetPathStatus),
		unary(MethodGetBlockLocations, MetadataServer.GetBlockLocations),
		unary(MethodUnlink, MetadataServer.Unlink),
		unary(MethodUnlinkTree, MetadataServer.UnlinkTree),
		unary(MethodRename, MetadataServer.Rename),
		unary(MethodChmod, MetadataServer.Chmod),
		unary(MethodChown, MetadataServer.Chown),
		unary(MethodSetTimes, MetadataServer.SetTimes),
		unary(MethodWrite, MetadataServer.Write),
		unary(MethodFlush, MetadataServer.Flush),
		unary(MethodRead, MetadataServer.Read),
		unary(MethodSeek, MetadataServer.Seek),
		unary(MethodTell, MetadataServer.Tell),
		unary(MethodAvailable, MetadataServer.Available),
		unary(MethodCloseHandle, MetadataServer.CloseHandle),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "redfish/v1/metadata",
}

// RegisterMetadataServer registers srv with a gRPC server.
func RegisterMetadataServer(s grpc.ServiceRegistrar, srv MetadataServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// MetadataClient is the client side of the Metadata service.
type MetadataClient struct {
	cc grpc.ClientConnInterface
}

// NewMetadataClient wraps a client connection.
func NewMetadataClient(cc grpc.ClientConnInterface) *MetadataClient {
	return &MetadataClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}

func (c *MetadataClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error) {
	return invoke[ConnectResponse](ctx, c.cc, MethodConnect, in, opts)
}

func (c *MetadataClient) Disconnect(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodDisconnect, in, opts)
}

func (c *MetadataClient) Create(ctx context.Context, in *CreateRequest, opts ...grpc.CallOption) (*HandleResponse, error) {
	return invoke[HandleResponse](ctx, c.cc, MethodCreate, in, opts)
}

func (c *MetadataClient) Open(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*HandleResponse, error) {
	return invoke[HandleResponse](ctx, c.cc, MethodOpen, in, opts)
}

func (c *MetadataClient) Mkdirs(ctx context.Context, in *MkdirsRequest, opts ...grpc.CallOption) (*BoolResponse, error) {
	return invoke[BoolResponse](ctx, c.cc, MethodMkdirs, in, opts)
}

func (c *MetadataClient) ListDirectory(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*ListResponse, error) {
	return invoke[ListResponse](ctx, c.cc, MethodListDirectory, in, opts)
}

func (c *MetadataClient) GetPathStatus(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, MethodGetPathStatus, in, opts)
}

func (c *MetadataClient) GetBlockLocations(ctx context.Context, in *BlockLocationsRequest, opts ...grpc.CallOption) (*BlockLocationsResponse, error) {
	return invoke[BlockLocationsResponse](ctx, c.cc, MethodGetBlockLocations, in, opts)
}

func (c *MetadataClient) Unlink(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*BoolResponse, error) {
	return invoke[BoolResponse](ctx, c.cc, MethodUnlink, in, opts)
}

func (c *MetadataClient) UnlinkTree(ctx context.Context, in *PathRequest, opts ...grpc.CallOption) (*BoolResponse, error) {
	return invoke[BoolResponse](ctx, c.cc, MethodUnlinkTree, in, opts)
}

func (c *MetadataClient) Rename(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRename, in, opts)
}

func (c *MetadataClient) Chmod(ctx context.Context, in *ChmodRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodChmod, in, opts)
}

func (c *MetadataClient) Chown(ctx context.Context, in *ChownRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodChown, in, opts)
}

func (c *MetadataClient) SetTimes(ctx context.Context, in *SetTimesRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodSetTimes, in, opts)
}

func (c *MetadataClient) Write(ctx context.Context, in *WriteRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, MethodWrite, in, opts)
}

func (c *MetadataClient) Flush(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodFlush, in, opts)
}

func (c *MetadataClient) Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (*ReadResponse, error) {
	return invoke[ReadResponse](ctx, c.cc, MethodRead, in, opts)
}

func (c *MetadataClient) Seek(ctx context.Context, in *SeekRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodSeek, in, opts)
}

func (c *MetadataClient) Tell(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, MethodTell, in, opts)
}

func (c *MetadataClient) Available(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, MethodAvailable, in, opts)
}

func (c *MetadataClient) CloseHandle(ctx context.Context, in *HandleRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodCloseHandle, in, opts)
}
