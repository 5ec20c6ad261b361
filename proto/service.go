// Package proto defines the gRPC service interface for GopherLock.
//
// In a full protoc workflow you would generate this with protoc-gen-go-grpc.
// This hand-written version keeps the project self-contained; messages are
// plain structs carried by the JSON codec registered in codec.go.
package proto

import (
	"context"

	"google.golang.org/grpc"
)

const (
	serviceName       = "gopherlock.LockService"
	methodLockFull    = "/" + serviceName + "/Lock"
	methodGetFileFull = "/" + serviceName + "/GetFile"
)

// LockServiceServer is the server-side interface for the LockService.
type LockServiceServer interface {
	Lock(context.Context, *LockRequest) (*LockResponse, error)
	GetFile(context.Context, *GetFileRequest) (*FileResponse, error)
}

// LockServiceClient is the client-side interface for the LockService.
type LockServiceClient interface {
	Lock(ctx context.Context, in *LockRequest, opts ...grpc.CallOption) (*LockResponse, error)
	GetFile(ctx context.Context, in *GetFileRequest, opts ...grpc.CallOption) (*FileResponse, error)
}

// ---- server registration ----

// ServiceDesc is the grpc.ServiceDesc for the LockService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Lock",
			Handler:    _LockService_Lock_Handler,
		},
		{
			MethodName: "GetFile",
			Handler:    _LockService_GetFile_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/gopherlock.proto",
}

// RegisterLockServiceServer registers the server implementation with a gRPC server.
func RegisterLockServiceServer(s grpc.ServiceRegistrar, srv LockServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func _LockService_Lock_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockServiceServer).Lock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLockFull}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LockServiceServer).Lock(ctx, req.(*LockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _LockService_GetFile_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetFileRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LockServiceServer).GetFile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetFileFull}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LockServiceServer).GetFile(ctx, req.(*GetFileRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ---- client implementation ----

type lockServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLockServiceClient creates a new LockService gRPC client. Every call
// uses the JSON codec.
func NewLockServiceClient(cc grpc.ClientConnInterface) LockServiceClient {
	return &lockServiceClient{cc: cc}
}

func (c *lockServiceClient) Lock(ctx context.Context, in *LockRequest, opts ...grpc.CallOption) (*LockResponse, error) {
	out := new(LockResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	err := c.cc.Invoke(ctx, methodLockFull, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *lockServiceClient) GetFile(ctx context.Context, in *GetFileRequest, opts ...grpc.CallOption) (*FileResponse, error) {
	out := new(FileResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	err := c.cc.Invoke(ctx, methodGetFileFull, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}
