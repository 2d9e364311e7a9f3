package rpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "wraith.analysis.v1.Analysis"

// AnalysisServer is the server API for the Analysis gRPC service.
//
// Requests and responses are structpb.Struct values so the package needs
// no protoc/codegen toolchain. Field names are documented on Server.
type AnalysisServer interface {
	Decode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Decrypt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Assemble(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedAnalysisServer can be embedded to have forward compatible implementations.
type UnimplementedAnalysisServer struct{}

func (UnimplementedAnalysisServer) Decode(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Decode not implemented")
}
func (UnimplementedAnalysisServer) Decrypt(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Decrypt not implemented")
}
func (UnimplementedAnalysisServer) Assemble(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Assemble not implemented")
}
func (UnimplementedAnalysisServer) Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Analyze not implemented")
}

// RegisterAnalysisServer registers the Analysis service on a gRPC server.
func RegisterAnalysisServer(s grpc.ServiceRegistrar, srv AnalysisServer) {
	s.RegisterService(&Analysis_ServiceDesc, srv)
}

// AnalysisClient is the client API for the Analysis gRPC service.
type AnalysisClient interface {
	Decode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Decrypt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Assemble(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type analysisClient struct{ cc grpc.ClientConnInterface }

func NewAnalysisClient(cc grpc.ClientConnInterface) AnalysisClient { return &analysisClient{cc: cc} }

func (c *analysisClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *analysisClient) Decode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Decode", in, opts...)
}

func (c *analysisClient) Decrypt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Decrypt", in, opts...)
}

func (c *analysisClient) Assemble(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Assemble", in, opts...)
}

func (c *analysisClient) Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Analyze", in, opts...)
}

type unaryMethod func(AnalysisServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// handler adapts one AnalysisServer method to a grpc.MethodDesc handler.
func handler(name string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AnalysisServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		h := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AnalysisServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, h)
	}
}

// Analysis_ServiceDesc is the grpc.ServiceDesc for the Analysis service.
var Analysis_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AnalysisServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decode", Handler: handler("Decode", AnalysisServer.Decode)},
		{MethodName: "Decrypt", Handler: handler("Decrypt", AnalysisServer.Decrypt)},
		{MethodName: "Assemble", Handler: handler("Assemble", AnalysisServer.Assemble)},
		{MethodName: "Analyze", Handler: handler("Analyze", AnalysisServer.Analyze)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "analysis.proto",
}
