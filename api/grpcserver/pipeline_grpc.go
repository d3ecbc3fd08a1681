package grpcserver

import (
	context "context"

	grpc "google.golang.org/grpc"
	emptypb "google.golang.org/protobuf/types/known/emptypb"
	structpb "google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName                      = "tickloop.v1.Pipeline"
	Pipeline_GetStats_FullMethodName = "/tickloop.v1.Pipeline/GetStats"
)

// PipelineServer is the server API for the tickloop.v1.Pipeline service.
type PipelineServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterPipelineServer(s grpc.ServiceRegistrar, srv PipelineServer) {
	s.RegisterService(&Pipeline_ServiceDesc, srv)
}

func _Pipeline_GetStats_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Pipeline_GetStats_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PipelineServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Pipeline_ServiceDesc is the grpc.ServiceDesc for the Pipeline service.
var Pipeline_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStats",
			Handler:    _Pipeline_GetStats_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tickloop/v1/pipeline.proto",
}

// GetStats calls the Pipeline service through conn.
func GetStats(ctx context.Context, conn grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, Pipeline_GetStats_FullMethodName, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
