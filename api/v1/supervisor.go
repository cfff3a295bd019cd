// Package apiv1 is the wire contract of the processwatchdog.v1.Supervisor
// gRPC service. Payloads travel as google.protobuf.Struct and are converted
// to the typed requests and responses in this package on both ends.
package apiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "processwatchdog.v1.Supervisor"

const (
	Supervisor_Run_FullMethodName         = "/" + ServiceName + "/Run"
	Supervisor_StartWatch_FullMethodName  = "/" + ServiceName + "/StartWatch"
	Supervisor_StopWatch_FullMethodName   = "/" + ServiceName + "/StopWatch"
	Supervisor_WatchStatus_FullMethodName = "/" + ServiceName + "/WatchStatus"
)

// SupervisorServer is implemented by the server.
type SupervisorServer interface {
	Run(context.Context, *RunRequest) (*RunResponse, error)
	StartWatch(context.Context, *StartWatchRequest) (*WatchStatus, error)
	StopWatch(context.Context, *WatchRequest) (*WatchStatus, error)
	WatchStatus(context.Context, *WatchRequest) (*WatchStatus, error)
}

// UnimplementedSupervisorServer can be embedded to stay forward compatible.
type UnimplementedSupervisorServer struct{}

func (UnimplementedSupervisorServer) Run(context.Context, *RunRequest) (*RunResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Run not implemented")
}

func (UnimplementedSupervisorServer) StartWatch(context.Context, *StartWatchRequest) (*WatchStatus, error) {
	return nil, status.Error(codes.Unimplemented, "method StartWatch not implemented")
}

func (UnimplementedSupervisorServer) StopWatch(context.Context, *WatchRequest) (*WatchStatus, error) {
	return nil, status.Error(codes.Unimplemented, "method StopWatch not implemented")
}

func (UnimplementedSupervisorServer) WatchStatus(context.Context, *WatchRequest) (*WatchStatus, error) {
	return nil, status.Error(codes.Unimplemented, "method WatchStatus not implemented")
}

func RegisterSupervisorServer(s grpc.ServiceRegistrar, srv SupervisorServer) {
	s.RegisterService(&Supervisor_ServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodDesc. Decoding errors are
// reported as InvalidArgument before the interceptor runs.
func unaryHandler[Req any, Resp interface{ toStruct() (*structpb.Struct, error) }](
	fullMethod string,
	decode func(*structpb.Struct) (Req, error),
	call func(SupervisorServer, context.Context, Req) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		req, err := decode(in)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
		}

		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := call(srv.(SupervisorServer), ctx, req.(Req))
			if err != nil {
				return nil, err
			}
			out, err := resp.toStruct()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
			}
			return out, nil
		}
		if interceptor == nil {
			return handler(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, req, info, handler)
	}
}

// Supervisor_ServiceDesc is the grpc.ServiceDesc for the Supervisor service.
var Supervisor_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SupervisorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Run",
			Handler: unaryHandler(Supervisor_Run_FullMethodName, runRequestFromStruct,
				func(s SupervisorServer, ctx context.Context, req *RunRequest) (*RunResponse, error) {
					return s.Run(ctx, req)
				}),
		},
		{
			MethodName: "StartWatch",
			Handler: unaryHandler(Supervisor_StartWatch_FullMethodName, startWatchRequestFromStruct,
				func(s SupervisorServer, ctx context.Context, req *StartWatchRequest) (*WatchStatus, error) {
					return s.StartWatch(ctx, req)
				}),
		},
		{
			MethodName: "StopWatch",
			Handler: unaryHandler(Supervisor_StopWatch_FullMethodName, watchRequestFromStruct,
				func(s SupervisorServer, ctx context.Context, req *WatchRequest) (*WatchStatus, error) {
					return s.StopWatch(ctx, req)
				}),
		},
		{
			MethodName: "WatchStatus",
			Handler: unaryHandler(Supervisor_WatchStatus_FullMethodName, watchRequestFromStruct,
				func(s SupervisorServer, ctx context.Context, req *WatchRequest) (*WatchStatus, error) {
					return s.WatchStatus(ctx, req)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "processwatchdog/v1/supervisor.proto",
}
