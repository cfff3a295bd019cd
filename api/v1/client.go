package apiv1

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// SupervisorClient calls a Supervisor server over cc.
type SupervisorClient struct {
	cc grpc.ClientConnInterface
}

func NewSupervisorClient(cc grpc.ClientConnInterface) *SupervisorClient {
	return &SupervisorClient{cc: cc}
}

func (c *SupervisorClient) Run(ctx context.Context, in *RunRequest, opts ...grpc.CallOption) (*RunResponse, error) {
	return invoke(ctx, c.cc, Supervisor_Run_FullMethodName, in, runResponseFromStruct, opts)
}

func (c *SupervisorClient) StartWatch(ctx context.Context, in *StartWatchRequest, opts ...grpc.CallOption) (*WatchStatus, error) {
	return invoke(ctx, c.cc, Supervisor_StartWatch_FullMethodName, in, watchStatusFromStruct, opts)
}

func (c *SupervisorClient) StopWatch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (*WatchStatus, error) {
	return invoke(ctx, c.cc, Supervisor_StopWatch_FullMethodName, in, watchStatusFromStruct, opts)
}

func (c *SupervisorClient) WatchStatus(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (*WatchStatus, error) {
	return invoke(ctx, c.cc, Supervisor_WatchStatus_FullMethodName, in, watchStatusFromStruct, opts)
}

func invoke[Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in interface{ toStruct() (*structpb.Struct, error) },
	decode func(*structpb.Struct) (Resp, error),
	opts []grpc.CallOption,
) (Resp, error) {
	var zero Resp
	req, err := in.toStruct()
	if err != nil {
		return zero, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return zero, err
	}
	resp, err := decode(out)
	if err != nil {
		return zero, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}
