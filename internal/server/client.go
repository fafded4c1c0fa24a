package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// BalanceServiceClient calls balance.v1.BalanceService over an existing connection.
type BalanceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBalanceServiceClient(cc grpc.ClientConnInterface) *BalanceServiceClient {
	return &BalanceServiceClient{cc: cc}
}

func (c *BalanceServiceClient) CreateRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateRun", in, opts...)
}

func (c *BalanceServiceClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRun", in, opts...)
}

func (c *BalanceServiceClient) StopRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopRun", in, opts...)
}

func (c *BalanceServiceClient) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListRuns", in, opts...)
}

func (c *BalanceServiceClient) ListSystems(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListSystems", in, opts...)
}

func (c *BalanceServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+BalanceServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
