package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// BalanceServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages, so clients need no generated
// stubs beyond the well-known types.
const BalanceServiceName = "balance.v1.BalanceService"

// BalanceServiceServer is the server API for balance.v1.BalanceService.
type BalanceServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSystems(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// BalanceServiceDesc describes the service for grpc.Server.RegisterService.
var BalanceServiceDesc = grpc.ServiceDesc{
	ServiceName: BalanceServiceName,
	HandlerType: (*BalanceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateRun", Handler: unaryHandler("CreateRun", BalanceServiceServer.CreateRun)},
		{MethodName: "GetRun", Handler: unaryHandler("GetRun", BalanceServiceServer.GetRun)},
		{MethodName: "StopRun", Handler: unaryHandler("StopRun", BalanceServiceServer.StopRun)},
		{MethodName: "ListRuns", Handler: unaryHandler("ListRuns", BalanceServiceServer.ListRuns)},
		{MethodName: "ListSystems", Handler: unaryHandler("ListSystems", BalanceServiceServer.ListSystems)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "balance/v1/balance.proto",
}

// RegisterBalanceServiceServer registers srv on a gRPC server.
func RegisterBalanceServiceServer(s grpc.ServiceRegistrar, srv BalanceServiceServer) {
	s.RegisterService(&BalanceServiceDesc, srv)
}

type unaryMethod func(BalanceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + BalanceServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BalanceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BalanceServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BalanceGRPCServer implements BalanceServiceServer on top of a RunStore and Executor.
type BalanceGRPCServer struct {
	store    *RunStore
	reg      *registry.Registry
	Executor *Executor
}

func NewBalanceGRPCServer(store *RunStore, executor *Executor, reg *registry.Registry) *BalanceGRPCServer {
	return &BalanceGRPCServer{
		store:    store,
		reg:      reg,
		Executor: executor,
	}
}

func (s *BalanceGRPCServer) CreateRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	yamlText := stringField(req, "scenario_yaml")
	if yamlText == "" {
		return nil, status.Error(codes.InvalidArgument, "scenario_yaml is required")
	}

	rec, err := s.Executor.Submit(stringField(req, "run_id"), yamlText)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunExists):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		case errors.Is(err, ErrInvalidScenario), errors.Is(err, ErrInvalidRunID):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}

	logger.Info("run created", "run_id", rec.ID)
	return runResponse(rec)
}

func (s *BalanceGRPCServer) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return runResponse(rec)
}

func (s *BalanceGRPCServer) StopRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(req, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}

	updated, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			return nil, status.Error(codes.NotFound, err.Error())
		case errors.Is(err, ErrRunTerminal):
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	logger.Info("run cancelled", "run_id", runID)
	return runResponse(updated)
}

func (s *BalanceGRPCServer) ListRuns(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := defaultListLimit
	if v := numberField(req, "limit"); v > 0 {
		limit = int(min(v, maxListLimit))
	}
	var st RunStatus
	if name := stringField(req, "status"); name != "" {
		st = ParseRunStatus(name)
		if st == "" {
			return nil, status.Error(codes.InvalidArgument, "unknown status: "+name)
		}
	}

	recs := s.store.List(limit, 0, st)
	runs := make([]any, 0, len(recs))
	for _, rec := range recs {
		rec.Result = nil
		m, err := toMap(rec)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		runs = append(runs, m)
	}
	out, err := structpb.NewStruct(map[string]any{"runs": runs})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *BalanceGRPCServer) ListSystems(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{
		"systems": toAnySlice(s.reg.Systems()),
		"genres":  toAnySlice(s.reg.Genres()),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func runResponse(rec RunRecord) (*structpb.Struct, error) {
	m, err := toMap(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(map[string]any{"run": m})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toMap converts a value to the JSON-shaped map structpb accepts.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return m, nil
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

func numberField(s *structpb.Struct, key string) float64 {
	if s == nil {
		return 0
	}
	return s.GetFields()[key].GetNumberValue()
}
