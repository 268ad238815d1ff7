package mgmt

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
)

// ManagementServer is HarmonyManagement's server contract: three unary RPCs
// returning the same listings the HTTP surface serves as JSON, each carried
// as a google.protobuf.Struct (structpb) rather than a hand-maintained
// generated message set — structpb is itself a real, fully wire-compatible
// google.golang.org/protobuf type, so no .proto compilation step is needed
// to exercise the real gRPC/protobuf stack end to end.
type ManagementServer interface {
	GetInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPipelines(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRoutes(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// grpcServer adapts Service to ManagementServer.
type grpcServer struct {
	svc *Service
}

func (g *grpcServer) GetInfo(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(g.svc.Info())
}

func (g *grpcServer) ListPipelines(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"pipelines": g.svc.Pipelines()})
}

func (g *grpcServer) ListRoutes(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"routes": g.svc.Routes()})
}

// toStruct round-trips v through JSON into the plain-value shape
// structpb.NewStruct requires (map[string]any of string/bool/number/nil/
// []any/map[string]any).
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

const serviceName = "harmony.management.HarmonyManagement"

// ManagementServiceDesc is the hand-authored equivalent of what
// protoc-gen-go-grpc emits for a HarmonyManagement service with GetInfo,
// ListPipelines, and ListRoutes unary RPCs — grpc.ServiceDesc is a plain Go
// value, so authoring it directly (rather than generating it from a .proto
// file) is a standard escape hatch the grpc-go project itself documents for
// services built around structpb/dynamic messages.
var ManagementServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ManagementServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetInfo", Handler: handleGetInfo},
		{MethodName: "ListPipelines", Handler: handleListPipelines},
		{MethodName: "ListRoutes", Handler: handleListRoutes},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/mgmt/management.proto",
}

func handleGetInfo(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagementServer).GetInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetInfo"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagementServer).GetInfo(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func handleListPipelines(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagementServer).ListPipelines(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListPipelines"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagementServer).ListPipelines(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func handleListRoutes(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ManagementServer).ListRoutes(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListRoutes"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ManagementServer).ListRoutes(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterManagementServer registers srv on s, the hand-authored analogue
// of a generated RegisterHarmonyManagementServer function.
func RegisterManagementServer(s *grpc.Server, srv ManagementServer) {
	s.RegisterService(&ManagementServiceDesc, srv)
}

// NewGRPCServer builds a *grpc.Server exposing svc's three listings over
// HarmonyManagement, instrumented with otelgrpc's stats handler exactly as
// coreengine/grpc/server.go wires its own gRPC server's observability.
func NewGRPCServer(svc *Service, extra ...grpc.ServerOption) *grpc.Server {
	opts := append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, extra...)
	s := grpc.NewServer(opts...)
	RegisterManagementServer(s, &grpcServer{svc: svc})
	return s
}
