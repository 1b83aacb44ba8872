package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "consentwatch.v1.ComplianceService"

// Full method names, as clients invoke them.
const (
	MethodEvaluateExchange = "/" + ServiceName + "/EvaluateExchange"
	MethodEvaluateText     = "/" + ServiceName + "/EvaluateText"
	MethodHistory          = "/" + ServiceName + "/History"
)

// ComplianceServer is the server API of ComplianceService. Every message is
// a google.protobuf.Struct carrying the JSON form of the request or result.
type ComplianceServer interface {
	EvaluateExchange(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterComplianceServer registers srv on s.
func RegisterComplianceServer(s grpc.ServiceRegistrar, srv ComplianceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes ComplianceService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ComplianceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "EvaluateExchange", Handler: unary(MethodEvaluateExchange, ComplianceServer.EvaluateExchange)},
		{MethodName: "EvaluateText", Handler: unary(MethodEvaluateText, ComplianceServer.EvaluateText)},
		{MethodName: "History", Handler: unary(MethodHistory, ComplianceServer.History)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "consentwatch/v1/compliance.proto",
}

type structMethod func(ComplianceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ComplianceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ComplianceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
