// Package rpc describes the taskgate.v1.ApprovalService gRPC service shared
// by the server and client. Request and response bodies travel as
// google.protobuf.Struct messages holding the same JSON shapes as the HTTP
// API, so the service needs no generated code.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "taskgate.v1.ApprovalService"

// Method names.
const (
	MethodRequestTransition = "RequestTransition"
	MethodCastBallot        = "CastBallot"
	MethodCancelApproval    = "CancelApproval"
	MethodGetApprovalState  = "GetApprovalState"
	MethodIsLegal           = "IsLegal"
)

// FullMethod returns the invoke path of a method, e.g.
// "/taskgate.v1.ApprovalService/CastBallot".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// TransitionRequest is the RequestTransition body.
type TransitionRequest struct {
	TaskID   string       `json:"task_id"`
	Actor    string       `json:"actor"`
	ToStatus model.Status `json:"to_status"`
	Comment  string       `json:"comment,omitempty"`
}

// BallotRequest is the CastBallot body.
type BallotRequest struct {
	ApprovalID string     `json:"approval_id"`
	Actor      string     `json:"actor"`
	Vote       model.Vote `json:"vote"`
	Comment    string     `json:"comment,omitempty"`
}

// CancelRequest is the CancelApproval body.
type CancelRequest struct {
	ApprovalID string `json:"approval_id"`
	Actor      string `json:"actor"`
}

// ApprovalStateRequest is the GetApprovalState body.
type ApprovalStateRequest struct {
	TaskID string `json:"task_id"`
}

// ApprovalResponse wraps an approval that may be absent.
type ApprovalResponse struct {
	Approval *model.PendingApproval `json:"approval"`
}

// IsLegalRequest is the IsLegal body.
type IsLegalRequest struct {
	From model.Status `json:"from"`
	To   model.Status `json:"to"`
}

// IsLegalResponse is the IsLegal result.
type IsLegalResponse struct {
	Legal bool `json:"legal"`
}

// ApprovalServiceServer is the server API for the approval service.
type ApprovalServiceServer interface {
	RequestTransition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CastBallot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelApproval(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetApprovalState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IsLegal(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the approval service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ApprovalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRequestTransition, ApprovalServiceServer.RequestTransition),
		unary(MethodCastBallot, ApprovalServiceServer.CastBallot),
		unary(MethodCancelApproval, ApprovalServiceServer.CancelApproval),
		unary(MethodGetApprovalState, ApprovalServiceServer.GetApprovalState),
		unary(MethodIsLegal, ApprovalServiceServer.IsLegal),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskgate/v1/approval.proto",
}

// RegisterApprovalServiceServer registers srv on s.
func RegisterApprovalServiceServer(s grpc.ServiceRegistrar, srv ApprovalServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryCall func(ApprovalServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ApprovalServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ApprovalServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Encode converts a JSON-serializable value into a Struct. v must encode
// as a JSON object.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out, nil
}

// Decode converts a Struct into v. A nil Struct decodes as an empty object.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
