package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/rpc"
)

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the approval service, health and reflection, and returns the
// server ready to serve.
func NewGRPCServer(s *Server, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	rpc.RegisterApprovalServiceServer(srv, &grpcService{s: s})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)
	return srv
}

// grpcService adapts the engine to rpc.ApprovalServiceServer.
type grpcService struct {
	s *Server
}

var _ rpc.ApprovalServiceServer = (*grpcService)(nil)

// decode reads a request body, reporting malformed input as InvalidArgument.
func decode(in *structpb.Struct, v any) error {
	if err := rpc.Decode(in, v); err != nil {
		return grpcError(inputError(fmt.Sprintf("invalid request: %v", err)))
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		return nil, grpcError(err)
	}
	return out, nil
}

func (g *grpcService) RequestTransition(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.TransitionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.TaskID == "" {
		return nil, grpcError(inputError("task_id is required"))
	}
	res, err := g.s.engine.RequestTransition(ctx, approval.TransitionRequest{
		TaskID:      req.TaskID,
		RequesterID: req.Actor,
		ToStatus:    req.ToStatus,
		Comment:     req.Comment,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return encode(res)
}

func (g *grpcService) CastBallot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.BallotRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.ApprovalID == "" {
		return nil, grpcError(inputError("approval_id is required"))
	}
	res, err := g.s.engine.CastBallot(ctx, approval.BallotRequest{
		ApprovalID:    req.ApprovalID,
		StakeholderID: req.Actor,
		Vote:          req.Vote,
		Comment:       req.Comment,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return encode(res)
}

func (g *grpcService) CancelApproval(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.CancelRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.ApprovalID == "" {
		return nil, grpcError(inputError("approval_id is required"))
	}
	a, err := g.s.engine.CancelPendingApproval(ctx, req.ApprovalID, req.Actor)
	if err != nil {
		return nil, grpcError(err)
	}
	return encode(rpc.ApprovalResponse{Approval: a})
}

func (g *grpcService) GetApprovalState(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.ApprovalStateRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	a, err := g.s.engine.GetApprovalState(ctx, req.TaskID)
	if err != nil {
		return nil, grpcError(err)
	}
	return encode(rpc.ApprovalResponse{Approval: a})
}

func (g *grpcService) IsLegal(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.IsLegalRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return encode(rpc.IsLegalResponse{Legal: g.s.engine.IsLegal(req.From, req.To)})
}
