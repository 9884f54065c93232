package client

import (
	"context"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/rpc"
)

// GRPCClient implements ApprovalClient using the gRPC transport.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

var _ ApprovalClient = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) RequestTransition(ctx context.Context, req *TransitionRequest) (*approval.TransitionResult, error) {
	var res approval.TransitionResult
	err := c.invoke(ctx, rpc.MethodRequestTransition, rpc.TransitionRequest{
		TaskID:   req.TaskID,
		Actor:    req.Actor,
		ToStatus: req.ToStatus,
		Comment:  req.Comment,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *GRPCClient) CastBallot(ctx context.Context, req *BallotRequest) (*approval.BallotResult, error) {
	var res approval.BallotResult
	err := c.invoke(ctx, rpc.MethodCastBallot, rpc.BallotRequest{
		ApprovalID: req.ApprovalID,
		Actor:      req.Actor,
		Vote:       req.Vote,
		Comment:    req.Comment,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *GRPCClient) CancelApproval(ctx context.Context, approvalID, actor string) (*model.PendingApproval, error) {
	var res rpc.ApprovalResponse
	if err := c.invoke(ctx, rpc.MethodCancelApproval, rpc.CancelRequest{ApprovalID: approvalID, Actor: actor}, &res); err != nil {
		return nil, err
	}
	return res.Approval, nil
}

func (c *GRPCClient) GetApprovalState(ctx context.Context, taskID string) (*model.PendingApproval, error) {
	var res rpc.ApprovalResponse
	if err := c.invoke(ctx, rpc.MethodGetApprovalState, rpc.ApprovalStateRequest{TaskID: taskID}, &res); err != nil {
		return nil, err
	}
	return res.Approval, nil
}

func (c *GRPCClient) IsLegal(ctx context.Context, from, to model.Status) (bool, error) {
	var res rpc.IsLegalResponse
	if err := c.invoke(ctx, rpc.MethodIsLegal, rpc.IsLegalRequest{From: from, To: to}, &res); err != nil {
		return false, err
	}
	return res.Legal, nil
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := rpc.Encode(req)
	if err != nil {
		return err
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, rpc.FullMethod(method), in, out); err != nil {
		return fromStatus(err)
	}
	return rpc.Decode(out, resp)
}

// RPCError is a failed call. It unwraps to the approval sentinel named by
// the server's ErrorInfo reason, so callers can test it with errors.Is.
type RPCError struct {
	Status *status.Status
	Kind   string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: %s", e.Status.Code(), e.Status.Message())
}

func (e *RPCError) Unwrap() error {
	return approval.KindError(e.Kind)
}

// GRPCStatus lets status.FromError see through the wrapper.
func (e *RPCError) GRPCStatus() *status.Status { return e.Status }

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	rerr := &RPCError{Status: st}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			rerr.Kind = info.GetReason()
			break
		}
	}
	return rerr
}
