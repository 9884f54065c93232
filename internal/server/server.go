package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/events"
	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// Server exposes the approval engine over HTTP and gRPC. It is also the
// engine's notifier: every committed change is recorded as an event,
// published to the event bus and fanned out to SSE clients.
type Server struct {
	engine    *approval.Engine
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
	logger    *slog.Logger
}

// NewServer returns a Server over s. The engine is built here so that it
// notifies the server; opts are passed through to approval.New.
func NewServer(s store.Store, p events.Publisher, authz approval.Authorizer, opts ...approval.Option) *Server {
	srv := &Server{
		store:     s,
		publisher: p,
		sseHub:    newSSEHub(),
		logger:    slog.Default(),
	}
	opts = append([]approval.Option{approval.WithLogger(srv.logger)}, opts...)
	srv.engine = approval.New(s, authz, append(opts, approval.WithNotifier(srv))...)
	return srv
}

// Engine returns the engine behind the server.
func (s *Server) Engine() *approval.Engine { return s.engine }

// Notify implements approval.Notifier.
func (s *Server) Notify(ctx context.Context, n approval.Notification) {
	topic, event := eventFor(n)
	if topic == "" {
		s.logger.Warn("no topic for notification", "kind", n.Kind, "task_id", n.TaskID)
		return
	}
	s.recordAndPublish(ctx, topic, n.TaskID, n.Actor, event)
}

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *Server) recordAndPublish(ctx context.Context, topic, taskID, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "task_id", taskID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:   topic,
		TaskID:  taskID,
		Actor:   actor,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("failed to record event", "topic", topic, "task_id", taskID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "task_id", taskID, "error", err)
	}
	s.sseHub.broadcast(topic, taskID, payload)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
