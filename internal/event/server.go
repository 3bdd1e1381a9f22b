package event

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/agileboard/internal/auth"
	"github.com/kazz187/agileboard/internal/eventbus"
	"github.com/kazz187/agileboard/internal/rpc"
)

const subscriberBuffer = 64

type Server struct {
	eventBus *eventbus.Bus
}

func NewServer(eventBus *eventbus.Bus) *Server {
	return &Server{eventBus: eventBus}
}

func NewHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(rpc.SubscribeTaskEventsProcedure, connect.NewServerStreamHandler(rpc.SubscribeTaskEventsProcedure, s.SubscribeTaskEvents, opts...))
	return "/" + rpc.EventServiceName + "/", mux
}

// SubscribeTaskEvents streams the caller's row changes until the client goes
// away or the server shuts down.
func (s *Server) SubscribeTaskEvents(ctx context.Context, _ *connect.Request[rpc.SubscribeTaskEventsRequest], stream *connect.ServerStream[rpc.TaskEvent]) error {
	ownerID, err := auth.RequireOwner(ctx)
	if err != nil {
		return err
	}
	subID, ch := s.eventBus.Subscribe(ownerID, subscriberBuffer)
	defer s.eventBus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(event); err != nil {
				return err
			}
		}
	}
}
