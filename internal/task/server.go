package task

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agileboard/internal/auth"
	"github.com/kazz187/agileboard/internal/eventbus"
	"github.com/kazz187/agileboard/internal/rpc"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/clog"
)

type Server struct {
	repo     Repository
	eventBus *eventbus.Bus
	now      func() time.Time
	rows     rowLocks
}

func NewServer(repo Repository, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:     repo,
		eventBus: eventBus,
		now:      time.Now,
	}
}

// NewHandler mounts the task procedures under one path prefix.
func NewHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(rpc.QueryTasksProcedure, connect.NewUnaryHandler(rpc.QueryTasksProcedure, s.QueryTasks, opts...))
	mux.Handle(rpc.InsertTaskProcedure, connect.NewUnaryHandler(rpc.InsertTaskProcedure, s.InsertTask, opts...))
	mux.Handle(rpc.UpdateTaskProcedure, connect.NewUnaryHandler(rpc.UpdateTaskProcedure, s.UpdateTask, opts...))
	mux.Handle(rpc.DeleteTaskProcedure, connect.NewUnaryHandler(rpc.DeleteTaskProcedure, s.DeleteTask, opts...))
	return "/" + rpc.TaskServiceName + "/", mux
}

func (s *Server) QueryTasks(ctx context.Context, _ *connect.Request[rpc.QueryTasksRequest]) (*connect.Response[rpc.QueryTasksResponse], error) {
	ownerID, err := auth.RequireOwner(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&rpc.QueryTasksResponse{
		Tasks: ToWireAll(tasks),
	}), nil
}

func (s *Server) InsertTask(ctx context.Context, req *connect.Request[rpc.InsertTaskRequest]) (*connect.Response[rpc.InsertTaskResponse], error) {
	ownerID, err := auth.RequireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.Task == nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "task is required", nil)
	}
	t := FromWire(req.Msg.Task)
	now := s.now()
	t.ID = ulid.Make().String()
	t.OwnerID = ownerID
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = StatusPlanning
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	clog.AddAttribute(ctx, "task_id", t.ID)

	w := ToWire(t)
	s.eventBus.PublishNew(rpc.EventInserted, w)
	return connect.NewResponse(&rpc.InsertTaskResponse{Task: w}), nil
}

func (s *Server) UpdateTask(ctx context.Context, req *connect.Request[rpc.UpdateTaskRequest]) (*connect.Response[rpc.UpdateTaskResponse], error) {
	unlock := s.rows.lock(req.Msg.ID)
	defer unlock()
	t, err := s.ownedTask(ctx, req.Msg.ID)
	if err != nil {
		return nil, err
	}
	var p Patch
	if err := json.Unmarshal(req.Msg.Patch, &p); err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid patch", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.Persisted()
	if !p.UpdatedAt.IsSet() {
		p.UpdatedAt = Set(s.now())
	}
	p.Apply(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	w := ToWire(t)
	s.eventBus.PublishNew(rpc.EventUpdated, w)
	return connect.NewResponse(&rpc.UpdateTaskResponse{Task: w}), nil
}

func (s *Server) DeleteTask(ctx context.Context, req *connect.Request[rpc.DeleteTaskRequest]) (*connect.Response[rpc.DeleteTaskResponse], error) {
	unlock := s.rows.lock(req.Msg.ID)
	defer unlock()
	t, err := s.ownedTask(ctx, req.Msg.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		return nil, err
	}

	s.eventBus.PublishNew(rpc.EventDeleted, ToWire(t))
	return connect.NewResponse(&rpc.DeleteTaskResponse{}), nil
}

// ownedTask loads a row of the caller. Rows of other owners are reported as
// missing.
func (s *Server) ownedTask(ctx context.Context, id string) (*Task, error) {
	ownerID, err := auth.RequireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "id is required", nil)
	}
	clog.AddAttribute(ctx, "task_id", id)
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return t, nil
}
