package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agileboard/internal/rpc"
	"github.com/kazz187/agileboard/internal/user"
	"github.com/kazz187/agileboard/pkg/cerr"
)

type Server struct {
	users  user.Repository
	tokens *Tokens
}

func NewServer(users user.Repository, tokens *Tokens) *Server {
	return &Server{users: users, tokens: tokens}
}

// NewHandler mounts the auth procedures under one path prefix.
func NewHandler(s *Server, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(rpc.SignUpProcedure, connect.NewUnaryHandler(rpc.SignUpProcedure, s.SignUp, opts...))
	mux.Handle(rpc.SignInProcedure, connect.NewUnaryHandler(rpc.SignInProcedure, s.SignIn, opts...))
	return "/" + rpc.AuthServiceName + "/", mux
}

func (s *Server) SignUp(ctx context.Context, req *connect.Request[rpc.SignUpRequest]) (*connect.Response[rpc.AuthResponse], error) {
	email, err := user.NormalizeEmail(req.Msg.Email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Msg.Password)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	u := &user.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Server) SignIn(ctx context.Context, req *connect.Request[rpc.SignInRequest]) (*connect.Response[rpc.AuthResponse], error) {
	invalid := cerr.NewError(cerr.Unauthenticated, "invalid email or password", nil)
	email, err := user.NormalizeEmail(req.Msg.Email)
	if err != nil {
		return nil, invalid
	}
	u, err := s.users.GetByEmail(ctx, email)
	if cerr.IsCode(err, cerr.NotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, req.Msg.Password) {
		return nil, invalid
	}
	return s.session(u)
}

func (s *Server) session(u *user.User) (*connect.Response[rpc.AuthResponse], error) {
	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&rpc.AuthResponse{
		Session: &rpc.Session{
			AccessToken: token,
			UserID:      u.ID,
			Email:       u.Email,
			Name:        u.Name,
			ExpiresAt:   expiresAt,
		},
	}), nil
}

// Me serves GET /api/me for an authenticated caller.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, err := RequireOwner(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	u, err := s.users.Get(ctx, ownerID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &rpc.Me{UserID: u.ID, Email: u.Email, Name: u.Name})
}
