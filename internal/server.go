package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/agileboard/internal/auth"
	"github.com/kazz187/agileboard/internal/config"
	"github.com/kazz187/agileboard/internal/event"
	"github.com/kazz187/agileboard/internal/rpc"
	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/clog"
)

type Server struct {
	server      *http.Server
	env         *config.HTTPEnv
	authn       *auth.Interceptor
	authServer  *auth.Server
	taskServer  *task.Server
	eventServer *event.Server
}

func NewServer(
	env *config.HTTPEnv,
	authn *auth.Interceptor,
	authServer *auth.Server,
	taskServer *task.Server,
	eventServer *event.Server,
) *Server {
	return &Server{
		env:         env,
		authn:       authn,
		authServer:  authServer,
		taskServer:  taskServer,
		eventServer: eventServer,
	}
}

// Handler assembles every route. It is separate from ListenAndServe so tests
// can mount it on an httptest server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(nil),
			cerr.NewJSONResponseChiMiddleware(),
			s.authn.HTTPMiddleware,
		)
		r.Get("/me", s.authServer.Me)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()

	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker(rpc.ServiceNames...)))

	handlerOpts := []connect.HandlerOption{
		connect.WithInterceptors(s.interceptors()...),
		rpc.WithJSON(),
	}

	mux.Handle(auth.NewHandler(s.authServer, handlerOpts...))
	mux.Handle(task.NewHandler(s.taskServer, handlerOpts...))
	mux.Handle(event.NewHandler(s.eventServer, handlerOpts...))

	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(mux), &http2.Server{})
}

// ListenAndServe starts the HTTP server. ctx is the base context of every
// request, so cancelling it also ends open event streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		clog.NewSlogConnectInterceptor(clog.WithConnectFilter(clog.DefaultConnectHealthCheckFilter)),
		cerr.NewConvertConnectErrorInterceptor(),
		s.authn,
	}
}
