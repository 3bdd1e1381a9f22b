package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"connectrpc.com/connect"

	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/clog"
)

const bearerPrefix = "Bearer "

func bearerToken(h http.Header) string {
	v := h.Get("Authorization")
	if len(v) > len(bearerPrefix) && strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return v[len(bearerPrefix):]
	}
	return ""
}

// Interceptor authenticates incoming calls and puts the caller's claims in
// the context. Procedures listed as public pass through untouched.
type Interceptor struct {
	tokens *Tokens
	public []string
}

func NewInterceptor(tokens *Tokens, publicProcedures ...string) *Interceptor {
	return &Interceptor{tokens: tokens, public: publicProcedures}
}

func (i *Interceptor) authenticate(ctx context.Context, procedure string, h http.Header) (context.Context, error) {
	if slices.Contains(i.public, procedure) {
		return ctx, nil
	}
	token := bearerToken(h)
	if token == "" {
		return nil, cerr.NewError(cerr.Unauthenticated, "sign in required", nil)
	}
	claims, err := i.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	clog.AddOwner(ctx, claims.Subject)
	return WithOwner(ctx, claims), nil
}

func (i *Interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx, err := i.authenticate(ctx, req.Spec().Procedure, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (i *Interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *Interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := i.authenticate(ctx, conn.Spec().Procedure, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

// HTTPMiddleware authenticates plain HTTP routes the same way.
func (i *Interceptor) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := i.authenticate(r.Context(), "", r.Header)
		if err != nil {
			cerr.SetJSONError(r.Context(), err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerInterceptor adds the current access token to outgoing requests.
type BearerInterceptor struct {
	token func() string
}

func NewBearerInterceptor(token func() string) *BearerInterceptor {
	return &BearerInterceptor{token: token}
}

func (i *BearerInterceptor) set(h http.Header) {
	if tok := i.token(); tok != "" {
		h.Set("Authorization", bearerPrefix+tok)
	}
}

func (i *BearerInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		i.set(req.Header())
		return next(ctx, req)
	}
}

func (i *BearerInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		i.set(conn.RequestHeader())
		return conn
	}
}

func (i *BearerInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
