package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"

	"github.com/kazz187/agileboard/internal/auth"
	"github.com/kazz187/agileboard/internal/rpc"
	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/panicerr"
)

// Client talks to agileboard-server. It implements TaskStore and the calls
// the session provider needs.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	token      func() string

	query     *connect.Client[rpc.QueryTasksRequest, rpc.QueryTasksResponse]
	insert    *connect.Client[rpc.InsertTaskRequest, rpc.InsertTaskResponse]
	update    *connect.Client[rpc.UpdateTaskRequest, rpc.UpdateTaskResponse]
	delete    *connect.Client[rpc.DeleteTaskRequest, rpc.DeleteTaskResponse]
	subscribe *connect.Client[rpc.SubscribeTaskEventsRequest, rpc.TaskEvent]
	signUp    *connect.Client[rpc.SignUpRequest, rpc.AuthResponse]
	signIn    *connect.Client[rpc.SignInRequest, rpc.AuthResponse]
}

var _ TaskStore = (*Client)(nil)

// NewClient builds a client for baseURL. token is read before every call and
// may return "" when signed out.
func NewClient(httpClient connect.HTTPClient, baseURL string, token func() string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts := []connect.ClientOption{
		rpc.WithJSON(),
		connect.WithInterceptors(auth.NewBearerInterceptor(token)),
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		query:      connect.NewClient[rpc.QueryTasksRequest, rpc.QueryTasksResponse](httpClient, baseURL+rpc.QueryTasksProcedure, opts...),
		insert:     connect.NewClient[rpc.InsertTaskRequest, rpc.InsertTaskResponse](httpClient, baseURL+rpc.InsertTaskProcedure, opts...),
		update:     connect.NewClient[rpc.UpdateTaskRequest, rpc.UpdateTaskResponse](httpClient, baseURL+rpc.UpdateTaskProcedure, opts...),
		delete:     connect.NewClient[rpc.DeleteTaskRequest, rpc.DeleteTaskResponse](httpClient, baseURL+rpc.DeleteTaskProcedure, opts...),
		subscribe:  connect.NewClient[rpc.SubscribeTaskEventsRequest, rpc.TaskEvent](httpClient, baseURL+rpc.SubscribeTaskEventsProcedure, opts...),
		signUp:     connect.NewClient[rpc.SignUpRequest, rpc.AuthResponse](httpClient, baseURL+rpc.SignUpProcedure, opts...),
		signIn:     connect.NewClient[rpc.SignInRequest, rpc.AuthResponse](httpClient, baseURL+rpc.SignInProcedure, opts...),
	}
}

// Query returns the rows of the signed-in user. The server scopes by token,
// so ownerID only guards against a token for someone else.
func (c *Client) Query(ctx context.Context, ownerID string) ([]*task.Task, error) {
	resp, err := c.query.CallUnary(ctx, connect.NewRequest(&rpc.QueryTasksRequest{}))
	if err != nil {
		return nil, cerr.FromConnectError(err)
	}
	tasks := make([]*task.Task, 0, len(resp.Msg.Tasks))
	for _, w := range resp.Msg.Tasks {
		if w.OwnerID != ownerID {
			return nil, cerr.NewError(cerr.PermissionDenied, "session belongs to another user", nil)
		}
		tasks = append(tasks, task.FromWire(w))
	}
	task.SortByOrder(tasks)
	return tasks, nil
}

func (c *Client) Insert(ctx context.Context, t *task.Task) (*task.Task, error) {
	w := task.ToWire(t)
	w.ID = ""
	resp, err := c.insert.CallUnary(ctx, connect.NewRequest(&rpc.InsertTaskRequest{Task: w}))
	if err != nil {
		return nil, cerr.FromConnectError(err)
	}
	if resp.Msg.Task == nil {
		return nil, cerr.NewError(cerr.Internal, "server returned no task", nil)
	}
	return task.FromWire(resp.Msg.Task), nil
}

func (c *Client) Update(ctx context.Context, id string, p task.Patch) error {
	body, err := json.Marshal(p.Persisted())
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode patch", err)
	}
	_, err = c.update.CallUnary(ctx, connect.NewRequest(&rpc.UpdateTaskRequest{ID: id, Patch: body}))
	if err != nil {
		return cerr.FromConnectError(err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.delete.CallUnary(ctx, connect.NewRequest(&rpc.DeleteTaskRequest{ID: id}))
	if err != nil {
		return cerr.FromConnectError(err)
	}
	return nil
}

// Subscribe opens the event stream. The stream is detached from ctx and ends
// on Unsubscribe or on a stream error.
func (c *Client) Subscribe(ctx context.Context, ownerID string, onChange func(Change), onError func(error)) (Subscription, error) {
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := c.subscribe.CallServerStream(streamCtx, connect.NewRequest(&rpc.SubscribeTaskEventsRequest{}))
	if err != nil {
		cancel()
		return nil, cerr.FromConnectError(err)
	}
	sub := &subscription{cancel: cancel}
	go func() {
		defer stream.Close()
		err := panicerr.Call(func() error {
			for stream.Receive() {
				if streamCtx.Err() != nil {
					return nil
				}
				ev := stream.Msg()
				if ev.OwnerID != ownerID {
					slog.WarnContext(streamCtx, "dropping event for another owner", "task_id", ev.TaskID)
					continue
				}
				change, err := toChange(ev)
				if err != nil {
					slog.WarnContext(streamCtx, "dropping malformed event", "task_id", ev.TaskID, "error", err)
					continue
				}
				onChange(change)
			}
			return stream.Err()
		})
		if streamCtx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("event stream closed by server")
		}
		onError(cerr.FromConnectError(err))
	}()
	return sub, nil
}

func toChange(ev *rpc.TaskEvent) (Change, error) {
	switch ev.Type {
	case rpc.EventInserted, rpc.EventUpdated:
		if ev.Task == nil {
			return Change{}, fmt.Errorf("%s event without task", ev.Type)
		}
		if ev.Type == rpc.EventInserted {
			return Inserted(task.FromWire(ev.Task)), nil
		}
		return Updated(task.FromWire(ev.Task)), nil
	case rpc.EventDeleted:
		if ev.TaskID == "" {
			return Change{}, errors.New("delete event without task id")
		}
		return Deleted(ev.TaskID), nil
	}
	return Change{}, fmt.Errorf("unknown event type %q", ev.Type)
}

type subscription struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

func (c *Client) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	resp, err := c.signUp.CallUnary(ctx, connect.NewRequest(&rpc.SignUpRequest{Email: email, Password: password, Name: name}))
	if err != nil {
		return nil, cerr.FromConnectError(err)
	}
	return fromWireSession(resp.Msg.Session)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.signIn.CallUnary(ctx, connect.NewRequest(&rpc.SignInRequest{Email: email, Password: password}))
	if err != nil {
		return nil, cerr.FromConnectError(err)
	}
	return fromWireSession(resp.Msg.Session)
}

func fromWireSession(s *rpc.Session) (*Session, error) {
	if s == nil || s.AccessToken == "" {
		return nil, cerr.NewError(cerr.Internal, "server returned no session", nil)
	}
	return &Session{
		AccessToken: s.AccessToken,
		UserID:      s.UserID,
		Email:       s.Email,
		Name:        s.Name,
		ExpiresAt:   s.ExpiresAt,
	}, nil
}

// Me fetches the caller's profile from GET /api/me.
func (c *Client) Me(ctx context.Context) (*rpc.Me, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/me", nil)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to build request", err)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cerr.FromConnectError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, cerr.NewError(cerr.CodeFromHTTPStatus(resp.StatusCode), body.Message, nil)
	}
	var me rpc.Me
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, cerr.NewError(cerr.Internal, "invalid response", err)
	}
	return &me, nil
}
