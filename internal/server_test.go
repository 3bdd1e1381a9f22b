package internal

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agileboard/internal/auth"
	"github.com/kazz187/agileboard/internal/config"
	"github.com/kazz187/agileboard/internal/event"
	"github.com/kazz187/agileboard/internal/eventbus"
	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/rpc"
	"github.com/kazz187/agileboard/internal/task"
	taskrepo "github.com/kazz187/agileboard/internal/task/repositoryimpl"
	"github.com/kazz187/agileboard/internal/taskstore"
	userrepo "github.com/kazz187/agileboard/internal/user/repositoryimpl"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/storage"
)

type testEnv struct {
	url string
	bus *eventbus.Bus
	ts  *httptest.Server
}

func startServer(t *testing.T) *testEnv {
	t.Helper()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	bus := eventbus.New()
	tokens := auth.NewTokens("test-secret", time.Hour)
	srv := NewServer(
		&config.HTTPEnv{},
		auth.NewInterceptor(tokens, rpc.PublicProcedures...),
		auth.NewServer(userrepo.NewYAMLRepository(st), tokens),
		task.NewServer(taskrepo.NewYAMLRepository(st), bus),
		event.NewServer(bus),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{url: ts.URL, bus: bus, ts: ts}
}

// signUp returns a client holding the new user's token.
func (e *testEnv) signUp(t *testing.T, email string) (*remote.Client, *remote.Session) {
	t.Helper()
	var token string
	c := remote.NewClient(e.ts.Client(), e.url, func() string { return token })
	s, err := c.SignUp(t.Context(), email, "correct horse", "Test User")
	require.NoError(t, err)
	token = s.AccessToken
	return c, s
}

func eventuallyTask(t *testing.T, s *taskstore.Store, id string, ok func(*task.Task) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, found := s.Get(id)
		return found && ok(got)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEndToEnd_Scenario(t *testing.T) {
	env := startServer(t)
	client, sess := env.signUp(t, "alice@example.com")
	ctx := context.Background()

	store := taskstore.New(client, sess.UserID, taskstore.Options{})
	t.Cleanup(store.Clear)
	require.NoError(t, store.Initialize(ctx))
	assert.Empty(t, store.Tasks())
	assert.True(t, store.Subscribed())
	require.Eventually(t, func() bool { return env.bus.SubscriberCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	created, err := store.Create(ctx, task.Patch{Title: task.Set("Write release notes"), Status: task.Set(task.StatusPlanning)})
	require.NoError(t, err)
	assert.False(t, store.IsPlaceholder(created.ID))
	assert.Len(t, store.Tasks(), 1)

	require.NoError(t, store.Stage(ctx, created.ID))
	require.NoError(t, store.PromoteStaged(ctx))
	assert.Empty(t, store.Staged())
	eventuallyTask(t, store, created.ID, func(got *task.Task) bool {
		return got.Status == task.StatusActive && !got.Selected
	})

	require.NoError(t, store.Complete(ctx, created.ID, task.ReasonDone, ""))
	eventuallyTask(t, store, created.ID, func(got *task.Task) bool {
		return got.Status == task.StatusDone && got.Completed && got.CompletionReason == task.ReasonDone && got.CompletedAt != nil
	})

	require.NoError(t, store.UndoComplete(ctx, created.ID))
	eventuallyTask(t, store, created.ID, func(got *task.Task) bool {
		return got.Status == task.StatusPlanning && !got.Completed && got.CompletionReason == "" && got.CompletedAt == nil
	})

	// The remote row agrees with the cache.
	rows, err := client.Query(ctx, sess.UserID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, created.ID, rows[0].ID)
	assert.Equal(t, task.StatusPlanning, rows[0].Status)
	assert.False(t, rows[0].Completed)
	assert.NoError(t, store.Err())
}

func TestEndToEnd_PushedChangesFromAnotherSession(t *testing.T) {
	env := startServer(t)
	client, sess := env.signUp(t, "alice@example.com")
	ctx := context.Background()

	store := taskstore.New(client, sess.UserID, taskstore.Options{})
	t.Cleanup(store.Clear)
	require.NoError(t, store.Initialize(ctx))
	require.Eventually(t, func() bool { return env.bus.SubscriberCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	// A second device of the same user writes directly.
	other := remote.NewClient(env.ts.Client(), env.url, func() string { return sess.AccessToken })
	row, err := other.Insert(ctx, &task.Task{Title: "From phone", Status: task.StatusPlanning, Priority: task.PriorityLow, Order: 1})
	require.NoError(t, err)
	eventuallyTask(t, store, row.ID, func(got *task.Task) bool { return got.Title == "From phone" })

	require.NoError(t, other.Update(ctx, row.ID, task.Patch{Label: task.Set("Mobile")}))
	eventuallyTask(t, store, row.ID, func(got *task.Task) bool { return got.Label == "Mobile" })

	require.NoError(t, other.Delete(ctx, row.ID))
	require.Eventually(t, func() bool { return len(store.Tasks()) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestEndToEnd_AuthAndOwnership(t *testing.T) {
	env := startServer(t)
	ctx := context.Background()

	anonymous := remote.NewClient(env.ts.Client(), env.url, func() string { return "" })
	_, err := anonymous.Query(ctx, "")
	assert.True(t, cerr.IsCode(err, cerr.Unauthenticated))
	anonStore := taskstore.New(anonymous, "someone", taskstore.Options{})
	assert.True(t, taskstore.IsKind(anonStore.Load(ctx), taskstore.KindAuthRequired))

	alice, aliceSess := env.signUp(t, "alice@example.com")
	bob, bobSess := env.signUp(t, "bob@example.com")

	me, err := alice.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, aliceSess.UserID, me.UserID)

	row, err := alice.Insert(ctx, &task.Task{Title: "Private", Status: task.StatusPlanning, Priority: task.PriorityMedium})
	require.NoError(t, err)
	assert.Equal(t, aliceSess.UserID, row.OwnerID)

	rows, err := bob.Query(ctx, bobSess.UserID)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.True(t, cerr.IsCode(bob.Delete(ctx, row.ID), cerr.NotFound))
	assert.True(t, cerr.IsCode(bob.Update(ctx, row.ID, task.Patch{Title: task.Set("mine")}), cerr.NotFound))

	err = alice.Update(ctx, row.ID, task.Patch{Priority: task.Set(task.Priority("URGENT"))})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	_, err = alice.SignIn(ctx, "alice@example.com", "wrong password")
	assert.True(t, cerr.IsCode(err, cerr.Unauthenticated))
}
