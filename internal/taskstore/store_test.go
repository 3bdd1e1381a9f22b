package taskstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/cerr"
)

func newTestStore(t *testing.T, f *fakeRemote, opts ...func(*Options)) *Store {
	t.Helper()
	o := Options{Now: func() time.Time { return testNow }}
	for _, opt := range opts {
		opt(&o)
	}
	return New(f, "u1", o)
}

func ids(tasks []*task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func mustGet(t *testing.T, s *Store, id string) *task.Task {
	t.Helper()
	got, ok := s.Get(id)
	require.True(t, ok, "task %s not cached", id)
	return got
}

var errBoom = errors.New("boom")

func TestLoad_ReplacesRowsAndStaged(t *testing.T) {
	staged := seedRow("b", "B", 2)
	staged.Selected = true
	f := newFakeRemote(seedRow("a", "A", 1), staged, seedRow("c", "C", 3))
	s := newTestStore(t, f)

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Tasks()))
	assert.Equal(t, []string{"b"}, ids(s.Staged()))
	assert.False(t, s.Loading())
	assert.NoError(t, s.Err())
}

func TestLoad_FailureKeepsPreviousState(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1))
	s := newTestStore(t, f)
	require.NoError(t, s.Load(context.Background()))

	f.failWith("query", errBoom)
	err := s.Load(context.Background())
	assert.True(t, IsKind(err, KindRemoteFailure))
	assert.Equal(t, err, s.Err())
	assert.Equal(t, []string{"a"}, ids(s.Tasks()))
	assert.False(t, s.Loading(), "loading flag must be cleared after a failure")

	f.failWith("query", nil)
	require.NoError(t, s.Load(context.Background()))
	assert.NoError(t, s.Err())
}

func TestLoad_ConcurrentCallIsNoop(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1), seedRow("b", "B", 2))
	f.queryGate = newGate()
	s := newTestStore(t, f)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	release := <-f.queryGate.started
	assert.True(t, s.Loading())

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, 1, f.queryCount())
	assert.Empty(t, s.Tasks())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.queryCount())
	assert.Equal(t, []string{"a", "b"}, ids(s.Tasks()))
}

// startStaleLoad runs a Load whose query result is read at once but handed
// back only when finish is called.
func startStaleLoad(t *testing.T, f *fakeRemote, s *Store) (finish func()) {
	t.Helper()
	f.mu.Lock()
	f.staleQueryGate = newGate()
	gate := f.staleQueryGate
	f.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	release := <-gate.started
	return func() {
		t.Helper()
		close(release)
		require.NoError(t, <-done)
		f.mu.Lock()
		f.staleQueryGate = nil
		f.mu.Unlock()
	}
}

func TestLoad_OverlappingCreateKeepsConfirmedRow(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1))
	f.echoInsert = true
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	finish := startStaleLoad(t, f, s)
	created, err := s.Create(ctx, task.Patch{Title: task.Set("X"), Order: task.Set(2.0)})
	require.NoError(t, err)
	finish()

	assert.Equal(t, []string{"a", created.ID}, ids(s.Tasks()))
	assert.Equal(t, "X", mustGet(t, s, created.ID).Title)
}

func TestLoad_OverlappingDeleteKeepsRowGone(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1), seedRow("b", "B", 2))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	finish := startStaleLoad(t, f, s)
	require.NoError(t, s.Delete(ctx, "a"))
	f.push(remote.Deleted("a"))
	finish()

	assert.Equal(t, []string{"b"}, ids(s.Tasks()))
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestLoad_HidesRowWithDeleteInFlight(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1), seedRow("b", "B", 2))
	f.deleteGate = newGate()
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	deleted := make(chan error, 1)
	go func() { deleted <- s.Delete(ctx, "a") }()
	releaseDelete := <-f.deleteGate.started

	require.NoError(t, s.Load(ctx))
	assert.Equal(t, []string{"b"}, ids(s.Tasks()))

	close(releaseDelete)
	require.NoError(t, <-deleted)
	assert.Equal(t, []string{"b"}, ids(s.Tasks()))
}

func TestLoad_OverlappingUpdateKeepsConfirmedPatch(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1), seedRow("b", "B", 2))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	finish := startStaleLoad(t, f, s)
	require.NoError(t, s.Update(ctx, "a", task.Patch{Title: task.Set("A2")}))
	finish()

	assert.Equal(t, "A2", mustGet(t, s, "a").Title)
	assert.Equal(t, []string{"a", "b"}, ids(s.Tasks()))

	// A Load after the update sees the remote row and agrees.
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, "A2", mustGet(t, s, "a").Title)
}

func TestLoad_UntouchedRowsFollowQuery(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1), seedRow("b", "B", 2))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	f.mu.Lock()
	f.rows["b"].Title = "B2"
	delete(f.rows, "a")
	f.mu.Unlock()
	finish := startStaleLoad(t, f, s)
	finish()

	assert.Equal(t, []string{"b"}, ids(s.Tasks()))
	assert.Equal(t, "B2", mustGet(t, s, "b").Title)
}

func TestOperations_RequireOwner(t *testing.T) {
	f := newFakeRemote()
	s := New(f, "", Options{})

	err := s.Load(context.Background())
	assert.True(t, IsKind(err, KindAuthRequired))
	_, err = s.Create(context.Background(), task.Patch{Title: task.Set("x")})
	assert.True(t, IsKind(err, KindAuthRequired))
	assert.True(t, IsKind(s.Err(), KindAuthRequired))
	assert.Equal(t, 0, f.queryCount())
}

func TestCreate_RoundTrip(t *testing.T) {
	f := newFakeRemote()
	f.insertGate = newGate()
	s := newTestStore(t, f)
	require.NoError(t, s.Load(context.Background()))

	type result struct {
		t   *task.Task
		err error
	}
	done := make(chan result, 1)
	go func() {
		created, err := s.Create(context.Background(), task.Patch{Title: task.Set("X")})
		done <- result{created, err}
	}()
	release := <-f.insertGate.started

	pending := s.Tasks()
	require.Len(t, pending, 1)
	placeholder := pending[0].ID
	assert.True(t, strings.HasPrefix(placeholder, placeholderPrefix))
	assert.True(t, s.IsPlaceholder(placeholder))
	assert.Equal(t, task.StatusPlanning, pending[0].Status)
	assert.Equal(t, task.PriorityMedium, pending[0].Priority)
	assert.Equal(t, float64(testNow.UnixMilli()), pending[0].Order)
	assert.False(t, pending[0].Completed)
	assert.False(t, pending[0].Selected)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "srv-1", res.t.ID)

	settled := s.Tasks()
	require.Len(t, settled, 1)
	assert.Equal(t, "srv-1", settled[0].ID)
	_, ok := s.Get(placeholder)
	assert.False(t, ok)

	require.NoError(t, s.Load(context.Background()))
	loaded := s.Tasks()
	require.Len(t, loaded, 1)
	assert.Equal(t, "X", loaded[0].Title)
	assert.Equal(t, "srv-1", loaded[0].ID)
}

func TestCreate_EchoedInsertDoesNotDuplicate(t *testing.T) {
	f := newFakeRemote()
	f.echoInsert = true
	s := newTestStore(t, f)
	require.NoError(t, s.Initialize(context.Background()))

	created, err := s.Create(context.Background(), task.Patch{Title: task.Set("X")})
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, ids(s.Tasks()))

	// A late echo is ignored as well.
	f.push(remote.Inserted(created))
	assert.Len(t, s.Tasks(), 1)
}

func TestCreate_FailureRemovesPlaceholder(t *testing.T) {
	f := newFakeRemote()
	f.failWith("insert", errBoom)
	s := newTestStore(t, f)

	_, err := s.Create(context.Background(), task.Patch{Title: task.Set("X")})
	assert.True(t, IsKind(err, KindRemoteFailure))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, s.Tasks())
	assert.Error(t, s.Err())
}

func TestCreate_Validation(t *testing.T) {
	s := newTestStore(t, newFakeRemote())
	ctx := context.Background()

	_, err := s.Create(ctx, task.Patch{})
	assert.True(t, IsKind(err, KindInvalidArgument))
	_, err = s.Create(ctx, task.Patch{Title: task.Set("x"), Status: task.Set(task.Status("LATER"))})
	assert.True(t, IsKind(err, KindInvalidArgument))
	_, err = s.Create(ctx, task.Patch{Title: task.Set("x"), Status: task.Set(task.StatusDone)})
	assert.True(t, IsKind(err, KindFailedPrecondition))
	_, err = s.Create(ctx, task.Patch{Title: task.Set("x"), Status: task.Set(task.StatusActive), Selected: task.Set(true)})
	assert.True(t, IsKind(err, KindFailedPrecondition))
	assert.Empty(t, s.Tasks())
}

func TestUpdate_RollbackOnFailure(t *testing.T) {
	f := newFakeRemote(seedRow("t1", "A", 1))
	s := newTestStore(t, f)
	require.NoError(t, s.Load(context.Background()))

	f.failWith("update", errBoom)
	err := s.Update(context.Background(), "t1", task.Patch{Title: task.Set("B")})
	assert.True(t, IsKind(err, KindRemoteFailure))
	assert.Equal(t, "A", mustGet(t, s, "t1").Title)
	assert.Error(t, s.Err())
	assert.Equal(t, "A", f.row("t1").Title)
}

func TestUpdate_RollbackIsPerRow(t *testing.T) {
	f := newFakeRemote(seedRow("t1", "A", 1), seedRow("t2", "C", 2))
	f.updateGate = newGate()
	s := newTestStore(t, f)
	require.NoError(t, s.Load(context.Background()))

	first := make(chan error, 1)
	go func() { first <- s.Update(context.Background(), "t1", task.Patch{Title: task.Set("B")}) }()
	releaseFirst := <-f.updateGate.started

	second := make(chan error, 1)
	go func() { second <- s.Update(context.Background(), "t2", task.Patch{Title: task.Set("D")}) }()
	releaseSecond := <-f.updateGate.started
	assert.Equal(t, "B", mustGet(t, s, "t1").Title)
	assert.Equal(t, "D", mustGet(t, s, "t2").Title)

	// Only the first call fails.
	f.failWith("update", errBoom)
	close(releaseFirst)
	assert.Error(t, <-first)
	f.failWith("update", nil)
	close(releaseSecond)
	require.NoError(t, <-second)

	assert.Equal(t, "A", mustGet(t, s, "t1").Title)
	assert.Equal(t, "D", mustGet(t, s, "t2").Title)
}

func TestUpdate_FailedPatchKeepsLaterPatchOnSameRow(t *testing.T) {
	f := newFakeRemote(seedRow("t1", "A", 1))
	f.updateGate = newGate()
	s := newTestStore(t, f)
	require.NoError(t, s.Load(context.Background()))

	first := make(chan error, 1)
	go func() { first <- s.Update(context.Background(), "t1", task.Patch{Title: task.Set("B")}) }()
	releaseFirst := <-f.updateGate.started
	second := make(chan error, 1)
	go func() { second <- s.Update(context.Background(), "t1", task.Patch{Label: task.Set("Bug")}) }()
	releaseSecond := <-f.updateGate.started

	f.failWith("update", errBoom)
	close(releaseFirst)
	assert.Error(t, <-first)
	got := mustGet(t, s, "t1")
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "Bug", got.Label)

	f.failWith("update", nil)
	close(releaseSecond)
	require.NoError(t, <-second)
	got = mustGet(t, s, "t1")
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "Bug", got.Label)
}

func TestUpdate_TimeoutRollsBack(t *testing.T) {
	f := newFakeRemote(seedRow("t1", "A", 1))
	f.updateGate = newGate()
	s := newTestStore(t, f, func(o *Options) { o.Timeout = 20 * time.Millisecond })
	require.NoError(t, s.Load(context.Background()))

	err := s.Update(context.Background(), "t1", task.Patch{Title: task.Set("B")})
	assert.True(t, IsKind(err, KindRemoteFailure))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "A", mustGet(t, s, "t1").Title)
}

func TestUpdate_Rules(t *testing.T) {
	staged := seedRow("t1", "A", 1)
	staged.Selected = true
	f := newFakeRemote(staged)
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	err := s.Update(ctx, "t1", task.Patch{Status: task.Set(task.StatusDone)})
	assert.True(t, IsKind(err, KindFailedPrecondition), "DONE needs Complete")
	err = s.Update(ctx, "t1", task.Patch{Completed: task.Set(true)})
	assert.True(t, IsKind(err, KindInvalidArgument))
	err = s.Update(ctx, "t1", task.Patch{Priority: task.Set(task.Priority("URGENT"))})
	assert.True(t, IsKind(err, KindInvalidArgument))
	err = s.Update(ctx, "missing", task.Patch{Title: task.Set("x")})
	assert.True(t, IsKind(err, KindNotFound))

	require.NoError(t, s.Update(ctx, "t1", task.Patch{Status: task.Set(task.StatusActive)}))
	got := mustGet(t, s, "t1")
	assert.Equal(t, task.StatusActive, got.Status)
	assert.False(t, got.Selected, "leaving PLANNING clears selected")
	assert.Empty(t, s.Staged())
	assert.Equal(t, testNow, got.UpdatedAt)
	assert.False(t, f.row("t1").Selected)

	err = s.Update(ctx, "t1", task.Patch{Selected: task.Set(true)})
	assert.True(t, IsKind(err, KindFailedPrecondition))
}

func TestUpdate_ClientOnlyFieldsStayLocal(t *testing.T) {
	f := newFakeRemote(seedRow("t1", "A", 1))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.Complete(ctx, "t1", task.ReasonDone, ""))
	require.NotNil(t, mustGet(t, s, "t1").CompletedAt)
	assert.Nil(t, f.row("t1").CompletedAt)
	assert.Equal(t, task.StatusDone, f.row("t1").Status)
}

func TestUpdate_PlaceholderIsRejected(t *testing.T) {
	f := newFakeRemote()
	f.insertGate = newGate()
	s := newTestStore(t, f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Create(context.Background(), task.Patch{Title: task.Set("X")})
	}()
	release := <-f.insertGate.started
	id := s.Tasks()[0].ID

	err := s.Update(context.Background(), id, task.Patch{Title: task.Set("Y")})
	assert.True(t, IsKind(err, KindFailedPrecondition))
	err = s.Delete(context.Background(), id)
	assert.True(t, IsKind(err, KindFailedPrecondition))
	close(release)
	<-done
}

func TestDelete(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1), seedRow("b", "B", 2), seedRow("c", "C", 3))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	f.failWith("delete", errBoom)
	err := s.Delete(ctx, "b")
	assert.True(t, IsKind(err, KindRemoteFailure))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Tasks()), "restored at its old position")

	f.failWith("delete", nil)
	require.NoError(t, s.Delete(ctx, "b"))
	assert.Equal(t, []string{"a", "c"}, ids(s.Tasks()))
	assert.Nil(t, f.row("b"))

	assert.True(t, IsKind(s.Delete(ctx, "b"), KindNotFound))
}

func TestDelete_RemotelyMissingCountsAsDeleted(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	f.mu.Lock()
	delete(f.rows, "a")
	f.mu.Unlock()
	require.NoError(t, s.Delete(ctx, "a"))
	assert.Empty(t, s.Tasks())
}

func TestApply_Idempotent(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1))
	s := newTestStore(t, f)
	require.NoError(t, s.Load(context.Background()))

	dup := seedRow("a", "changed", 9)
	s.Apply(remote.Inserted(dup))
	s.Apply(remote.Inserted(dup))
	require.Len(t, s.Tasks(), 1)
	assert.Equal(t, "A", mustGet(t, s, "a").Title)

	s.Apply(remote.Deleted("zzz"))
	s.Apply(remote.Deleted("zzz"))
	assert.Len(t, s.Tasks(), 1)

	s.Apply(remote.Updated(seedRow("zzz", "ghost", 1)))
	assert.Len(t, s.Tasks(), 1)

	s.Apply(remote.Updated(dup))
	s.Apply(remote.Updated(dup))
	assert.Equal(t, "changed", mustGet(t, s, "a").Title)

	s.Apply(remote.Deleted("a"))
	s.Apply(remote.Deleted("a"))
	assert.Empty(t, s.Tasks())

	other := seedRow("o", "other owner", 1)
	other.OwnerID = "u2"
	s.Apply(remote.Inserted(other))
	assert.Empty(t, s.Tasks())
}

func TestApply_PushedUpdateKeepsPendingPatchAndCompletedAt(t *testing.T) {
	f := newFakeRemote(seedRow("t1", "A", 1))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	require.NoError(t, s.Complete(ctx, "t1", task.ReasonDone, ""))
	completedAt := mustGet(t, s, "t1").CompletedAt
	require.NotNil(t, completedAt)

	f.updateGate = newGate()
	done := make(chan error, 1)
	go func() { done <- s.Update(ctx, "t1", task.Patch{Label: task.Set("Bug")}) }()
	release := <-f.updateGate.started

	pushed := f.row("t1")
	pushed.Title = "from another session"
	s.Apply(remote.Updated(pushed))

	got := mustGet(t, s, "t1")
	assert.Equal(t, "from another session", got.Title)
	assert.Equal(t, "Bug", got.Label, "pending patch re-applied")
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completedAt.Equal(*got.CompletedAt))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "Bug", mustGet(t, s, "t1").Label)
}

func TestSubscription_Lifecycle(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1))
	s := newTestStore(t, f)
	ctx := context.Background()

	s.Unsubscribe()
	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.Subscribed())

	f.push(remote.Inserted(seedRow("b", "B", 2)))
	assert.Equal(t, []string{"a", "b"}, ids(s.Tasks()))

	// b was only pushed, so the reload drops it.
	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, []string{"a"}, ids(s.Tasks()))
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.subscribes == 2 && f.unsubscribes == 1
	}, time.Second, 5*time.Millisecond)

	f.channelError(errBoom)
	assert.False(t, s.Subscribed())
	assert.True(t, IsKind(s.Err(), KindSubscriptionFailure))

	// No retry, and callbacks of the dead subscription are ignored.
	f.push(remote.Inserted(seedRow("c", "C", 3)))
	assert.Equal(t, []string{"a"}, ids(s.Tasks()))
	assert.Equal(t, 2, f.subscribes)
}

func TestInitialize_SkipsSubscribeWhenLoadFails(t *testing.T) {
	f := newFakeRemote()
	f.failWith("query", cerr.NewError(cerr.Unauthenticated, "session expired", nil))
	s := newTestStore(t, f)

	err := s.Initialize(context.Background())
	assert.True(t, IsKind(err, KindAuthRequired))
	assert.False(t, s.Subscribed())
	assert.Equal(t, 0, f.subscribes)
}

func TestClear(t *testing.T) {
	staged := seedRow("a", "A", 1)
	staged.Selected = true
	f := newFakeRemote(staged)
	snap := &memorySnapshot{}
	s := newTestStore(t, f, func(o *Options) { o.Snapshot = snap })
	require.NoError(t, s.Initialize(context.Background()))
	f.failWith("update", errBoom)
	require.Error(t, s.Update(context.Background(), "a", task.Patch{Title: task.Set("x")}))

	s.Clear()
	assert.Empty(t, s.Tasks())
	assert.Empty(t, s.Staged())
	assert.NoError(t, s.Err())
	assert.False(t, s.Subscribed())
	assert.Empty(t, snap.ids())
}

func TestClear_DropsLateLoad(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1))
	f.queryGate = newGate()
	s := newTestStore(t, f)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	release := <-f.queryGate.started
	s.Clear()
	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, s.Tasks())
}

func TestOnChange(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1))
	s := newTestStore(t, f)
	calls := 0
	remove := s.OnChange(func() {
		calls++
		_ = s.Tasks()
	})
	require.NoError(t, s.Load(context.Background()))
	assert.Positive(t, calls)

	remove()
	before := calls
	s.Apply(remote.Deleted("a"))
	assert.Equal(t, before, calls)
}

func TestReorder(t *testing.T) {
	f := newFakeRemote(seedRow("a", "A", 1), seedRow("b", "B", 2))
	s := newTestStore(t, f)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	require.NoError(t, s.Reorder(ctx, []OrderUpdate{
		{ID: "a", Order: 3},
		{ID: "b", Order: 0.5, Status: task.StatusActive},
	}))
	assert.Equal(t, 3.0, mustGet(t, s, "a").Order)
	assert.Equal(t, task.StatusActive, mustGet(t, s, "b").Status)
	assert.Equal(t, 0.5, f.row("b").Order)

	err := s.Reorder(ctx, []OrderUpdate{{ID: "a", Order: 7}, {ID: "b", Order: 1, Status: task.StatusDone}})
	assert.True(t, IsKind(err, KindFailedPrecondition))
	assert.Equal(t, 3.0, mustGet(t, s, "a").Order, "batch is refused as a whole")

	f.failWith("update", errBoom)
	err = s.Reorder(ctx, []OrderUpdate{{ID: "a", Order: 9}})
	assert.True(t, IsKind(err, KindRemoteFailure))
	assert.Equal(t, 3.0, mustGet(t, s, "a").Order)
}
