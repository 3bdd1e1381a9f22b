package taskstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/cerr"
)

// fakeRemote is an in-memory remote table with call counting, gates that
// hold a call until released, and per-call failure injection.
type fakeRemote struct {
	mu      sync.Mutex
	rows    map[string]*task.Task
	nextID  int
	queries int
	updates int
	fail    map[string]error

	// When set, each call hands its release channel to started and waits
	// until the test closes it.
	queryGate  *gate
	insertGate *gate
	updateGate *gate
	// staleQueryGate holds Query after it has read the rows, so the
	// result is older than anything the test does meanwhile.
	staleQueryGate *gate
	deleteGate     *gate

	// echoInsert pushes the insert event before Insert returns.
	echoInsert bool

	onChange     func(remote.Change)
	onError      func(error)
	subscribes   int
	unsubscribes int
}

type gate struct {
	started chan chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan chan struct{}, 16)}
}

func (g *gate) wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	release := make(chan struct{})
	g.started <- release
	select {
	case <-release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newFakeRemote(rows ...*task.Task) *fakeRemote {
	f := &fakeRemote{rows: make(map[string]*task.Task), fail: make(map[string]error)}
	for _, r := range rows {
		f.rows[r.ID] = r.Clone()
	}
	return f
}

func (f *fakeRemote) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

func (f *fakeRemote) failure(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *fakeRemote) row(id string) *task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Clone()
}

func (f *fakeRemote) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func (f *fakeRemote) Query(ctx context.Context, ownerID string) ([]*task.Task, error) {
	f.mu.Lock()
	f.queries++
	g := f.queryGate
	f.mu.Unlock()
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if err := f.failure("query"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	var out []*task.Task
	for _, r := range f.rows {
		if r.OwnerID == ownerID {
			out = append(out, r.Clone())
		}
	}
	stale := f.staleQueryGate
	f.mu.Unlock()
	task.SortByOrder(out)
	if err := stale.wait(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeRemote) Insert(ctx context.Context, t *task.Task) (*task.Task, error) {
	if err := f.insertGate.wait(ctx); err != nil {
		return nil, err
	}
	if err := f.failure("insert"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.nextID++
	row := t.Clone()
	row.ID = fmt.Sprintf("srv-%d", f.nextID)
	row.StripLocal()
	f.rows[row.ID] = row
	echo, onChange := f.echoInsert, f.onChange
	f.mu.Unlock()
	if echo && onChange != nil {
		onChange(remote.Inserted(row.Clone()))
	}
	return row.Clone(), nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, p task.Patch) error {
	f.mu.Lock()
	f.updates++
	g := f.updateGate
	f.mu.Unlock()
	if err := g.wait(ctx); err != nil {
		return err
	}
	if err := f.failure("update"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	p.Persisted().Apply(row)
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	if err := f.deleteGate.wait(ctx); err != nil {
		return err
	}
	if err := f.failure("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRemote) Subscribe(_ context.Context, _ string, onChange func(remote.Change), onError func(error)) (remote.Subscription, error) {
	if err := f.failure("subscribe"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	f.onChange, f.onError = onChange, onError
	return &fakeSubscription{f: f}, nil
}

func (f *fakeRemote) push(c remote.Change) {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (f *fakeRemote) channelError(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

type fakeSubscription struct {
	once sync.Once
	f    *fakeRemote
}

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() {
		// Called with the store mutex held, so it must not block.
		go func() {
			s.f.mu.Lock()
			s.f.unsubscribes++
			s.f.mu.Unlock()
		}()
	})
}

type memorySnapshot struct {
	mu     sync.Mutex
	staged []*task.Task
	saves  int
}

func (m *memorySnapshot) Load() ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return task.CloneAll(m.staged), nil
}

func (m *memorySnapshot) Save(staged []*task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = task.CloneAll(staged)
	m.saves++
	return nil
}

func (m *memorySnapshot) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, t := range m.staged {
		ids = append(ids, t.ID)
	}
	return ids
}

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func seedRow(id, title string, order float64) *task.Task {
	return &task.Task{
		ID:        id,
		OwnerID:   "u1",
		Title:     title,
		Status:    task.StatusPlanning,
		Priority:  task.PriorityMedium,
		Order:     order,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}
