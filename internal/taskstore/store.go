// Package taskstore is the client side task cache. It mirrors the owner's
// remote rows, applies mutations optimistically, rolls failed ones back per
// row, and merges pushed row changes.
//
// All state is guarded by one mutex that is never held across a remote call.
// Listeners registered with OnChange run after the mutex is released.
package taskstore

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/task"
)

const (
	DefaultTimeout    = 15 * time.Second
	placeholderPrefix = "tmp-"
)

// StagedSnapshot persists the staged rows between runs.
type StagedSnapshot interface {
	Load() ([]*task.Task, error)
	Save(staged []*task.Task) error
}

type Options struct {
	// Timeout bounds each remote call. Zero means DefaultTimeout.
	Timeout  time.Duration
	Snapshot StagedSnapshot
	Logger   *slog.Logger
	Now      func() time.Time
}

type pendingOp struct {
	seq   uint64
	patch task.Patch
	done  bool
}

// row is one cached task: the last confirmed state plus the patches still
// waiting for the remote.
type row struct {
	base        *task.Task
	ops         []*pendingOp
	view        *task.Task
	placeholder bool
}

func newRow(t *task.Task) *row {
	r := &row{base: t.Clone()}
	r.recompute()
	return r
}

func (r *row) recompute() {
	v := r.base.Clone()
	for _, op := range r.ops {
		op.patch.Apply(v)
	}
	r.view = v
}

func (r *row) push(seq uint64, p task.Patch) {
	r.ops = append(r.ops, &pendingOp{seq: seq, patch: p})
	r.recompute()
}

// confirm marks op seq done and folds the leading done ops into base, so
// confirmations land in issue order.
func (r *row) confirm(seq uint64) {
	for _, op := range r.ops {
		if op.seq == seq {
			op.done = true
		}
	}
	for len(r.ops) > 0 && r.ops[0].done {
		r.ops[0].patch.Apply(r.base)
		r.ops = r.ops[1:]
	}
	r.recompute()
}

// revert drops op seq only; other pending ops stay applied.
func (r *row) revert(seq uint64) {
	r.ops = slices.DeleteFunc(r.ops, func(op *pendingOp) bool { return op.seq == seq })
	r.recompute()
}

// rebase replaces the confirmed state with a pushed row and keeps the
// outstanding patches on top of it.
func (r *row) rebase(t *task.Task) {
	next := t.Clone()
	next.CarryLocal(r.base)
	r.base = next
	r.recompute()
}

type deletedRow struct {
	row   *row
	index int
}

type Store struct {
	remote  remote.TaskStore
	ownerID string
	timeout time.Duration
	snap    StagedSnapshot
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	order    []string
	rows     map[string]*row
	deleting map[string]deletedRow
	staged   []string
	err      error
	loading  bool
	// While a Load is in flight, loadTouched holds ids whose confirmed
	// state changed locally and loadRemoved ids that were deleted. Both win
	// over the query result, which may predate them.
	loadTouched map[string]struct{}
	loadRemoved map[string]struct{}
	// epoch changes on Clear so late results of earlier calls are dropped.
	epoch     uint64
	seq       uint64
	sub       remote.Subscription
	subGen    uint64
	listeners map[uint64]func()
	nextLID   uint64
}

// New builds the cache of ownerID. An empty owner yields a store whose
// operations fail with KindAuthRequired.
func New(rs remote.TaskStore, ownerID string, opts Options) *Store {
	s := &Store{
		remote:    rs,
		ownerID:   ownerID,
		timeout:   opts.Timeout,
		snap:      opts.Snapshot,
		logger:    opts.Logger,
		now:       opts.Now,
		rows:      make(map[string]*row),
		deleting:  make(map[string]deletedRow),
		listeners: make(map[uint64]func()),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("owner_id", ownerID)
	if s.now == nil {
		s.now = time.Now
	}
	s.restoreStaged()
	return s
}

func (s *Store) restoreStaged() {
	if s.snap == nil {
		return
	}
	staged, err := s.snap.Load()
	if err != nil {
		s.logger.Warn("failed to restore staged snapshot", "error", err)
		return
	}
	for _, t := range staged {
		if t.OwnerID != s.ownerID || !t.Selected || t.Status != task.StatusPlanning {
			continue
		}
		if _, ok := s.rows[t.ID]; ok {
			continue
		}
		s.rows[t.ID] = newRow(t)
		s.order = append(s.order, t.ID)
		s.staged = append(s.staged, t.ID)
	}
}

func (s *Store) OwnerID() string {
	return s.ownerID
}

// Tasks returns copies of the cached rows in cache order.
func (s *Store) Tasks() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*task.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id].view.Clone())
	}
	return out
}

func (s *Store) Get(id string) (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, false
	}
	return r.view.Clone(), true
}

func (s *Store) Staged() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stagedRowsLocked()
}

func (s *Store) stagedRowsLocked() []*task.Task {
	out := make([]*task.Task, 0, len(s.staged))
	for _, id := range s.staged {
		if r, ok := s.rows[id]; ok {
			out = append(out, r.view.Clone())
		}
	}
	return out
}

// Err returns the error of the most recent failed operation, or nil if the
// latest operation has not failed.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// IsPlaceholder reports whether id is a local id of a create that the
// remote has not confirmed yet.
func (s *Store) IsPlaceholder(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return ok && r.placeholder
}

// OnChange registers fn to run after every state change. The returned
// function removes it.
func (s *Store) OnChange(fn func()) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLID++
	id := s.nextLID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// begin starts a public operation: it clears the latest error.
func (s *Store) begin(op string) *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	if s.ownerID == "" {
		return newError(KindAuthRequired, op, "", nil)
	}
	return nil
}

// finish records err as the latest error and returns it as a plain error.
func (s *Store) finish(err *Error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.logger.Warn("task operation failed", "op", err.Op, "task_id", err.TaskID, "kind", err.Kind.String(), "error", err.Err)
	s.notify()
	return err
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) placeholderID() string {
	return placeholderPrefix + ulid.Make().String()
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) touchLocked(id string) {
	if s.loadTouched != nil {
		s.loadTouched[id] = struct{}{}
		delete(s.loadRemoved, id)
	}
}

func (s *Store) forgetLocked(id string) {
	if s.loadRemoved != nil {
		s.loadRemoved[id] = struct{}{}
		delete(s.loadTouched, id)
	}
}

func (s *Store) insertRowLocked(id string, r *row, index int) {
	s.rows[id] = r
	index = max(0, min(index, len(s.order)))
	s.order = slices.Insert(s.order, index, id)
	s.syncStagedLocked(id)
}

func (s *Store) removeRowLocked(id string) (*row, int) {
	r, ok := s.rows[id]
	if !ok {
		return nil, -1
	}
	delete(s.rows, id)
	index := slices.Index(s.order, id)
	if index >= 0 {
		s.order = slices.Delete(s.order, index, index+1)
	}
	s.removeStagedLocked(id)
	return r, index
}

// syncStagedLocked keeps staged membership in line with the row's selected
// flag.
func (s *Store) syncStagedLocked(id string) {
	r, ok := s.rows[id]
	in := slices.Contains(s.staged, id)
	switch {
	case ok && r.view.Selected && !in:
		s.staged = append(s.staged, id)
		s.saveStagedLocked()
	case (!ok || !r.view.Selected) && in:
		s.removeStagedLocked(id)
	}
}

func (s *Store) removeStagedLocked(id string) {
	if i := slices.Index(s.staged, id); i >= 0 {
		s.staged = slices.Delete(s.staged, i, i+1)
		s.saveStagedLocked()
	}
}

func (s *Store) saveStagedLocked() {
	if s.snap == nil {
		return
	}
	staged := make([]*task.Task, 0, len(s.staged))
	for _, id := range s.staged {
		r, ok := s.rows[id]
		if !ok || r.placeholder {
			continue
		}
		staged = append(staged, r.view.Clone())
	}
	if err := s.snap.Save(staged); err != nil {
		s.logger.Warn("failed to save staged snapshot", "error", err)
	}
}
