package taskstore

import (
	"context"
	"time"

	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/cerr"
)

// Create inserts a task built from draft. Unset fields default to status
// PLANNING, priority MEDIUM and the current time in milliseconds as order.
// The row is visible under a placeholder id until the remote confirms it;
// it is then replaced by the remote row, or removed if the call fails.
func (s *Store) Create(ctx context.Context, draft task.Patch) (*task.Task, error) {
	if err := s.begin("create"); err != nil {
		return nil, s.finish(err)
	}
	t, verr := s.newTask(draft)
	if verr != nil {
		return nil, s.finish(verr)
	}

	s.mu.Lock()
	epoch := s.epoch
	t.ID = s.placeholderID()
	r := newRow(t)
	r.placeholder = true
	s.insertRowLocked(t.ID, r, len(s.order))
	s.mu.Unlock()
	s.notify()

	callCtx, cancel := s.callContext(ctx)
	created, err := s.remote.Insert(callCtx, t.Clone())
	cancel()

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		if err != nil {
			return nil, remoteError("create", "", err)
		}
		return created, nil
	}
	if err != nil {
		s.removeRowLocked(t.ID)
		s.mu.Unlock()
		s.notify()
		return nil, s.finish(remoteError("create", "", err))
	}
	_, index := s.removeRowLocked(t.ID)
	// The insert event may have arrived before the response.
	if _, echoed := s.rows[created.ID]; !echoed && index >= 0 {
		s.insertRowLocked(created.ID, newRow(created), index)
	}
	s.touchLocked(created.ID)
	s.mu.Unlock()
	s.notify()
	s.logger.Debug("task created", "task_id", created.ID)
	return created.Clone(), nil
}

func (s *Store) newTask(draft task.Patch) (*task.Task, *Error) {
	if err := draft.Validate(); err != nil {
		return nil, validationError("create", "", err)
	}
	if draft.Completed.IsSet() || draft.CompletedAt.IsSet() || draft.CompletionReason.IsSet() {
		return nil, errorf(KindInvalidArgument, "create", "", "completion fields are set by Complete")
	}
	now := s.now()
	t := &task.Task{
		OwnerID:   s.ownerID,
		Status:    task.StatusPlanning,
		Priority:  task.PriorityMedium,
		Order:     float64(now.UnixMilli()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	draft.UpdatedAt = task.Field[time.Time]{}
	draft.Apply(t)
	if t.Status == task.StatusDone {
		return nil, errorf(KindFailedPrecondition, "create", "", "use Complete to finish a task")
	}
	if t.Selected && t.Status != task.StatusPlanning {
		return nil, errorf(KindFailedPrecondition, "create", "", "only PLANNING tasks can be staged")
	}
	if err := t.Validate(); err != nil {
		return nil, validationError("create", "", err)
	}
	return t, nil
}

// Update applies p to the cached row at once and sends the persisted part
// of it. When the remote call fails only this patch is taken back.
//
// Moving a task into DONE needs Complete. Leaving DONE clears the completion
// fields, and leaving PLANNING clears selected.
func (s *Store) Update(ctx context.Context, id string, p task.Patch) error {
	if err := s.begin("update"); err != nil {
		return s.finish(err)
	}
	return s.finish(s.update(ctx, "update", id, p, false))
}

func (s *Store) update(ctx context.Context, op, id string, p task.Patch, completing bool) *Error {
	s.mu.Lock()
	next, seq, err := s.prepareLocked(op, id, p, completing)
	epoch := s.epoch
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return s.send(ctx, op, id, seq, epoch, next)
}

func (s *Store) prepareLocked(op, id string, p task.Patch, completing bool) (task.Patch, uint64, *Error) {
	if err := p.Validate(); err != nil {
		return p, 0, validationError(op, id, err)
	}
	if p.IsZero() {
		return p, 0, errorf(KindInvalidArgument, op, id, "nothing to update")
	}
	r, ok := s.rows[id]
	if !ok {
		return p, 0, newError(KindNotFound, op, id, nil)
	}
	if r.placeholder {
		return p, 0, errorf(KindFailedPrecondition, op, id, "task is not saved yet")
	}
	next, err := normalize(op, r.view, p, completing, s.now())
	if err != nil {
		return p, 0, err
	}
	seq := s.nextSeq()
	r.push(seq, next)
	s.syncStagedLocked(id)
	return next, seq, nil
}

// normalize fills in the fields that move together with status.
func normalize(op string, cur *task.Task, p task.Patch, completing bool, now time.Time) (task.Patch, *Error) {
	if p.Completed.IsSet() && !p.Status.IsSet() {
		return p, errorf(KindInvalidArgument, op, cur.ID, "completed follows status")
	}
	if p.CompletedAt.IsSet() && !completing {
		return p, errorf(KindInvalidArgument, op, cur.ID, "completedAt is set by Complete")
	}
	status := cur.Status
	if v, ok := p.Status.Get(); ok {
		if v == task.StatusDone && cur.Status != task.StatusDone && !completing {
			return p, errorf(KindFailedPrecondition, op, cur.ID, "use Complete to finish a task")
		}
		status = v
		p.Completed = task.Set(v == task.StatusDone)
		if cur.Status == task.StatusDone && v != task.StatusDone {
			p.CompletedAt = task.Set[*time.Time](nil)
			p.CompletionReason = task.Set(task.CompletionReason(""))
		}
		if v != task.StatusPlanning && !p.Selected.IsSet() {
			p.Selected = task.Set(false)
		}
	}
	if sel, _ := p.Selected.Get(); sel && status != task.StatusPlanning {
		return p, errorf(KindFailedPrecondition, op, cur.ID, "only PLANNING tasks can be staged")
	}
	if reason, _ := p.CompletionReason.Get(); reason != "" && status != task.StatusDone {
		return p, errorf(KindInvalidArgument, op, cur.ID, "completion reason needs status DONE")
	}
	p.UpdatedAt = task.Set(now)
	return p, nil
}

// send runs the remote update of op seq and settles it.
func (s *Store) send(ctx context.Context, op, id string, seq, epoch uint64, p task.Patch) *Error {
	callCtx, cancel := s.callContext(ctx)
	err := s.remote.Update(callCtx, id, p.Persisted())
	cancel()

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		if err != nil {
			return remoteError(op, id, err)
		}
		return nil
	}
	r, ok := s.rows[id]
	if !ok {
		if d, deleting := s.deleting[id]; deleting {
			r, ok = d.row, true
		}
	}
	if ok {
		if err != nil {
			r.revert(seq)
		} else {
			r.confirm(seq)
		}
		s.touchLocked(id)
		if _, live := s.rows[id]; live {
			s.syncStagedLocked(id)
		}
	}
	s.mu.Unlock()
	s.notify()
	if err != nil {
		s.logger.Debug("rolled back update", "task_id", id, "op", op)
		return remoteError(op, id, err)
	}
	return nil
}

// Delete removes the row at once and puts it back at its old position if
// the remote call fails. A row that is already gone remotely counts as
// deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.begin("delete"); err != nil {
		return s.finish(err)
	}
	s.mu.Lock()
	r, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return s.finish(newError(KindNotFound, "delete", id, nil))
	}
	if r.placeholder {
		s.mu.Unlock()
		return s.finish(errorf(KindFailedPrecondition, "delete", id, "task is not saved yet"))
	}
	_, index := s.removeRowLocked(id)
	s.deleting[id] = deletedRow{row: r, index: index}
	epoch := s.epoch
	s.mu.Unlock()
	s.notify()

	callCtx, cancel := s.callContext(ctx)
	err := s.remote.Delete(callCtx, id)
	cancel()
	if cerr.IsCode(err, cerr.NotFound) {
		err = nil
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		if err != nil {
			return remoteError("delete", id, err)
		}
		return nil
	}
	d, pending := s.deleting[id]
	delete(s.deleting, id)
	if err != nil && pending {
		if _, exists := s.rows[id]; !exists {
			s.insertRowLocked(id, d.row, d.index)
			s.touchLocked(id)
		}
	}
	if err == nil {
		s.forgetLocked(id)
	}
	s.mu.Unlock()
	if err != nil {
		s.notify()
		return s.finish(remoteError("delete", id, err))
	}
	return nil
}

// OrderUpdate moves one task. An empty Status keeps the current status.
type OrderUpdate struct {
	ID     string
	Order  float64
	Status task.Status
}

// Reorder applies every move locally first, then sends them one by one.
// Each move is rolled back on its own; the error of the last failing move
// is returned.
func (s *Store) Reorder(ctx context.Context, moves []OrderUpdate) error {
	if err := s.begin("reorder"); err != nil {
		return s.finish(err)
	}
	type prepared struct {
		id    string
		seq   uint64
		patch task.Patch
	}
	s.mu.Lock()
	epoch := s.epoch
	batch := make([]prepared, 0, len(moves))
	for _, m := range moves {
		p := task.Patch{Order: task.Set(m.Order)}
		if m.Status != "" {
			p.Status = task.Set(m.Status)
		}
		next, seq, err := s.prepareLocked("reorder", m.ID, p, false)
		if err != nil {
			for _, b := range batch {
				s.rows[b.id].revert(b.seq)
				s.syncStagedLocked(b.id)
			}
			s.mu.Unlock()
			return s.finish(err)
		}
		batch = append(batch, prepared{id: m.ID, seq: seq, patch: next})
	}
	s.mu.Unlock()
	s.notify()

	var last *Error
	for _, b := range batch {
		if err := s.send(ctx, "reorder", b.id, b.seq, epoch, b.patch); err != nil {
			last = err
		}
	}
	return s.finish(last)
}
