package taskstore

import (
	"context"

	"github.com/kazz187/agileboard/internal/task"
)

// Stage marks a PLANNING task for the next promotion.
func (s *Store) Stage(ctx context.Context, id string) error {
	if err := s.begin("stage"); err != nil {
		return s.finish(err)
	}
	if err := s.requireStatus("stage", id, task.StatusPlanning); err != nil {
		return s.finish(err)
	}
	return s.finish(s.update(ctx, "stage", id, task.Patch{Selected: task.Set(true)}, false))
}

func (s *Store) Unstage(ctx context.Context, id string) error {
	if err := s.begin("unstage"); err != nil {
		return s.finish(err)
	}
	return s.finish(s.update(ctx, "unstage", id, task.Patch{Selected: task.Set(false)}, false))
}

// PromoteStaged moves every staged task to ACTIVE, one update at a time.
// The staged set is emptied afterwards even if some updates failed; the
// error of the last failure is returned.
func (s *Store) PromoteStaged(ctx context.Context) error {
	if err := s.begin("promote"); err != nil {
		return s.finish(err)
	}
	s.mu.Lock()
	ids := append([]string(nil), s.staged...)
	epoch := s.epoch
	s.mu.Unlock()

	var last *Error
	for _, id := range ids {
		p := task.Patch{Status: task.Set(task.StatusActive), Selected: task.Set(false)}
		if err := s.update(ctx, "promote", id, p, false); err != nil {
			last = err
		}
	}

	s.mu.Lock()
	if epoch == s.epoch && len(s.staged) > 0 {
		s.staged = nil
		s.saveStagedLocked()
	}
	s.mu.Unlock()
	s.notify()
	return s.finish(last)
}

// Complete moves a task to DONE with a reason from the fixed set. A non-empty
// note replaces the description.
func (s *Store) Complete(ctx context.Context, id string, reason task.CompletionReason, note string) error {
	if err := s.begin("complete"); err != nil {
		return s.finish(err)
	}
	if reason == "" || !reason.Valid() {
		return s.finish(errorf(KindInvalidArgument, "complete", id, "unknown completion reason %q", reason))
	}
	now := s.now()
	p := task.Patch{
		Status:           task.Set(task.StatusDone),
		Completed:        task.Set(true),
		CompletedAt:      task.Set(&now),
		CompletionReason: task.Set(reason),
	}
	if note != "" {
		p.Description = task.Set(note)
	}
	return s.finish(s.update(ctx, "complete", id, p, true))
}

// UndoComplete reopens a DONE task as PLANNING and clears its completion
// fields.
func (s *Store) UndoComplete(ctx context.Context, id string) error {
	if err := s.begin("undo"); err != nil {
		return s.finish(err)
	}
	if err := s.requireStatus("undo", id, task.StatusDone); err != nil {
		return s.finish(err)
	}
	// Leaving DONE clears completedAt and the reason as well.
	p := task.Patch{
		Status:    task.Set(task.StatusPlanning),
		Completed: task.Set(false),
	}
	return s.finish(s.update(ctx, "undo", id, p, false))
}

func (s *Store) requireStatus(op, id string, want task.Status) *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return newError(KindNotFound, op, id, nil)
	}
	if r.view.Status != want {
		return errorf(KindFailedPrecondition, op, id, "task is %s, not %s", r.view.Status, want)
	}
	return nil
}
