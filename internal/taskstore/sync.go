package taskstore

import (
	"context"

	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/task"
)

// Load replaces the cache with the owner's remote rows. A Load started while
// another one is in flight returns nil without querying. On failure the
// previous rows stay in place.
func (s *Store) Load(ctx context.Context) error {
	if err := s.begin("load"); err != nil {
		return s.finish(err)
	}
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.loadTouched = make(map[string]struct{})
	s.loadRemoved = make(map[string]struct{})
	epoch := s.epoch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.loadTouched, s.loadRemoved = nil, nil
		s.mu.Unlock()
		s.notify()
	}()
	s.notify()

	callCtx, cancel := s.callContext(ctx)
	rows, err := s.remote.Query(callCtx, s.ownerID)
	cancel()
	if err != nil {
		return s.finish(remoteError("load", "", err))
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return nil
	}
	s.replaceLocked(rows)
	s.mu.Unlock()
	s.logger.Debug("tasks loaded", "count", len(rows))
	return nil
}

// replaceLocked swaps in a full remote result. Outstanding patches and
// unconfirmed creates survive, since their remote calls are still running.
// Rows settled or deleted while the query ran keep their local state, and
// rows with a delete in flight stay hidden.
func (s *Store) replaceLocked(rows []*task.Task) {
	prev := s.rows
	nextRows := make(map[string]*row, len(rows))
	nextOrder := make([]string, 0, len(rows))
	for _, t := range rows {
		if t.OwnerID != s.ownerID {
			continue
		}
		if _, dup := nextRows[t.ID]; dup {
			continue
		}
		if _, removed := s.loadRemoved[t.ID]; removed {
			continue
		}
		if _, pending := s.deleting[t.ID]; pending {
			continue
		}
		old, had := prev[t.ID]
		if _, touched := s.loadTouched[t.ID]; touched && had {
			nextRows[t.ID] = old
			nextOrder = append(nextOrder, t.ID)
			continue
		}
		r := newRow(t)
		if had {
			r.base.CarryLocal(old.base)
			r.ops = old.ops
			r.recompute()
		}
		nextRows[t.ID] = r
		nextOrder = append(nextOrder, t.ID)
	}
	for _, id := range s.order {
		if _, kept := nextRows[id]; kept {
			continue
		}
		r := prev[id]
		if _, touched := s.loadTouched[id]; r.placeholder || touched {
			nextRows[id] = r
			nextOrder = append(nextOrder, id)
		}
	}
	s.rows = nextRows
	s.order = nextOrder

	staged := make([]string, 0, len(s.staged))
	for _, id := range s.order {
		if s.rows[id].view.Selected {
			staged = append(staged, id)
		}
	}
	s.staged = staged
	s.saveStagedLocked()
}

// Initialize tears down any subscription, loads, and subscribes when the
// load succeeded.
func (s *Store) Initialize(ctx context.Context) error {
	s.Unsubscribe()
	epoch := s.currentEpoch()
	if err := s.Load(ctx); err != nil {
		return err
	}
	return s.subscribe(ctx, epoch)
}

// Subscribe replaces the current subscription with a new one for the owner.
func (s *Store) Subscribe(ctx context.Context) error {
	return s.subscribe(ctx, s.currentEpoch())
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// subscribe does nothing if the store was cleared after epoch was read.
func (s *Store) subscribe(ctx context.Context, epoch uint64) error {
	if err := s.begin("subscribe"); err != nil {
		return s.finish(err)
	}
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return nil
	}
	s.teardownLocked()
	gen := s.subGen
	s.mu.Unlock()

	sub, err := s.remote.Subscribe(ctx, s.ownerID,
		func(c remote.Change) { s.applyFrom(gen, c) },
		func(err error) { s.channelError(gen, err) },
	)
	if err != nil {
		return s.finish(newError(KindSubscriptionFailure, "subscribe", "", err))
	}

	s.mu.Lock()
	if gen != s.subGen {
		// Torn down or replaced while connecting.
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()
	s.notify()
	return nil
}

// Unsubscribe tears the subscription down. It is a no-op without one.
func (s *Store) Unsubscribe() {
	s.mu.Lock()
	had := s.sub != nil
	s.teardownLocked()
	s.mu.Unlock()
	if had {
		s.notify()
	}
}

// teardownLocked also invalidates callbacks of a subscription that is still
// connecting.
func (s *Store) teardownLocked() {
	s.subGen++
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
}

func (s *Store) channelError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.subGen {
		s.mu.Unlock()
		return
	}
	s.teardownLocked()
	s.mu.Unlock()
	s.finish(newError(KindSubscriptionFailure, "subscribe", "", err))
}

func (s *Store) applyFrom(gen uint64, c remote.Change) {
	s.mu.Lock()
	current := gen == s.subGen
	s.mu.Unlock()
	if current {
		s.Apply(c)
	}
}

// Apply merges one pushed change. Applying the same change twice has the
// same effect as applying it once.
func (s *Store) Apply(c remote.Change) {
	s.mu.Lock()
	changed := s.applyLocked(c)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Store) applyLocked(c remote.Change) bool {
	switch c.Kind {
	case remote.ChangeInserted:
		if c.Task == nil || c.Task.OwnerID != s.ownerID {
			return false
		}
		if _, ok := s.rows[c.ID]; ok {
			return false
		}
		if _, ok := s.deleting[c.ID]; ok {
			return false
		}
		s.insertRowLocked(c.ID, newRow(c.Task), len(s.order))
		s.touchLocked(c.ID)
		s.logger.Debug("reconciled insert", "task_id", c.ID)
		return true
	case remote.ChangeUpdated:
		if c.Task == nil || c.Task.OwnerID != s.ownerID {
			return false
		}
		if d, ok := s.deleting[c.ID]; ok {
			d.row.rebase(c.Task)
			return false
		}
		r, ok := s.rows[c.ID]
		if !ok {
			return false
		}
		r.rebase(c.Task)
		s.touchLocked(c.ID)
		s.syncStagedLocked(c.ID)
		s.logger.Debug("reconciled update", "task_id", c.ID, "pending", len(r.ops))
		return true
	case remote.ChangeDeleted:
		delete(s.deleting, c.ID)
		s.forgetLocked(c.ID)
		if r, _ := s.removeRowLocked(c.ID); r == nil {
			return false
		}
		s.logger.Debug("reconciled delete", "task_id", c.ID)
		return true
	}
	s.logger.Warn("ignoring change of unknown kind", "kind", c.Kind.String(), "task_id", c.ID)
	return false
}

// Clear ends the session: the subscription is torn down and rows, staged
// set and error are emptied. Results of calls still in flight are dropped.
func (s *Store) Clear() {
	s.mu.Lock()
	s.teardownLocked()
	s.epoch++
	s.rows = make(map[string]*row)
	s.deleting = make(map[string]deletedRow)
	s.order = nil
	s.staged = nil
	s.err = nil
	s.saveStagedLocked()
	s.mu.Unlock()
	s.notify()
}
