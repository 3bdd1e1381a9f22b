package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/taskstore"
)

// StoreFactory builds the task cache of one owner.
type StoreFactory func(ownerID string) *taskstore.Store

// Coordinator keeps exactly one task cache, scoped to the signed-in owner.
// A sign-in for another owner clears the old cache before the new one loads;
// a sign-out clears it and leaves none.
type Coordinator struct {
	auth     remote.AuthProvider
	newStore StoreFactory
	logger   *slog.Logger

	// switchMu orders session transitions; mu guards the fields below.
	switchMu sync.Mutex
	mu       sync.Mutex
	store    *taskstore.Store
	ctx      context.Context
	remove   func()
}

func NewCoordinator(auth remote.AuthProvider, newStore StoreFactory, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{auth: auth, newStore: newStore, logger: logger}
}

// Start follows the provider's session changes and sets up the cache of the
// current session. The returned error is the initialization error of that
// cache, if any; the cache is kept so a later Load can retry.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	remove := c.auth.OnSessionChange(func(s *remote.Session) {
		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		if err := c.apply(ctx, s); err != nil {
			c.logger.Warn("failed to initialize task cache", "error", err)
		}
	})
	c.mu.Lock()
	c.remove = remove
	c.mu.Unlock()
	return c.apply(ctx, c.auth.CurrentSession())
}

func (c *Coordinator) apply(ctx context.Context, s *remote.Session) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	ownerID := ""
	if s != nil {
		ownerID = s.UserID
	}
	c.mu.Lock()
	old := c.store
	if old != nil && old.OwnerID() == ownerID {
		c.mu.Unlock()
		return nil
	}
	var next *taskstore.Store
	if ownerID != "" {
		next = c.newStore(ownerID)
	}
	c.store = next
	c.mu.Unlock()

	if old != nil {
		old.Clear()
		c.logger.Info("task cache cleared", "owner_id", old.OwnerID())
	}
	if next == nil {
		return nil
	}
	c.logger.Info("task cache started", "owner_id", ownerID)
	return next.Initialize(ctx)
}

// Store returns the cache of the signed-in owner.
func (c *Coordinator) Store() (*taskstore.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, &taskstore.Error{Kind: taskstore.KindAuthRequired, Op: "session"}
	}
	return c.store, nil
}

// Close stops following the provider and the push channel of the cache.
// It is not a sign-out: the persisted staged set is left in place.
func (c *Coordinator) Close() {
	c.mu.Lock()
	remove := c.remove
	c.remove = nil
	c.mu.Unlock()
	if remove != nil {
		remove()
	}
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()
	if store != nil {
		store.Unsubscribe()
	}
}
