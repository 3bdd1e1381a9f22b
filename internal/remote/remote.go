// Package remote holds the contracts the task cache consumes from the hosted
// store and auth provider, and a connect client implementing them.
package remote

import (
	"context"
	"time"

	"github.com/kazz187/agileboard/internal/task"
)

type ChangeKind int

const (
	ChangeInserted ChangeKind = iota + 1
	ChangeUpdated
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInserted:
		return "inserted"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	}
	return "unknown"
}

// Change is one pushed row change. Task is set for inserts and updates, ID
// for every kind.
type Change struct {
	Kind ChangeKind
	ID   string
	Task *task.Task
}

func Inserted(t *task.Task) Change {
	return Change{Kind: ChangeInserted, ID: t.ID, Task: t}
}

func Updated(t *task.Task) Change {
	return Change{Kind: ChangeUpdated, ID: t.ID, Task: t}
}

func Deleted(id string) Change {
	return Change{Kind: ChangeDeleted, ID: id}
}

// TaskStore is the hosted task table.
type TaskStore interface {
	// Query returns the owner's rows sorted by order.
	Query(ctx context.Context, ownerID string) ([]*task.Task, error)
	// Insert creates t without its id and returns the stored row.
	Insert(ctx context.Context, t *task.Task) (*task.Task, error)
	Update(ctx context.Context, id string, p task.Patch) error
	Delete(ctx context.Context, id string) error
	// Subscribe delivers the owner's row changes until the subscription is
	// closed. onError is called at most once, after which no more changes
	// are delivered.
	Subscribe(ctx context.Context, ownerID string, onChange func(Change), onError func(error)) (Subscription, error)
}

type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once and from
	// inside a callback.
	Unsubscribe()
}

type Session struct {
	AccessToken string    `yaml:"access_token"`
	UserID      string    `yaml:"user_id"`
	Email       string    `yaml:"email"`
	Name        string    `yaml:"name"`
	ExpiresAt   time.Time `yaml:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}

// AuthProvider issues the current session and reports sign-in and sign-out.
type AuthProvider interface {
	// CurrentSession returns nil when signed out.
	CurrentSession() *Session
	// OnSessionChange registers fn and returns a function removing it.
	OnSessionChange(fn func(*Session)) (remove func())
	SignOut(ctx context.Context) error
}
