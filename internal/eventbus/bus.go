package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agileboard/internal/rpc"
)

type subscriber struct {
	ownerID string
	ch      chan *rpc.TaskEvent
}

// Bus fans task events out to the subscribers of the owning user.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]subscriber
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]subscriber),
	}
}

func (b *Bus) Subscribe(ownerID string, bufSize int) (string, <-chan *rpc.TaskEvent) {
	id := ulid.Make().String()
	ch := make(chan *rpc.TaskEvent, bufSize)
	b.mu.Lock()
	b.subscribers[id] = subscriber{ownerID: ownerID, ch: ch}
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *rpc.TaskEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.ownerID != event.OwnerID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

// PublishNew publishes a change of t. For deletes only the id and owner of t
// are sent.
func (b *Bus) PublishNew(eventType rpc.EventType, t *rpc.Task) {
	event := &rpc.TaskEvent{
		ID:      ulid.Make().String(),
		Type:    eventType,
		OwnerID: t.OwnerID,
		TaskID:  t.ID,
		At:      time.Now(),
	}
	if eventType != rpc.EventDeleted {
		row := *t
		event.Task = &row
	}
	b.Publish(event)
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
