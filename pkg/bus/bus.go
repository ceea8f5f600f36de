package bus

import (
	"sync"

	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/project"
)

// subscription is one registered listener, optionally scoped to a project.
type subscription struct {
	id      int64
	project string // "" means global: receive everything
	fn      Listener
}

// Bus is an in-process pub/sub bus with per-instance monotonic event ids.
//
// Delivery is synchronous: Emit invokes every matching listener before
// returning, in subscription order. A slow listener delays the listeners
// after it within that one emission, nothing more.
type Bus struct {
	logger logger.Logger

	mu      sync.Mutex
	nextID  int64
	nextSub int64
	subs    []subscription
}

// NewBus creates an empty bus.
func NewBus(log logger.Logger) *Bus {
	return &Bus{logger: log}
}

// Emit assigns the next event id, delivers to matching subscribers, and
// returns the assigned id.
func (b *Bus) Emit(frameType, projectKey string, data interface{}) int64 {
	id := b.allocate()
	b.dispatch(Delivery{
		ID:      id,
		Type:    frameType,
		Project: normalizeKey(projectKey),
		Data:    data,
	})
	return id
}

// Subscribe registers a listener, optionally scoped to one project
// identity (empty means global). It returns an unsubscribe closure that
// is safe to call more than once.
func (b *Bus) Subscribe(projectKey string, fn Listener) func() {
	key := normalizeKey(projectKey)

	b.mu.Lock()
	b.nextSub++
	subID := b.nextSub
	b.subs = append(b.subs, subscription{id: subID, project: key, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, s := range b.subs {
			if s.id == subID {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// allocate claims the next event id.
func (b *Bus) allocate() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	return b.nextID
}

// dispatch delivers d to every subscriber whose scope matches.
//
// The subscriber list is snapshotted under the lock and invoked outside
// it, so a listener may subscribe or unsubscribe during delivery.
func (b *Bus) dispatch(d Delivery) {
	b.mu.Lock()
	matching := make([]Listener, 0, len(b.subs))
	for _, s := range b.subs {
		if s.project == "" || s.project == d.Project {
			matching = append(matching, s.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range matching {
		fn(d)
	}
}

// normalizeKey folds a raw root path or identity into the canonical
// project key, so differently-spelled roots share one partition.
func normalizeKey(key string) string {
	return project.Key(key)
}
