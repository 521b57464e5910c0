// Package authstate publishes "auth state changed" notifications: logins,
// logouts and role changes. Listeners use them to drop cached role data and
// to tell open clients to re-run their access checks.
package authstate

import (
	"log/slog"
	"sync"
)

// Kind says what changed.
type Kind string

const (
	KindLogin       Kind = "login"
	KindLogout      Kind = "logout"
	KindRoleChanged Kind = "role_changed"
)

// Event describes a change to one user's authentication state.
// A zero UserID means every user is affected.
type Event struct {
	UserID int64  `json:"userId"`
	Kind   Kind   `json:"kind"`
	Role   string `json:"role,omitempty"`
}

// Listener receives events synchronously from Publish.
type Listener func(Event)

// Broker fans events out to listeners.
type Broker struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
	logger    *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broker) Subscribe(fn Listener) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every listener in subscription order. Listeners
// run on the caller's goroutine, outside the broker lock.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	fns := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	b.logger.Debug("auth state changed", "user_id", ev.UserID, "kind", ev.Kind)
	for _, fn := range fns {
		fn(ev)
	}
}

// ListenerCount returns the number of registered listeners.
func (b *Broker) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
