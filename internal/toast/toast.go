// Package toast delivers short-lived feedback messages to users and drops
// repeats of the same message that arrive within a short window.
package toast

import (
	"log/slog"
	"sync"
	"time"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
	VariantSuccess     Variant = "success"
)

// Toast is one feedback message.
type Toast struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
}

func Success(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: VariantSuccess}
}

func Error(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: VariantDestructive}
}

// Sender hands a toast to whatever transport reaches the user.
type Sender func(userID int64, t Toast)

type key struct {
	userID int64
	toast  Toast
}

// Notifier suppresses identical toasts (same user, title, description and
// variant) shown within window of each other.
type Notifier struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[key]time.Time
	send   Sender
	now    func() time.Time
	logger *slog.Logger

	// OnSuppressed, if set, is called for every dropped duplicate.
	OnSuppressed func()
}

func NewNotifier(window time.Duration, send Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		window: window,
		seen:   make(map[key]time.Time),
		send:   send,
		now:    time.Now,
		logger: logger,
	}
}

// Notify shows t to userID unless an identical toast was shown within the
// window. It reports whether the toast was sent.
func (n *Notifier) Notify(userID int64, t Toast) bool {
	if t.Variant == "" {
		t.Variant = VariantDefault
	}
	k := key{userID: userID, toast: t}

	n.mu.Lock()
	now := n.now()
	if last, ok := n.seen[k]; ok && now.Sub(last) < n.window {
		n.mu.Unlock()
		n.logger.Debug("toast suppressed", "user_id", userID, "title", t.Title)
		if n.OnSuppressed != nil {
			n.OnSuppressed()
		}
		return false
	}
	n.seen[k] = now
	n.mu.Unlock()

	if n.send != nil {
		n.send(userID, t)
	}
	return true
}

// Sweep forgets toasts older than the window.
func (n *Notifier) Sweep() {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	for k, at := range n.seen {
		if now.Sub(at) >= n.window {
			delete(n.seen, k)
		}
	}
}

// Len returns the number of remembered toasts.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.seen)
}
