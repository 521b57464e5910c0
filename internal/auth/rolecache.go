package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dukerupert/fellowship/internal/authstate"
)

// ErrUnknownUser is returned when the role loader finds no such user.
var ErrUnknownUser = errors.New("unknown user")

// RoleLoader fetches the current role for a user. It returns "" when the
// user does not exist.
type RoleLoader func(userID int64) (string, error)

type roleEntry struct {
	role     string
	cachedAt time.Time
}

// RoleCache holds user roles between requests. Entries live until an auth
// state change invalidates them or maxAge passes.
type RoleCache struct {
	mu      sync.RWMutex
	entries map[int64]roleEntry
	load    RoleLoader
	maxAge  time.Duration
	now     func() time.Time

	// gen and versions advance on every invalidation; a load only lands
	// in entries if neither moved while it ran.
	gen      uint64
	versions map[int64]uint64
}

func NewRoleCache(load RoleLoader, maxAge time.Duration) *RoleCache {
	return &RoleCache{
		entries:  make(map[int64]roleEntry),
		versions: make(map[int64]uint64),
		load:     load,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Get returns the cached role for userID, loading it on a miss.
func (c *RoleCache) Get(userID int64) (string, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	gen, ver := c.gen, c.versions[userID]
	c.mu.RUnlock()
	if ok && (c.maxAge <= 0 || c.now().Sub(e.cachedAt) < c.maxAge) {
		return e.role, nil
	}

	role, err := c.load(userID)
	if err != nil {
		return "", err
	}
	if role == "" {
		c.Invalidate(userID)
		return "", ErrUnknownUser
	}

	c.mu.Lock()
	if c.gen == gen && c.versions[userID] == ver {
		c.entries[userID] = roleEntry{role: role, cachedAt: c.now()}
	}
	c.mu.Unlock()
	return role, nil
}

func (c *RoleCache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.versions[userID]++
	c.mu.Unlock()
}

func (c *RoleCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]roleEntry)
	c.gen++
	c.mu.Unlock()
}

// HandleAuthState is an authstate.Listener that drops stale entries.
func (c *RoleCache) HandleAuthState(ev authstate.Event) {
	if ev.UserID == 0 {
		c.InvalidateAll()
		return
	}
	c.Invalidate(ev.UserID)
}

// ContextChecker is the Checker used for HTTP requests: authentication comes
// from the request's AuthContext and roles from the cache.
type ContextChecker struct {
	Roles *RoleCache
}

func (cc ContextChecker) IsAuthenticated(ctx context.Context) (bool, error) {
	_, ok := FromContext(ctx)
	return ok, nil
}

func (cc ContextChecker) HasRole(ctx context.Context, required string) (bool, error) {
	ac, ok := FromContext(ctx)
	if !ok {
		return false, nil
	}
	role, err := cc.Roles.Get(ac.UserID)
	if err != nil {
		return false, err
	}
	return Satisfies(role, required), nil
}
