package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/dukerupert/fellowship/internal/model"
)

// Requirement is what a route demands of the current session.
type Requirement int

const (
	RequireNone Requirement = iota
	RequireAuthenticated
	RequireLeader
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireNone:
		return "none"
	case RequireAuthenticated:
		return "authenticated"
	case RequireLeader:
		return "leader"
	case RequireAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

const (
	LoginPath     = "/login"
	HomePath      = "/"
	DeniedMessage = "You do not have permission to view that page."
)

// Outcome classifies a gate decision.
type Outcome int

const (
	Allowed Outcome = iota
	Unauthenticated
	Forbidden
)

// Decision is the result of a gate check. When not allowed, Redirect names
// where the client should go and Message explains why.
type Decision struct {
	Outcome  Outcome
	Redirect string
	Message  string
}

func (d Decision) Allowed() bool { return d.Outcome == Allowed }

// Checker answers the two questions the gate asks.
type Checker interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	HasRole(ctx context.Context, role string) (bool, error)
}

// Gate decides render-or-redirect for a route.
type Gate struct {
	checker Checker
}

func NewGate(c Checker) *Gate {
	return &Gate{checker: c}
}

// Check evaluates req for the request at path. Errors from the checker are
// treated as "no access"; nothing is retried.
func (g *Gate) Check(ctx context.Context, req Requirement, path string) Decision {
	if req == RequireNone {
		return Decision{Outcome: Allowed}
	}

	ok, err := g.checker.IsAuthenticated(ctx)
	if err != nil || !ok {
		return Decision{
			Outcome:  Unauthenticated,
			Redirect: LoginRedirect(path),
		}
	}

	var role string
	switch req {
	case RequireLeader:
		role = model.RoleLeader
	case RequireAdmin:
		role = model.RoleAdmin
	default:
		return Decision{Outcome: Allowed}
	}

	ok, err = g.checker.HasRole(ctx, role)
	if err != nil || !ok {
		return Decision{
			Outcome:  Forbidden,
			Redirect: HomePath,
			Message:  DeniedMessage,
		}
	}
	return Decision{Outcome: Allowed}
}

// LoginRedirect returns the login URL carrying path as its return target.
func LoginRedirect(path string) string {
	if !SafeReturnPath(path) || path == HomePath {
		return LoginPath
	}
	return LoginPath + "?redirect=" + url.QueryEscape(path)
}

// SafeReturnPath reports whether p is a same-site absolute path that is safe
// to redirect to after login.
func SafeReturnPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return false
	}
	if strings.HasPrefix(p, LoginPath) {
		return false
	}
	// Browsers drop tab, CR and LF while parsing, so "/\t/x" becomes "//x".
	for i := 0; i < len(p); i++ {
		if c := p[i]; c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
