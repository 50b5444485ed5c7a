// Package policy decides whether an actor may perform a request.
//
// Checks run in two phases. CanAct is evaluated before the target object is
// loaded (list, create); CanActOn once it is (update, delete). Rules are plain
// predicates combined with Any / All instead of a type hierarchy.
package policy

import (
	"net/http"

	"yamdb/internal/domain"
)

// Decision is the tagged result of a check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) Allowed() bool { return d == Allow }

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

func decide(ok bool) Decision {
	if ok {
		return Allow
	}
	return Deny
}

// Actor is the caller of an operation. The zero value is anonymous.
type Actor struct {
	UserID        int64
	Role          domain.Role
	Authenticated bool
}

// Anonymous is an unauthenticated caller.
var Anonymous = Actor{}

// ActorFor builds the actor for an authenticated user; nil yields Anonymous.
func ActorFor(u *domain.User) Actor {
	if u == nil {
		return Anonymous
	}
	return Actor{UserID: u.ID, Role: u.Role, Authenticated: true}
}

// Owned is a resource with an author.
type Owned interface {
	OwnerID() int64
}

// Request is what a predicate sees. Resource is nil in the pre-object phase.
type Request struct {
	Actor    Actor
	Method   string
	Resource Owned
}

// Predicate is a single access rule.
type Predicate func(Request) bool

// Any allows when at least one predicate holds.
func Any(ps ...Predicate) Predicate {
	return func(r Request) bool {
		for _, p := range ps {
			if p(r) {
				return true
			}
		}
		return false
	}
}

// All allows when every predicate holds.
func All(ps ...Predicate) Predicate {
	return func(r Request) bool {
		for _, p := range ps {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// IsSafeMethod reports whether method is read-only.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// SafeMethod holds for retrieval and listing.
func SafeMethod(r Request) bool { return IsSafeMethod(r.Method) }

// Authenticated holds for any logged-in actor.
func Authenticated(r Request) bool { return r.Actor.Authenticated }

// HasRole holds when an authenticated actor has exactly role.
func HasRole(role domain.Role) Predicate {
	return func(r Request) bool {
		return r.Actor.Authenticated && r.Actor.Role == role
	}
}

// IsAuthor holds when the actor wrote the resource.
func IsAuthor(r Request) bool {
	return r.Actor.Authenticated && r.Resource != nil && r.Resource.OwnerID() == r.Actor.UserID
}

// Policy pairs the pre-object and post-object rules of one resource kind.
type Policy struct {
	Name  string
	act   Predicate
	actOn Predicate
}

// New builds a policy from its two phases.
func New(name string, act, actOn Predicate) Policy {
	return Policy{Name: name, act: act, actOn: actOn}
}

// CanAct is the coarse check made before any object is loaded.
func (p Policy) CanAct(a Actor, method string) Decision {
	return decide(p.act(Request{Actor: a, Method: method}))
}

// CanActOn is the fine-grained check made once the target is loaded.
func (p Policy) CanActOn(a Actor, method string, res Owned) Decision {
	return decide(p.actOn(Request{Actor: a, Method: method, Resource: res}))
}

var isAdmin = HasRole(domain.RoleAdmin)

var (
	// AdminOrReadOnly governs categories, genres and titles.
	AdminOrReadOnly = New("admin-or-read-only",
		Any(SafeMethod, isAdmin),
		Any(SafeMethod, isAdmin),
	)

	// OwnerOrStaffOrReadOnly governs reviews and comments.
	OwnerOrStaffOrReadOnly = New("owner-or-staff-or-read-only",
		Any(SafeMethod, Authenticated),
		Any(SafeMethod, IsAuthor, HasRole(domain.RoleModerator), isAdmin),
	)

	// AdminOnly governs user administration, reads included.
	AdminOnly = New("admin-only", isAdmin, isAdmin)

	// AuthenticatedOnly governs the self profile endpoint.
	AuthenticatedOnly = New("authenticated", Authenticated, Authenticated)
)
