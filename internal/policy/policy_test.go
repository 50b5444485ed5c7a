package policy

import (
	"net/http"
	"testing"

	"yamdb/internal/domain"
)

type owned int64

func (o owned) OwnerID() int64 { return int64(o) }

var (
	user      = Actor{UserID: 1, Role: domain.RoleUser, Authenticated: true}
	otherUser = Actor{UserID: 2, Role: domain.RoleUser, Authenticated: true}
	moderator = Actor{UserID: 3, Role: domain.RoleModerator, Authenticated: true}
	admin     = Actor{UserID: 4, Role: domain.RoleAdmin, Authenticated: true}
)

func TestAdminOrReadOnly(t *testing.T) {
	tests := []struct {
		name   string
		actor  Actor
		method string
		want   Decision
	}{
		{"anonymous get", Anonymous, http.MethodGet, Allow},
		{"anonymous post", Anonymous, http.MethodPost, Deny},
		{"user post", user, http.MethodPost, Deny},
		{"moderator delete", moderator, http.MethodDelete, Deny},
		{"admin post", admin, http.MethodPost, Allow},
		{"admin patch", admin, http.MethodPatch, Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdminOrReadOnly.CanAct(tt.actor, tt.method); got != tt.want {
				t.Fatalf("CanAct = %v, want %v", got, tt.want)
			}
			if got := AdminOrReadOnly.CanActOn(tt.actor, tt.method, owned(1)); got != tt.want {
				t.Fatalf("CanActOn = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOwnerOrStaffOrReadOnlyPreObject(t *testing.T) {
	if !OwnerOrStaffOrReadOnly.CanAct(Anonymous, http.MethodGet).Allowed() {
		t.Fatalf("anonymous read should be allowed")
	}
	if OwnerOrStaffOrReadOnly.CanAct(Anonymous, http.MethodPost).Allowed() {
		t.Fatalf("anonymous create should be denied")
	}
	if !OwnerOrStaffOrReadOnly.CanAct(user, http.MethodPost).Allowed() {
		t.Fatalf("authenticated create should be allowed")
	}
}

func TestOwnerOrStaffOrReadOnlyPostObject(t *testing.T) {
	review := owned(user.UserID)
	tests := []struct {
		name   string
		actor  Actor
		method string
		want   Decision
	}{
		{"anonymous read", Anonymous, http.MethodGet, Allow},
		{"anonymous delete", Anonymous, http.MethodDelete, Deny},
		{"author patch", user, http.MethodPatch, Allow},
		{"author delete", user, http.MethodDelete, Allow},
		{"stranger patch", otherUser, http.MethodPatch, Deny},
		{"stranger read", otherUser, http.MethodGet, Allow},
		{"moderator delete", moderator, http.MethodDelete, Allow},
		{"admin patch", admin, http.MethodPatch, Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OwnerOrStaffOrReadOnly.CanActOn(tt.actor, tt.method, review); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnonymousNeverMatchesOwnerZero(t *testing.T) {
	if OwnerOrStaffOrReadOnly.CanActOn(Anonymous, http.MethodDelete, owned(0)).Allowed() {
		t.Fatalf("anonymous actor must not own a resource with zero owner id")
	}
}

func TestAdminOnly(t *testing.T) {
	if AdminOnly.CanAct(user, http.MethodGet).Allowed() {
		t.Fatalf("user must not list users")
	}
	if !AdminOnly.CanAct(admin, http.MethodDelete).Allowed() {
		t.Fatalf("admin should manage users")
	}
}

func TestActorFor(t *testing.T) {
	if ActorFor(nil) != Anonymous {
		t.Fatalf("nil user should map to anonymous")
	}
	a := ActorFor(&domain.User{ID: 9, Role: domain.RoleModerator})
	if !a.Authenticated || a.UserID != 9 || a.Role != domain.RoleModerator {
		t.Fatalf("unexpected actor %+v", a)
	}
}
