package domain

import (
	"context"
	"errors"
	"testing"
)

func TestPrivilegesOf(t *testing.T) {
	tests := []struct {
		role Role
		want Privileges
	}{
		{RoleUser, Privileges{}},
		{RoleModerator, Privileges{Moderate: true}},
		{RoleAdmin, Privileges{Staff: true, Superuser: true, Moderate: true}},
		{Role("ghost"), Privileges{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := PrivilegesOf(tt.role); got != tt.want {
				t.Errorf("PrivilegesOf(%q) = %+v, want %+v", tt.role, got, tt.want)
			}
		})
	}
}

func TestValidUsername(t *testing.T) {
	for _, name := range []string{"alice", "a.b@c+d-e_f", "Юля", "user42"} {
		if !ValidUsername(name) {
			t.Errorf("ValidUsername(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"", "has space", "semi;colon", "slash/"} {
		if ValidUsername(name) {
			t.Errorf("ValidUsername(%q) = true, want false", name)
		}
	}
}

func TestValidateStructReportsJSONFields(t *testing.T) {
	v := NewValidator()
	err := ValidateStruct(context.Background(), v, &SignupRequest{Username: "bad name", Email: "nope"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["username"]; !ok {
		t.Errorf("missing username field in %v", verr.Fields)
	}
	if _, ok := verr.Fields["email"]; !ok {
		t.Errorf("missing email field in %v", verr.Fields)
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("errors.Is(err, ErrValidation) = false")
	}

	if err := ValidateStruct(context.Background(), v, &CreateReviewRequest{Text: "ok", Score: 11}); err == nil {
		t.Errorf("score 11 accepted")
	}
	if err := ValidateStruct(context.Background(), v, &CreateSlugRequest{Name: "Films", Slug: "кино"}); err == nil {
		t.Errorf("non-latin slug accepted")
	}
}

func TestPageNormalize(t *testing.T) {
	if p := (Page{}).Normalize(); p.Limit != DefaultPageLimit || p.Offset != 0 {
		t.Errorf("zero page = %+v", p)
	}
	if p := (Page{Limit: 1000, Offset: -3}).Normalize(); p.Limit != MaxPageLimit || p.Offset != 0 {
		t.Errorf("clamped page = %+v", p)
	}
}
