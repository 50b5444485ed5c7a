// Package service holds the domain operations: registration and tokens,
// catalog management and the review engine. Every mutating operation runs
// the access policy of its resource in two phases, before and after the
// target is loaded.
package service

import (
	"fmt"

	"yamdb/internal/domain"
	"yamdb/internal/policy"
)

func checkAct(p policy.Policy, a policy.Actor, method string) error {
	if p.CanAct(a, method).Allowed() {
		return nil
	}
	return fmt.Errorf("%s %s: %w", p.Name, method, domain.ErrPermissionDenied)
}

func checkActOn(p policy.Policy, a policy.Actor, method string, res policy.Owned) error {
	if p.CanActOn(a, method, res).Allowed() {
		return nil
	}
	return fmt.Errorf("%s %s: %w", p.Name, method, domain.ErrPermissionDenied)
}

func reservedUsernameError() error {
	return domain.NewValidationError("username", fmt.Sprintf("%q cannot be used as a username", domain.ReservedUsername))
}
