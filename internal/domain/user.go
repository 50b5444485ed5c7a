// internal/domain/user.go
package domain

import (
	"time"
)

// Role is the access level of a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ReservedUsername is taken by the "self" endpoint (/users/me/).
const ReservedUsername = "me"

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Privileges are derived from a role on read and never stored.
type Privileges struct {
	Staff     bool
	Superuser bool
	Moderate  bool
}

// PrivilegesOf returns the capability set granted by role.
func PrivilegesOf(role Role) Privileges {
	switch role {
	case RoleAdmin:
		return Privileges{Staff: true, Superuser: true, Moderate: true}
	case RoleModerator:
		return Privileges{Moderate: true}
	default:
		return Privileges{}
	}
}

// User представляет зарегистрированного пользователя.
type User struct {
	ID           int64     `json:"-" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // placeholder, never a real login secret
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Bio          string    `json:"bio" db:"bio"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"-" db:"is_active"`
	DateJoined   time.Time `json:"-" db:"date_joined"`
	UpdatedAt    time.Time `json:"-" db:"updated_at"`
}

// Privileges returns the capability set of the user's current role.
func (u *User) Privileges() Privileges {
	return PrivilegesOf(u.Role)
}

// SignupRequest для регистрации (POST /auth/signup/).
type SignupRequest struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"required,max=254,email"`
}

// TokenRequest exchanges a confirmation code for a session token.
type TokenRequest struct {
	Username         string `json:"username" validate:"required"`
	ConfirmationCode string `json:"confirmation_code" validate:"required"`
}

// TokenResponse carries the issued session token.
type TokenResponse struct {
	Token string `json:"token"`
}

// CreateUserRequest is used by administrators to add users directly.
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,max=150,username"`
	Email     string `json:"email" validate:"required,max=254,email"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Bio       string `json:"bio"`
	Role      Role   `json:"role" validate:"omitempty,oneof=user moderator admin"`
}

// UpdateUserRequest is a partial update of a profile. Nil fields are left untouched.
type UpdateUserRequest struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,max=150,username"`
	Email     *string `json:"email,omitempty" validate:"omitempty,max=254,email"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=150"`
	Bio       *string `json:"bio,omitempty"`
	Role      *Role   `json:"role,omitempty" validate:"omitempty,oneof=user moderator admin"`
}

// UserListParams filters the users listing.
type UserListParams struct {
	Search string
	Page   Page
}
