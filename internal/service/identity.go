package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"yamdb/internal/clock"
	"yamdb/internal/domain"
	"yamdb/internal/notify"
	"yamdb/internal/policy"
	"yamdb/internal/store"
	"yamdb/pkg/auth"
)

// IdentityService registers users, exchanges codes for tokens and manages
// profiles.
type IdentityService struct {
	users    store.UserStore
	tokens   *TokenService
	notifier notify.Notifier
	validate *validator.Validate
	clock    clock.Clock
	logger   *slog.Logger
}

func NewIdentityService(users store.UserStore, tokens *TokenService, notifier notify.Notifier, validate *validator.Validate, clk clock.Clock, logger *slog.Logger) *IdentityService {
	return &IdentityService{users: users, tokens: tokens, notifier: notifier, validate: validate, clock: clk, logger: logger}
}

// RegisterResult is returned by a successful registration. Warning is set
// when the user was persisted but the confirmation mail could not be handed
// to the notifier.
type RegisterResult struct {
	User    *domain.User
	Created bool
	Warning string
}

// Register creates (or finds) the user with exactly this (username, email)
// pair and mails them a fresh confirmation code.
func (s *IdentityService) Register(ctx context.Context, req domain.SignupRequest) (*RegisterResult, error) {
	if req.Username == domain.ReservedUsername {
		return nil, reservedUsernameError()
	}
	if err := domain.ValidateStruct(ctx, s.validate, &req); err != nil {
		return nil, err
	}

	hash, err := auth.PlaceholderPasswordHash()
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to hash placeholder password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("could not process registration: %w", err)
	}
	now := clock.Stamp(s.clock)
	user, created, err := s.users.GetOrCreate(ctx, &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
		DateJoined:   now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrUserAlreadyExists) {
			s.logger.WarnContext(ctx, "Registration conflicts with an existing user", slog.String("username", req.Username))
		}
		return nil, err
	}

	result := &RegisterResult{User: user, Created: created}
	code := s.tokens.IssueConfirmationCode(user)
	if err := s.notifier.Send(ctx, user.Email, notify.ConfirmationMessage(code)); err != nil {
		s.logger.WarnContext(ctx, "Confirmation code was not delivered",
			slog.Int64("userID", user.ID), slog.String("error", err.Error()))
		result.Warning = "confirmation code could not be sent, request a new one later"
	}
	s.logger.InfoContext(ctx, "Confirmation code issued", slog.Int64("userID", user.ID), slog.Bool("created", created))
	return result, nil
}

// ObtainToken exchanges a confirmation code for a session token.
func (s *IdentityService) ObtainToken(ctx context.Context, req domain.TokenRequest) (string, error) {
	if err := domain.ValidateStruct(ctx, s.validate, &req); err != nil {
		return "", err
	}
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return "", err
	}
	if !user.IsActive || !s.tokens.VerifyConfirmationCode(user, req.ConfirmationCode) {
		s.logger.WarnContext(ctx, "Invalid confirmation code", slog.String("username", req.Username))
		return "", fmt.Errorf("confirmation code does not match: %w", domain.ErrInvalidCredentials)
	}
	token, err := s.tokens.IssueSessionToken(user)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to issue session token", slog.Int64("userID", user.ID), slog.String("error", err.Error()))
		return "", err
	}
	return token, nil
}

// Me returns the actor's own profile.
func (s *IdentityService) Me(ctx context.Context, actor policy.Actor) (*domain.User, error) {
	if err := checkAct(policy.AuthenticatedOnly, actor, http.MethodGet); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, actor.UserID)
}

// UpdateSelf applies a self-service profile edit. Any attempt to change the
// role rejects the whole patch.
func (s *IdentityService) UpdateSelf(ctx context.Context, actor policy.Actor, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := checkAct(policy.AuthenticatedOnly, actor, http.MethodPatch); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if req.Role != nil && *req.Role != user.Role {
		s.logger.WarnContext(ctx, "Self-service role change rejected",
			slog.Int64("userID", user.ID),
			slog.String("current", string(user.Role)),
			slog.String("requested", string(*req.Role)))
		return nil, fmt.Errorf("cannot change own role from %q to %q: %w", user.Role, *req.Role, domain.ErrRoleEscalation)
	}
	return s.applyUpdate(ctx, user, req)
}

// applyUpdate validates and persists a partial profile update.
func (s *IdentityService) applyUpdate(ctx context.Context, user *domain.User, req domain.UpdateUserRequest) (*domain.User, error) {
	if req.Username != nil && *req.Username == domain.ReservedUsername {
		return nil, reservedUsernameError()
	}
	if err := domain.ValidateStruct(ctx, s.validate, &req); err != nil {
		return nil, err
	}
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	user.UpdatedAt = clock.Stamp(s.clock)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User profile updated", slog.Int64("userID", user.ID))
	return user, nil
}

// --- administration ---

func (s *IdentityService) ListUsers(ctx context.Context, actor policy.Actor, params domain.UserListParams) ([]*domain.User, int, error) {
	if err := checkAct(policy.AdminOnly, actor, http.MethodGet); err != nil {
		return nil, 0, err
	}
	return s.users.List(ctx, params)
}

func (s *IdentityService) CreateUser(ctx context.Context, actor policy.Actor, req domain.CreateUserRequest) (*domain.User, error) {
	if err := checkAct(policy.AdminOnly, actor, http.MethodPost); err != nil {
		return nil, err
	}
	if req.Username == domain.ReservedUsername {
		return nil, reservedUsernameError()
	}
	if err := domain.ValidateStruct(ctx, s.validate, &req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = domain.RoleUser
	}
	hash, err := auth.PlaceholderPasswordHash()
	if err != nil {
		return nil, fmt.Errorf("could not create user: %w", err)
	}
	now := clock.Stamp(s.clock)
	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Bio:          req.Bio,
		Role:         req.Role,
		IsActive:     true,
		DateJoined:   now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User created by administrator", slog.Int64("userID", user.ID), slog.Int64("adminID", actor.UserID))
	return user, nil
}

func (s *IdentityService) GetUser(ctx context.Context, actor policy.Actor, username string) (*domain.User, error) {
	if err := checkAct(policy.AdminOnly, actor, http.MethodGet); err != nil {
		return nil, err
	}
	return s.users.GetByUsername(ctx, username)
}

// UpdateUser is the administrator edit; unlike UpdateSelf it may change roles.
func (s *IdentityService) UpdateUser(ctx context.Context, actor policy.Actor, username string, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := checkAct(policy.AdminOnly, actor, http.MethodPatch); err != nil {
		return nil, err
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, user, req)
}

func (s *IdentityService) DeleteUser(ctx context.Context, actor policy.Actor, username string) error {
	if err := checkAct(policy.AdminOnly, actor, http.MethodDelete); err != nil {
		return err
	}
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "User deleted", slog.Int64("userID", user.ID), slog.Int64("adminID", actor.UserID))
	return nil
}
