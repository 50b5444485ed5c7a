package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"yamdb/internal/domain"
	"yamdb/internal/store"
	"yamdb/pkg/auth"
)

// ErrUnauthenticated is returned when a session token cannot be turned into
// an active user.
var ErrUnauthenticated = fmt.Errorf("session token rejected: %w", domain.ErrInvalidCredentials)

// TokenService issues confirmation codes and session tokens.
type TokenService struct {
	codes  *auth.CodeGenerator
	tokens auth.TokenManager
	users  store.UserStore
	logger *slog.Logger
}

func NewTokenService(codes *auth.CodeGenerator, tokens auth.TokenManager, users store.UserStore, logger *slog.Logger) (*TokenService, error) {
	if codes == nil || tokens == nil || users == nil {
		return nil, errors.New("token service requires a code generator, a token manager and a user store")
	}
	return &TokenService{codes: codes, tokens: tokens, users: users, logger: logger}, nil
}

// codeState lists every persisted field a confirmation code is bound to.
func codeState(u *domain.User) []string {
	return []string{
		strconv.FormatInt(u.ID, 10),
		u.Username,
		u.Email,
		string(u.Role),
		u.FirstName,
		u.LastName,
		u.Bio,
		strconv.FormatBool(u.IsActive),
		u.PasswordHash,
		strconv.FormatInt(u.DateJoined.UnixMicro(), 10),
		strconv.FormatInt(u.UpdatedAt.UnixMicro(), 10),
	}
}

// IssueConfirmationCode derives the code for the user's current state.
func (s *TokenService) IssueConfirmationCode(u *domain.User) string {
	return s.codes.Make(codeState(u)...)
}

// VerifyConfirmationCode has no side effects.
func (s *TokenService) VerifyConfirmationCode(u *domain.User, code string) bool {
	return s.codes.Check(code, codeState(u)...)
}

func (s *TokenService) IssueSessionToken(u *domain.User) (string, error) {
	token, err := s.tokens.Generate(u.ID, u.Username)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return token, nil
}

// Authenticate verifies a session token and loads the user it names.
// Deleted and deactivated users are rejected.
func (s *TokenService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.logger.DebugContext(ctx, "Session token rejected", slog.String("error", err.Error()))
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "Session token for a missing user", slog.Int64("userID", claims.UserID))
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		s.logger.WarnContext(ctx, "Session token for an inactive user", slog.Int64("userID", user.ID))
		return nil, ErrUnauthenticated
	}
	return user, nil
}
