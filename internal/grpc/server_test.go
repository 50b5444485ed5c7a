package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"yamdb/internal/clock"
	"yamdb/internal/domain"
	"yamdb/internal/notify"
	"yamdb/internal/service"
	"yamdb/internal/store"
	"yamdb/pkg/auth"
)

const testSecret = "grpc-test-secret-grpc-test-secret-grpc"

type harness struct {
	client *IdentityClient
	users  store.UserStore
	tokens *service.TokenService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stores := store.NewMemoryStores()

	codeGen, err := auth.NewCodeGenerator(testSecret)
	if err != nil {
		t.Fatalf("code generator: %v", err)
	}
	tm, err := auth.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	tokens, err := service.NewTokenService(codeGen, tm, stores.Users, logger)
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	identity := service.NewIdentityService(stores.Users, tokens, notify.NewLogNotifier("noreply@yamdb.local", logger),
		domain.NewValidator(), clock.System, logger)
	Register(srv, NewServer(identity, tokens, logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := NewIdentityClient("passthrough:///bufnet", logger,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return &harness{client: client, users: stores.Users, tokens: tokens}
}

func (h *harness) addUser(t *testing.T, username string, role domain.Role) *domain.User {
	t.Helper()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &domain.User{
		Username:   username,
		Email:      username + "@example.com",
		Role:       role,
		IsActive:   true,
		DateJoined: now,
		UpdatedAt:  now,
	}
	if err := h.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return u
}

func (h *harness) tokenFor(t *testing.T, u *domain.User) string {
	t.Helper()
	token, err := h.tokens.IssueSessionToken(u)
	if err != nil {
		t.Fatalf("issue token for %s: %v", u.Username, err)
	}
	return token
}

func TestGetUser(t *testing.T) {
	h := newHarness(t)
	want := h.addUser(t, "alice", domain.RoleAdmin)
	admin := h.tokenFor(t, want)

	got, err := h.client.GetUser(context.Background(), admin, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.ID != want.ID || got.Email != want.Email || got.Role != domain.RoleAdmin {
		t.Fatalf("GetUser = %+v, want %+v", got, want)
	}
	if !got.DateJoined.Equal(want.DateJoined) {
		t.Fatalf("DateJoined = %v, want %v", got.DateJoined, want.DateJoined)
	}

	_, err = h.client.GetUser(context.Background(), admin, "ghost")
	if status.Code(err) != codes.NotFound {
		t.Fatalf("unknown user: want NotFound, got %v", err)
	}
	_, err = h.client.GetUser(context.Background(), admin, "")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("empty username: want InvalidArgument, got %v", err)
	}
}

func TestGetUserRequiresAdmin(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "victim", domain.RoleAdmin)
	plain := h.tokenFor(t, h.addUser(t, "plain", domain.RoleUser))
	mod := h.tokenFor(t, h.addUser(t, "mod", domain.RoleModerator))

	tests := []struct {
		name  string
		token string
		want  codes.Code
	}{
		{"anonymous", "", codes.Unauthenticated},
		{"garbage token", "not-a-jwt", codes.Unauthenticated},
		{"user", plain, codes.PermissionDenied},
		{"moderator", mod, codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := h.client.GetUser(context.Background(), tt.token, "victim")
			if status.Code(err) != tt.want {
				t.Fatalf("want %v, got user=%+v err=%v", tt.want, u, err)
			}
		})
	}
}

func TestVerifyToken(t *testing.T) {
	h := newHarness(t)
	u := h.addUser(t, "bob", domain.RoleModerator)
	token := h.tokenFor(t, u)

	id, err := h.client.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if id.UserID != u.ID || id.Username != "bob" || id.Role != domain.RoleModerator {
		t.Fatalf("VerifyToken = %+v", id)
	}

	_, err = h.client.VerifyToken(context.Background(), "not-a-jwt")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("garbage token: want Unauthenticated, got %v", err)
	}

	if err := h.users.Delete(context.Background(), u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = h.client.VerifyToken(context.Background(), token)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("deleted user: want Unauthenticated, got %v", err)
	}
}
