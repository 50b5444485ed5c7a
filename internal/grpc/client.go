package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"yamdb/internal/domain"
)

const callTimeout = 3 * time.Second

// Identity is what a verified session token resolves to.
type Identity struct {
	UserID   int64
	Username string
	Role     domain.Role
}

// IdentityClient вызывает identity сервис из соседних сервисов.
type IdentityClient struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// NewIdentityClient connects lazily to addr; opts are applied after the
// default insecure transport credentials.
func NewIdentityClient(addr string, logger *slog.Logger, opts ...grpc.DialOption) (*IdentityClient, error) {
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		logger.Error("Failed to create identity gRPC client", slog.String("address", addr), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to create identity client for %s: %w", addr, err)
	}
	return &IdentityClient{conn: conn, logger: logger}, nil
}

func (c *IdentityClient) call(ctx context.Context, method, arg string) (*structpb.Struct, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, method, wrapperspb.String(arg), out); err != nil {
		if st, ok := status.FromError(err); ok {
			c.logger.WarnContext(ctx, "Identity gRPC call failed with status",
				slog.String("method", method),
				slog.String("code", st.Code().String()),
				slog.String("message", st.Message()))
		}
		return nil, fmt.Errorf("grpc %s: %w", method, err)
	}
	return out, nil
}

// GetUser fetches a profile by username on behalf of the holder of token,
// who must be an administrator.
func (c *IdentityClient) GetUser(ctx context.Context, token, username string) (*domain.User, error) {
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	res, err := c.call(ctx, getUserMethod, username)
	if err != nil {
		return nil, err
	}
	f := res.GetFields()
	u := &domain.User{
		ID:        int64(f["user_id"].GetNumberValue()),
		Username:  f["username"].GetStringValue(),
		Email:     f["email"].GetStringValue(),
		FirstName: f["first_name"].GetStringValue(),
		LastName:  f["last_name"].GetStringValue(),
		Bio:       f["bio"].GetStringValue(),
		Role:      domain.Role(f["role"].GetStringValue()),
		IsActive:  true,
	}
	if joined, err := time.Parse(time.RFC3339Nano, f["date_joined"].GetStringValue()); err == nil {
		u.DateJoined = joined
	}
	return u, nil
}

// VerifyToken resolves a session token through the identity service.
func (c *IdentityClient) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	res, err := c.call(ctx, verifyTokenMethod, token)
	if err != nil {
		return nil, err
	}
	f := res.GetFields()
	return &Identity{
		UserID:   int64(f["user_id"].GetNumberValue()),
		Username: f["username"].GetStringValue(),
		Role:     domain.Role(f["role"].GetStringValue()),
	}, nil
}

// Close закрывает gRPC соединение.
func (c *IdentityClient) Close() error {
	c.logger.Info("Closing identity gRPC connection")
	return c.conn.Close()
}
