package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"yamdb/internal/domain"
	"yamdb/internal/policy"
	"yamdb/internal/service"
)

const (
	ServiceName       = "yamdb.identity.v1.IdentityService"
	getUserMethod     = "/" + ServiceName + "/GetUser"
	verifyTokenMethod = "/" + ServiceName + "/VerifyToken"
)

// IdentityServer is the server API of the identity service.
type IdentityServer interface {
	// GetUser looks a profile up by username. Administrators only: the caller
	// passes its session token as "authorization: Bearer <jwt>" metadata.
	GetUser(ctx context.Context, username *wrapperspb.StringValue) (*structpb.Struct, error)
	// VerifyToken resolves a session token to {user_id, username, role}.
	VerifyToken(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
}

// Server реализует IdentityServer поверх IdentityService и TokenService.
type Server struct {
	identity *service.IdentityService
	tokens   *service.TokenService
	logger   *slog.Logger
}

// NewServer создает новый экземпляр gRPC сервера identity.
func NewServer(identity *service.IdentityService, tokens *service.TokenService, logger *slog.Logger) *Server {
	return &Server{identity: identity, tokens: tokens, logger: logger}
}

// actorFromMetadata resolves the bearer token of an incoming call. A call
// without one is anonymous; a malformed or rejected token is an error.
func (s *Server) actorFromMetadata(ctx context.Context) (policy.Actor, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 || values[0] == "" {
		return policy.Anonymous, nil
	}
	parts := strings.Split(values[0], " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return policy.Anonymous, status.Error(codes.Unauthenticated, "invalid authorization metadata format")
	}
	user, err := s.tokens.Authenticate(ctx, parts[1])
	if err != nil {
		return policy.Anonymous, s.toStatus(ctx, "Authenticate", policy.Anonymous, err)
	}
	return policy.ActorFor(user), nil
}

// Register attaches srv to a grpc.Server.
func Register(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&identityServiceDesc, srv)
}

// userToStruct преобразует доменного пользователя в protobuf Struct.
func userToStruct(u *domain.User) (*structpb.Struct, error) {
	p := u.Privileges()
	return structpb.NewStruct(map[string]any{
		"user_id":      u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"bio":          u.Bio,
		"role":         string(u.Role),
		"is_staff":     p.Staff,
		"is_superuser": p.Superuser,
		"date_joined":  u.DateJoined.UTC().Format(time.RFC3339Nano),
	})
}

// GetUser реализует gRPC метод GetUser.
func (s *Server) GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	username := req.GetValue()
	s.logger.InfoContext(ctx, "gRPC GetUser called", slog.String("username", username))
	if username == "" {
		return nil, status.Error(codes.InvalidArgument, "username cannot be empty")
	}

	actor, err := s.actorFromMetadata(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.identity.GetUser(ctx, actor, username)
	if err != nil {
		return nil, s.toStatus(ctx, "GetUser", actor, err)
	}
	out, err := userToStruct(user)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode user", slog.Int64("userID", user.ID), slog.String("error", err.Error()))
		return nil, status.Errorf(codes.Internal, "failed to encode user: %v", err)
	}
	return out, nil
}

// VerifyToken реализует gRPC метод VerifyToken.
func (s *Server) VerifyToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "token cannot be empty")
	}
	user, err := s.tokens.Authenticate(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, "VerifyToken", policy.Anonymous, err)
	}
	s.logger.DebugContext(ctx, "gRPC token verified", slog.Int64("userID", user.ID))
	return structpb.NewStruct(map[string]any{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
	})
}

// toStatus maps the domain taxonomy onto gRPC codes. A denied anonymous
// caller gets Unauthenticated, like the 401 of the HTTP API.
func (s *Server) toStatus(ctx context.Context, method string, actor policy.Actor, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid or expired token")
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		if !actor.Authenticated {
			return status.Error(codes.Unauthenticated, "authentication credentials were not provided")
		}
		return status.Error(codes.PermissionDenied, err.Error())
	}
	s.logger.ErrorContext(ctx, "gRPC call failed", slog.String("method", method), slog.String("error", err.Error()))
	return status.Errorf(codes.Internal, "%s failed", method)
}

func getUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getUserMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).GetUser(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func verifyTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).VerifyToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: verifyTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).VerifyToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Дескриптор написан вручную: сообщения берутся из well-known types,
// поэтому отдельный .proto не нужен.
var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetUser", Handler: getUserHandler},
		{MethodName: "VerifyToken", Handler: verifyTokenHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "yamdb/identity/v1/identity.proto",
}
