package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

type ctxKey string

// AccountIDKey holds the authenticated account id in a handler context.
const AccountIDKey ctxKey = "accountID"

// authorizationMetadata is the lower-cased form gRPC uses for metadata keys.
var authorizationMetadata = strings.ToLower(common.AuthorizationHeaderName)

// publicServices need no session token. Every other service registered on
// the server is account-scoped.
var publicServices = map[string]bool{
	healthpb.Health_ServiceDesc.ServiceName: true,
}

// AccountIDFromContext returns the account authenticated by the interceptor.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountIDKey).(string)
	return id, ok && id != ""
}

func isPublic(fullMethod string) bool {
	service, _, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	return ok && publicServices[service]
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationMetadata); len(values) > 0 {
			token = strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
		}
	}
	if len(token) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.accounts.Authenticate(ctx, token)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTokenExpired):
		return nil, status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthenticated):
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	default:
		s.logger.Error(ctx, "authenticate", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unavailable, "authentication unavailable")
	}

	ctx = context.WithValue(ctx, AccountIDKey, claims.AccountID())
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if code == codes.OK {
		s.logger.Debug(ctx, "grpc request", args...)
	} else {
		s.logger.Warn(ctx, "grpc request", args...)
	}

	return resp, err
}
