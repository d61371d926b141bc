package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	accessTokenKey ctxKey = "accessToken"
	claimsKey      ctxKey = "claims"
)

// protectedMethods need a valid access token in metadata.
var protectedMethods = map[string]bool{
	MethodMe: true,
}

func withAccessToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

func accessTokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	return ""
}

func claimsFromContext(ctx context.Context) (*auth.Claims, string, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	token, _ := ctx.Value(accessTokenKey).(string)
	return claims, token, ok
}

func (s *Server) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token := accessTokenFromMetadata(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid access token")
	}

	ctx = context.WithValue(ctx, accessTokenKey, token)
	ctx = context.WithValue(ctx, claimsKey, claims)
	return handler(ctx, req)
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	s.metrics.GRPCRequest(info.FullMethod, code.String())
	s.logger.Info(ctx, "grpc request",
		"method", info.FullMethod,
		"code", code.String(),
		"duration", time.Since(start),
	)
	return resp, err
}
