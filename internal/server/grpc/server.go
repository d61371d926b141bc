// Package grpc exposes the authentication service over gRPC with a JSON
// message codec.
package grpc

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AuthService is the part of services.UserService served over gRPC.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.Identity, error)
	SignIn(ctx context.Context, in services.SignInInput) (*services.AuthResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*services.AuthResult, error)
	Me(ctx context.Context, accessToken string) (*models.Identity, error)
	Ping(ctx context.Context) error
}

// TokenVerifier checks access tokens for protected methods.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type Server struct {
	address  string
	svc      AuthService
	verifier TokenVerifier
	metrics  *metrics.Metrics
	logger   logging.Logger
}

func NewServer(address string, svc AuthService, verifier TokenVerifier, mt *metrics.Metrics, l logging.Logger) *Server {
	if l == nil {
		l = logging.Nop{}
	}
	return &Server{
		address:  address,
		svc:      svc,
		verifier: verifier,
		metrics:  mt,
		logger:   l.With("module", "grpc_server"),
	}
}

func (s *Server) newGRPCServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&AuthServiceDesc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newGRPCServer()

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			srv.GracefulStop()
		case <-stopped:
		}
	}()
	defer close(stopped)

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) SignUp(ctx context.Context, req *SignUpRequest) (*models.Identity, error) {
	id, err := s.svc.Register(ctx, services.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "Registered", "user_id", id.ID)
	return id, nil
}

func (s *Server) SignIn(ctx context.Context, req *SignInRequest) (*AuthResponse, error) {
	res, err := s.svc.SignIn(ctx, services.SignInInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return authResponse(res), nil
}

func (s *Server) Refresh(ctx context.Context, req *RefreshRequest) (*AuthResponse, error) {
	res, err := s.svc.Refresh(ctx, req.Access, req.Refresh)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return authResponse(res), nil
}

func (s *Server) Me(ctx context.Context, _ *MeRequest) (*models.Identity, error) {
	_, token, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	id, err := s.svc.Me(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return id, nil
}

func (s *Server) Ping(ctx context.Context, _ *PingRequest) (*PingResponse, error) {
	if err := s.svc.Ping(ctx); err != nil {
		s.logger.Warn(ctx, "ping failed", "error", err)
		return nil, status.Error(codes.Unavailable, "database unavailable")
	}
	return &PingResponse{Status: "OK"}, nil
}

func authResponse(res *services.AuthResult) *AuthResponse {
	return &AuthResponse{User: res.User, Token: res.Tokens, AccessExpiresAt: res.Tokens.AccessExpiresAt}
}

// toStatus maps service errors onto gRPC codes. Unrecognized errors are
// logged and reported without detail.
func (s *Server) toStatus(ctx context.Context, err error) error {
	var ve *common.ValidationError
	var ce *common.ConflictError

	switch {
	case errors.As(err, &ve):
		parts := make([]string, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			parts = append(parts, f.Attr+": "+f.Detail)
		}
		return status.Error(codes.InvalidArgument, strings.Join(parts, "; "))
	case errors.As(err, &ce):
		return status.Error(codes.AlreadyExists, ce.Detail)
	case errors.Is(err, common.ErrorUnauthorized):
		msg := strings.TrimPrefix(err.Error(), common.ErrorUnauthorized.Error()+": ")
		return status.Error(codes.Unauthenticated, msg)
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
