package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "notekeeper.auth.AuthService"

const (
	MethodSignUp  = "/" + ServiceName + "/SignUp"
	MethodSignIn  = "/" + ServiceName + "/SignIn"
	MethodRefresh = "/" + ServiceName + "/Refresh"
	MethodMe      = "/" + ServiceName + "/Me"
	MethodPing    = "/" + ServiceName + "/Ping"
)

type SignUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AuthResponse struct {
	User            models.Identity `json:"user"`
	Token           auth.TokenPair  `json:"token"`
	AccessExpiresAt time.Time       `json:"accessExpiresAt"`
}

type MeRequest struct{}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// AuthServer is implemented by Server and registered through AuthServiceDesc.
type AuthServer interface {
	SignUp(context.Context, *SignUpRequest) (*models.Identity, error)
	SignIn(context.Context, *SignInRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*AuthResponse, error)
	Me(context.Context, *MeRequest) (*models.Identity, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(AuthServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServer), ctx, req.(*Req))
		})
	}
}

// AuthServiceDesc describes the service for grpc.Server.RegisterService.
// Messages travel as JSON, so there are no generated stubs.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SignUp", Handler: unaryHandler(MethodSignUp, AuthServer.SignUp)},
		{MethodName: "SignIn", Handler: unaryHandler(MethodSignIn, AuthServer.SignIn)},
		{MethodName: "Refresh", Handler: unaryHandler(MethodRefresh, AuthServer.Refresh)},
		{MethodName: "Me", Handler: unaryHandler(MethodMe, AuthServer.Me)},
		{MethodName: "Ping", Handler: unaryHandler(MethodPing, AuthServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notekeeper/auth",
}

// AuthClient calls AuthService over an established connection.
type AuthClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthClient(cc grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{cc: cc}
}

func (c *AuthClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *AuthClient) SignUp(ctx context.Context, in *SignUpRequest, opts ...grpc.CallOption) (*models.Identity, error) {
	out := new(models.Identity)
	if err := c.invoke(ctx, MethodSignUp, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthClient) SignIn(ctx context.Context, in *SignInRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.invoke(ctx, MethodSignIn, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthClient) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	out := new(AuthResponse)
	if err := c.invoke(ctx, MethodRefresh, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// Me sends accessToken as the access_token metadata entry.
func (c *AuthClient) Me(ctx context.Context, accessToken string, opts ...grpc.CallOption) (*models.Identity, error) {
	ctx = withAccessToken(ctx, accessToken)
	out := new(models.Identity)
	if err := c.invoke(ctx, MethodMe, &MeRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthClient) Ping(ctx context.Context, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.invoke(ctx, MethodPing, &PingRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
