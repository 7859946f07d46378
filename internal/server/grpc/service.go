package grpc

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"google.golang.org/grpc"
)

const ServiceName = "authkeeper.SessionService"

type LoginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"`
}

type LoginResponse struct {
	RequiresTwoFactor bool                `json:"requiresTwoFactor,omitempty"`
	UserID            string              `json:"userId"`
	SessionID         string              `json:"sessionId,omitempty"`
	AccessToken       string              `json:"accessToken,omitempty"`
	RefreshToken      string              `json:"refreshToken,omitempty"`
	User              *models.UserSummary `json:"user,omitempty"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct{}

type LogoutResponse struct {
	Status string `json:"status"`
}

type ValidateSessionRequest struct {
	Token string `json:"token"`
}

// ValidateSessionResponse reports rejections in-band; only transport and
// internal failures are RPC errors.
type ValidateSessionResponse struct {
	Valid     bool   `json:"valid"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ValidateAPIKeyRequest struct {
	APIKey        string `json:"apiKey"`
	RequiredScope string `json:"requiredScope,omitempty"`
}

type ValidateAPIKeyResponse struct {
	Valid  bool     `json:"valid"`
	UserID string   `json:"userId,omitempty"`
	Email  string   `json:"email,omitempty"`
	KeyID  string   `json:"keyId,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// FederatedLoginRequest is sent by the OAuth gateway once the provider
// handshake has succeeded.
type FederatedLoginRequest struct {
	Provider              models.Provider `json:"provider"`
	ProviderID            string          `json:"providerId"`
	Email                 string          `json:"email"`
	DisplayName           string          `json:"displayName,omitempty"`
	AvatarURL             string          `json:"avatarUrl,omitempty"`
	ProviderVerifiedEmail bool            `json:"providerVerifiedEmail,omitempty"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// SessionServiceServer is the server side of authkeeper.SessionService.
type SessionServiceServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*TokenPairResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	ValidateSession(context.Context, *ValidateSessionRequest) (*ValidateSessionResponse, error)
	ValidateAPIKey(context.Context, *ValidateAPIKeyRequest) (*ValidateAPIKeyResponse, error)
	FederatedLogin(context.Context, *FederatedLoginRequest) (*LoginResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(SessionServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Login", SessionServiceServer.Login),
		unary("RefreshToken", SessionServiceServer.RefreshToken),
		unary("Logout", SessionServiceServer.Logout),
		unary("ValidateSession", SessionServiceServer.ValidateSession),
		unary("ValidateAPIKey", SessionServiceServer.ValidateAPIKey),
		unary("FederatedLogin", SessionServiceServer.FederatedLogin),
		unary("Ping", SessionServiceServer.Ping),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authkeeper/session_service",
}

// SessionServiceClient calls authkeeper.SessionService over a connection
// using the JSON codec.
type SessionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSessionServiceClient(cc grpc.ClientConnInterface) *SessionServiceClient {
	return &SessionServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, "Login", in, opts)
}

func (c *SessionServiceClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*TokenPairResponse, error) {
	return invoke[TokenPairResponse](ctx, c.cc, "RefreshToken", in, opts)
}

func (c *SessionServiceClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, "Logout", in, opts)
}

func (c *SessionServiceClient) ValidateSession(ctx context.Context, in *ValidateSessionRequest, opts ...grpc.CallOption) (*ValidateSessionResponse, error) {
	return invoke[ValidateSessionResponse](ctx, c.cc, "ValidateSession", in, opts)
}

func (c *SessionServiceClient) ValidateAPIKey(ctx context.Context, in *ValidateAPIKeyRequest, opts ...grpc.CallOption) (*ValidateAPIKeyResponse, error) {
	return invoke[ValidateAPIKeyResponse](ctx, c.cc, "ValidateAPIKey", in, opts)
}

func (c *SessionServiceClient) FederatedLogin(ctx context.Context, in *FederatedLoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, "FederatedLogin", in, opts)
}

func (c *SessionServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, "Ping", in, opts)
}
