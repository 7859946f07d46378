package grpc

import (
	"context"
	"net"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc/peer"
)

// peerIP is the host part of the connection's remote address.
func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// clientInfo uses the address forwarded in x-forwarded-for only when the
// caller authenticated as the gateway; otherwise the peer address.
func clientInfo(ctx context.Context) services.ClientInfo {
	ci := services.ClientInfo{UserAgent: firstMetadata(ctx, "user-agent")}
	if fromGateway(ctx) {
		first, _, _ := strings.Cut(firstMetadata(ctx, "x-forwarded-for"), ",")
		ci.IPAddress = strings.TrimSpace(first)
	}
	if ci.IPAddress == "" {
		ci.IPAddress = peerIP(ctx)
	}
	return ci
}

func loginResponse(res *services.LoginResult) *LoginResponse {
	if res.Outcome == services.LoginRequiresTwoFactor {
		return &LoginResponse{RequiresTwoFactor: true, UserID: res.UserID}
	}
	return &LoginResponse{
		UserID:       res.UserID,
		SessionID:    res.SessionID,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.User,
	}
}

func (s *GRPCServer) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	res, err := s.auth.Login(ctx, services.LoginInput{Email: req.Email, Password: req.Password, TwoFactorCode: req.TwoFactorCode}, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return loginResponse(res), nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *RefreshTokenRequest) (*TokenPairResponse, error) {
	pair, err := s.auth.RefreshToken(ctx, req.RefreshToken, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *LogoutRequest) (*LogoutResponse, error) {
	p, ok := authn.PrincipalFrom(ctx)
	if !ok {
		return nil, toStatus(common.ErrAuthenticationRequired)
	}
	if err := s.auth.Logout(ctx, p.UserID, p.Token, clientInfo(ctx)); err != nil {
		return nil, toStatus(err)
	}
	return &LogoutResponse{Status: "OK"}, nil
}

func (s *GRPCServer) ValidateSession(ctx context.Context, req *ValidateSessionRequest) (*ValidateSessionResponse, error) {
	p, err := s.authn.Authenticate(ctx, req.Token)
	if err != nil {
		st := toStatus(err)
		if isInternal(st) {
			return nil, st
		}
		return &ValidateSessionResponse{Error: err.Error()}, nil
	}
	return &ValidateSessionResponse{Valid: true, UserID: p.UserID, Email: p.Email, SessionID: p.SessionID}, nil
}

func (s *GRPCServer) ValidateAPIKey(ctx context.Context, req *ValidateAPIKeyRequest) (*ValidateAPIKeyResponse, error) {
	id, err := s.keys.Validate(ctx, req.APIKey)
	if err != nil {
		st := toStatus(err)
		if isInternal(st) {
			return nil, st
		}
		return &ValidateAPIKeyResponse{Error: err.Error()}, nil
	}
	if req.RequiredScope != "" && !id.HasScope(req.RequiredScope) {
		return &ValidateAPIKeyResponse{Error: "api key lacks scope " + req.RequiredScope}, nil
	}
	return &ValidateAPIKeyResponse{Valid: true, UserID: id.UserID, Email: id.Email, KeyID: id.KeyID, Scopes: id.Scopes}, nil
}

func (s *GRPCServer) FederatedLogin(ctx context.Context, req *FederatedLoginRequest) (*LoginResponse, error) {
	res, err := s.auth.LoginWithProvider(ctx, services.FederatedIdentity{
		Provider:              req.Provider,
		ProviderID:            req.ProviderID,
		Email:                 req.Email,
		DisplayName:           req.DisplayName,
		AvatarURL:             req.AvatarURL,
		ProviderVerifiedEmail: req.ProviderVerifiedEmail,
	}, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return loginResponse(res), nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *PingRequest) (*PingResponse, error) {
	return &PingResponse{Status: "OK"}, nil
}
