package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// protectedMethods need a bearer session in the authorization metadata.
var protectedMethods = map[string]bool{
	fullMethod("Logout"): true,
}

// gatewayMethods act on behalf of an identity provider and are reserved for
// the OAuth gateway.
var gatewayMethods = map[string]bool{
	fullMethod("FederatedLogin"): true,
}

// limitedMethods accept credentials and are throttled per caller.
var limitedMethods = map[string]bool{
	fullMethod("Login"):        true,
	fullMethod("RefreshToken"): true,
}

type gatewayKey struct{}

// fromGateway reports whether the call carried the gateway secret.
func fromGateway(ctx context.Context) bool {
	ok, _ := ctx.Value(gatewayKey{}).(bool)
	return ok
}

func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// gatewayInterceptor checks the gateway secret when one is presented and
// requires it on gatewayMethods.
func (s *GRPCServer) gatewayInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	presented := firstMetadata(ctx, common.GatewaySecretMetadataKey)
	if presented == "" {
		if gatewayMethods[info.FullMethod] {
			return nil, status.Error(codes.Unauthenticated, "gateway credentials required")
		}
		return handler(ctx, req)
	}

	if s.opts.GatewaySecret == "" || !cryptox.ConstantTimeEqual(presented, s.opts.GatewaySecret) {
		s.logger.Warn(ctx, "rejected gateway credentials", "method", info.FullMethod, "ip", peerIP(ctx))
		return nil, status.Error(codes.Unauthenticated, "invalid gateway credentials")
	}

	return handler(context.WithValue(ctx, gatewayKey{}, true), req)
}

func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.opts.Limiter == nil || !limitedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	res, err := s.opts.Limiter.Allow(ctx, "grpc:"+clientInfo(ctx).IPAddress)
	if err == nil && !res.Allowed {
		return nil, status.Errorf(codes.ResourceExhausted, "too many requests, retry in %ds", int(res.Reset.Seconds()))
	}

	return handler(ctx, req)
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	p, err := s.authn.AuthenticateHeader(ctx, firstMetadata(ctx, common.AuthorizationHeaderName))
	if err != nil {
		return nil, toStatus(err)
	}

	return handler(authn.WithPrincipal(ctx, p), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "grpc request", "method", info.FullMethod, "status", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrValidation, codes.InvalidArgument},
	{common.ErrTwoFactorNotPending, codes.FailedPrecondition},
	{common.ErrTwoFactorAlreadyEnabled, codes.FailedPrecondition},
	{common.ErrAuthenticationRequired, codes.Unauthenticated},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrInvalidTwoFactorCode, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrTokenInvalid, codes.Unauthenticated},
	{common.ErrTokenTypeMismatch, codes.Unauthenticated},
	{common.ErrSessionRevoked, codes.Unauthenticated},
	{common.ErrAccountLocked, codes.PermissionDenied},
	{common.ErrAccountInactive, codes.PermissionDenied},
	{common.ErrorUnauthorized, codes.PermissionDenied},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrEmailTaken, codes.AlreadyExists},
	{common.ErrorAlreadyExists, codes.AlreadyExists},
}

// toStatus maps a service error to a gRPC status. Unknown errors become a
// bare Internal.
func toStatus(err error) error {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.err == common.ErrValidation {
				msg = err.Error()
			}
			return status.Error(e.code, msg)
		}
	}
	return status.Error(codes.Internal, common.ErrorInternal.Error())
}
