// Package grpc serves authkeeper.SessionService, the internal RPC surface
// used by other backends and by the OAuth gateway.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServerOptions carries the caller-facing guards of the gRPC surface.
type ServerOptions struct {
	// GatewaySecret must accompany FederatedLogin calls. Empty rejects them.
	GatewaySecret string
	// Limiter throttles credential methods per caller; nil disables it.
	Limiter *ratelimit.Limiter
}

type GRPCServer struct {
	address string
	auth    *services.AuthService
	keys    *services.APIKeyService
	authn   *authn.Authenticator
	opts    ServerOptions
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, as *services.AuthService, ks *services.APIKeyService, an *authn.Authenticator, opts ServerOptions) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    as,
		keys:    ks,
		authn:   an,
		opts:    opts,
	}
}

func isInternal(err error) bool {
	return status.Code(err) == codes.Internal
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.loggingInterceptor,
		s.gatewayInterceptor,
		s.rateLimitInterceptor,
		s.accessTokenInterceptor,
	))
	srv.RegisterService(&sessionServiceDesc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
