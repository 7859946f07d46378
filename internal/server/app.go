// Package server wires configuration, storage, services and the HTTP and
// gRPC transports into a runnable application.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repos  repomanager.RepositoryManager
	redis  *redis.Client
	http   *httpapi.HTTPServer
	grpc   *gs.GRPCServer
}

// NewApp opens the store, applies migrations and builds both transports.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		repos.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	hasher, err := cryptox.NewPasswordHasher(cryptox.PasswordAlgorithm(c.PasswordAlgorithm), c.BcryptCost)
	if err != nil {
		repos.Close()
		return nil, err
	}

	tokens := auth.NewTokenManager(auth.Options{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
		Issuer:        c.TokenIssuer,
		Audience:      c.TokenAudience,
	})

	var avatars services.AvatarStorage
	if c.S3Bucket != "" {
		avatars = storage.NewS3AvatarStore(storage.Options{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	}

	tf := services.NewTwoFactorService(repos, hasher, c.EncryptionKey, c.TOTPIssuer, logger)
	as := services.NewAuthService(repos, hasher, tokens, tf, c.LockoutThreshold, c.SessionValidityDuration, logger)
	ps := services.NewProfileService(repos, hasher, c.EncryptionKey, avatars, logger)
	ks := services.NewAPIKeyService(repos, logger)
	an := authn.NewAuthenticator(repos, tokens, logger)

	app := &App{config: c, logger: logger, repos: repos}

	proxies, err := c.TrustedProxyPrefixes()
	if err != nil {
		repos.Close()
		return nil, err
	}

	var limiter *ratelimit.Limiter
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		limiter = ratelimit.New(app.redis, c.RateLimitRequests, c.RateLimitWindow, logger)
	} else {
		logger.Warn(ctx, "redis address not set, rate limiting disabled")
	}
	if c.GatewaySecret == "" {
		logger.Warn(ctx, "gateway secret not set, FederatedLogin disabled")
	}
	if c.DevMode {
		logger.Warn(ctx, "development mode enabled")
	}

	router := httpapi.NewRouter(httpapi.NewHandlers(as, tf, ps, ks, logger), an, httpapi.RouterOptions{
		CORSOrigins:    c.CORSOrigins,
		Limiter:        limiter,
		TrustedProxies: proxies,
	}, logger)
	app.http = httpapi.NewHTTPServer(c.EndpointAddrHTTP, router, logger)
	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, as, ks, an, gs.ServerOptions{
		GatewaySecret: c.GatewaySecret,
		Limiter:       limiter,
	})

	return app, nil
}

// Run serves HTTP and gRPC until a signal arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(ctx) })
	g.Go(func() error { return app.grpc.Run(ctx) })

	err := g.Wait()
	app.close(ctx)
	return err
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "close redis", "error", err)
		}
	}
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "close database", "error", err)
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}
