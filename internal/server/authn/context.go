package authn

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	apiKeyKey
)

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal attached by WithPrincipal, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func WithAPIKey(ctx context.Context, id *services.APIKeyIdentity) context.Context {
	return context.WithValue(ctx, apiKeyKey, id)
}

func APIKeyFrom(ctx context.Context) (*services.APIKeyIdentity, bool) {
	id, ok := ctx.Value(apiKeyKey).(*services.APIKeyIdentity)
	return id, ok && id != nil
}
