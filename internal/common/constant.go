// Package common contains shared constants and sentinel errors used across
// authkeeper components.
package common

const (
	// AuthorizationHeaderName carries "Bearer <access token>" on HTTP requests
	// and in gRPC metadata.
	AuthorizationHeaderName = "authorization"

	// APIKeyHeaderName carries a raw API key.
	APIKeyHeaderName = "X-API-Key"

	// GatewaySecretMetadataKey carries the shared secret of the OAuth gateway
	// in gRPC metadata.
	GatewaySecretMetadataKey = "x-gateway-secret"

	// BearerPrefix is the scheme prefix expected in the authorization header.
	BearerPrefix = "Bearer "
)
