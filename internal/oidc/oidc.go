// Package oidc accepts ID tokens from an external SSO provider (Keycloak) as
// an alternative credential to locally issued tokens.
package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/pkg/middleware"
)

// Verifier wraps the OIDC provider and token verifier
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer and verifies tokens for clientID.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// IssuerURL returns the realm issuer for a Keycloak configuration, or "" when
// SSO is not configured.
func IssuerURL(cfg config.KeycloakConfig) string {
	if cfg.URL == "" || cfg.Realm == "" || cfg.ClientID == "" {
		return ""
	}
	return strings.TrimRight(cfg.URL, "/") + "/realms/" + cfg.Realm
}

// Verify satisfies middleware.Verifier.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
