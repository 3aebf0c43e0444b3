package token

import (
	"context"
	"crypto"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
)

// IDTokenVerifier checks an id_token returned by the code exchange.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oauthmodel.IDClaims, error)
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

var _ IDTokenVerifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier discovers the issuer's signing keys.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string, httpClient *http.Client) (*OIDCVerifier, error) {
	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[NewOIDCVerifier] failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewStaticOIDCVerifier verifies against fixed public keys instead of discovery.
func NewStaticOIDCVerifier(issuer, clientID string, keys []crypto.PublicKey, now func() time.Time) *OIDCVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID, Now: now}),
	}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*oauthmodel.IDClaims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[OIDCVerifier Verify] ID token verification failed: %w", err)
	}
	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("[OIDCVerifier Verify] failed to extract claims: %w", err)
	}
	return &oauthmodel.IDClaims{
		Subject: claims.Sub,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
