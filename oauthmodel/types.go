package oauthmodel

// GrantType represents the OAuth 2.0 grant type used at the upstream token endpoint.
// Determines what credentials the proxy sends alongside its client secret.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: PKCE flow where the browser obtains the code and the proxy exchanges it
	// Token request includes: code, client_id, client_secret, redirect_uri, code_verifier
	// Returns: access_token, usually refresh_token and id_token
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant authenticates the proxy itself.
	// Used in: Backend-only access to the flight-operations API (no user context)
	// Token request includes: client_id, client_secret, scope, audience
	// Returns: access_token (no refresh_token or id_token)
	ClientCredentialsGrant GrantType = "client_credentials"

	// RefreshTokenGrant exchanges a cached refresh token for a new access token.
	// Used in: Authorization code mode once the cached access token expires
	// Token request includes: refresh_token, client_id, client_secret
	RefreshTokenGrant GrantType = "refresh_token"
)

func (g GrantType) String() string {
	return string(g)
}

// RequiresFrontendCode reports whether tokens for this grant can only be
// obtained after the frontend hands over an authorization code.
func (g GrantType) RequiresFrontendCode() bool {
	return g == AuthorizationCodeGrant
}
