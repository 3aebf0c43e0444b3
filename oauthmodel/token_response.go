package oauthmodel

import "time"

// TokenResponse is the upstream token endpoint response as defined in RFC 6749.
// The proxy relays it to the frontend after an authorization code exchange.
type TokenResponse struct {
	// AccessToken is the bearer token for the flight-operations API.
	// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..."
	AccessToken string `json:"access_token"`

	// TokenType is normally "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 3600
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is only returned by the authorization code grant.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is present when the "openid" scope was requested.
	IDToken string `json:"id_token,omitempty"`

	// Scope is the space separated scope actually granted.
	Scope string `json:"scope,omitempty"`

	// IDClaims holds the verified identity when the proxy is configured with an issuer.
	// Not part of the upstream response; added by the proxy.
	IDClaims *IDClaims `json:"id_claims,omitempty"`

	// ReturnURL is the return_url given to GET /api/auth/login, echoed after a
	// state based exchange so the frontend can resume where the login started.
	// Not part of the upstream response; added by the proxy.
	ReturnURL string `json:"return_url,omitempty"`
}

// IDClaims is the subset of ID token claims exposed to the frontend.
type IDClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// TokenStatus describes the cached token without revealing it.
// Returned by the debug endpoint and by the client credentials token endpoint.
type TokenStatus struct {
	GrantType        GrantType `json:"grant_type"`
	Cached           bool      `json:"cached"`
	Valid            bool      `json:"valid"`
	TokenType        string    `json:"token_type,omitempty"`
	ExpiresAt        time.Time `json:"expires_at,omitzero"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	HasRefreshToken  bool      `json:"has_refresh_token"`
}

// LoginResponse is returned when the proxy builds the authorize URL itself.
type LoginResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}
