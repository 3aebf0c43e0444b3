package oauthmodel

import "regexp"

// verifierPattern matches RFC 7636 section 4.1 code verifiers.
var verifierPattern = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

// CodeExchangeRequest is the JSON body the frontend posts to the token-exchange
// endpoint. The proxy adds the client credentials before calling upstream.
type CodeExchangeRequest struct {
	// Code is the authorization code the frontend received on its redirect.
	// Required: Yes
	// Example: "SplxlOBeZQQYbYS6WxSbIA"
	// Usage: Exchanged once for tokens, then becomes invalid upstream
	Code string `json:"code"`

	// CodeVerifier is the PKCE verifier the frontend generated before redirecting.
	// Required: Unless State identifies a verifier generated by this proxy
	// Example: "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	// Validation: Upstream compares SHA256(code_verifier) with the stored code_challenge
	CodeVerifier string `json:"code_verifier,omitempty"`

	// RedirectURI must equal the redirect_uri used in the authorize request.
	// Required: Unless OAUTH_REDIRECT_URI is configured
	// Example: "http://localhost:3000/callback"
	RedirectURI string `json:"redirect_uri,omitempty"`

	// State is the value returned by GET /api/auth/login when the proxy built the
	// authorize URL itself. It is used to look up the server-side verifier.
	// Required: No
	State string `json:"state,omitempty"`
}

// Validate checks the fields that can be checked without server-side state.
func (r CodeExchangeRequest) Validate() error {
	if r.Code == "" {
		return ErrMissingCode
	}
	if r.CodeVerifier == "" && r.State == "" {
		return ErrMissingVerifier
	}
	if r.CodeVerifier != "" && !verifierPattern.MatchString(r.CodeVerifier) {
		return ErrInvalidCodeVerifier
	}
	return nil
}
