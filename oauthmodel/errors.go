package oauthmodel

import "errors"

var (
	ErrMissingCode         = errors.New("code is required")
	ErrInvalidCodeVerifier = errors.New("code_verifier must be 43-128 unreserved characters")
	ErrMissingRedirectURI  = errors.New("redirect_uri is required")
	ErrMissingVerifier     = errors.New("code_verifier or state is required")
)
