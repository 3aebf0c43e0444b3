package authflowrepo

import "time"

// AuthFlowState is the PKCE material generated by the proxy for one login.
type AuthFlowState struct {
	CodeVerifier string
	RedirectURI  string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	// Take returns the state and removes it so it can only be used once.
	Take(state string) (*AuthFlowState, error)
	Delete(state string) error
}
