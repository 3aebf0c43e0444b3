package authflowrepo

import (
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var (
	ErrEmptyState    = errors.New("state cannot be empty")
	ErrStateNotFound = errors.New("state not found")
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// Entries expire after the configured TTL.
type InMemoryRepo struct {
	mu     sync.Mutex
	states *gocache.Cache
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		states: gocache.New(ttl, 2*ttl),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return ErrEmptyState
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	// Store a copy to prevent external modifications
	copied := *authState
	r.states.SetDefault(state, &copied)
	return nil
}

// Get retrieves an auth flow state by state parameter
func (r *InMemoryRepo) Get(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ErrEmptyState
	}
	v, ok := r.states.Get(state)
	if !ok {
		return nil, ErrStateNotFound
	}
	copied := *v.(*AuthFlowState)
	return &copied, nil
}

func (r *InMemoryRepo) Take(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ErrEmptyState
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	authState, err := r.Get(state)
	if err != nil {
		return nil, err
	}
	r.states.Delete(state)
	return authState, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return ErrEmptyState
	}
	r.states.Delete(state)
	return nil
}

// Len reports the number of unexpired states.
func (r *InMemoryRepo) Len() int {
	return r.states.ItemCount()
}
