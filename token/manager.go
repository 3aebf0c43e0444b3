package token

import (
	"context"
	"fmt"
	"net/http"
	"time"

	proxyerrors "github.com/jrsteele09/go-flight-proxy/internal/errors"
	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const defaultTokenType = "Bearer"

// Observer receives cache and acquisition events, typically for metrics.
type Observer interface {
	CacheLookup(hit bool)
	TokenAcquired(grant oauthmodel.GrantType, err error)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(bool)                         {}
func (nopObserver) TokenAcquired(oauthmodel.GrantType, error) {}

// Manager owns the process-wide bearer token. It serves the cached token
// before expiry and acquires a new one after.
type Manager struct {
	grantType  oauthmodel.GrantType
	cache      *Cache
	fetcher    Fetcher
	exchanger  CodeExchanger
	idVerifier IDTokenVerifier
	observer   Observer
	group      singleflight.Group
	skew       time.Duration
	defaultTTL time.Duration
	nowFunc    func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithExpirySkew(skew time.Duration) ManagerOption {
	return func(m *Manager) {
		m.skew = skew
	}
}

func WithDefaultTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.defaultTTL = ttl
	}
}

func WithFetcher(f Fetcher) ManagerOption {
	return func(m *Manager) {
		m.fetcher = f
	}
}

func WithCodeExchanger(e CodeExchanger) ManagerOption {
	return func(m *Manager) {
		m.exchanger = e
	}
}

func WithIDTokenVerifier(v IDTokenVerifier) ManagerOption {
	return func(m *Manager) {
		m.idVerifier = v
	}
}

func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = o
	}
}

func New(grantType oauthmodel.GrantType, options ...ManagerOption) (*Manager, error) {
	m := &Manager{
		grantType: grantType,
		observer:  nopObserver{},
	}
	for _, opt := range options {
		opt(m)
	}

	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.defaultTTL <= 0 {
		m.defaultTTL = time.Hour
	}

	switch grantType {
	case oauthmodel.ClientCredentialsGrant:
		if m.fetcher == nil {
			return nil, fmt.Errorf("[token New] %s requires a fetcher: %w", grantType, proxyerrors.ErrInvalidConfig)
		}
	case oauthmodel.AuthorizationCodeGrant:
		if m.exchanger == nil {
			return nil, fmt.Errorf("[token New] %s requires a code exchanger: %w", grantType, proxyerrors.ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("[token New] %q: %w", grantType, proxyerrors.ErrUnsupportedGrant)
	}

	m.cache = NewCache(m.skew, m.nowFunc)
	return m, nil
}

func (m *Manager) GrantType() oauthmodel.GrantType {
	return m.grantType
}

// Token returns a usable bearer token, acquiring one when the cache is empty
// or expired. Concurrent callers share a single upstream request.
func (m *Manager) Token(ctx context.Context) (Entry, error) {
	if e, ok := m.cache.Get(); ok {
		m.observer.CacheLookup(true)
		return e, nil
	}
	m.observer.CacheLookup(false)

	// The shared call must not be cancelled by whichever request started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := m.group.Do("token", func() (any, error) {
		if e, ok := m.cache.Get(); ok {
			return e, nil
		}
		return m.acquire(shared)
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (m *Manager) acquire(ctx context.Context) (Entry, error) {
	switch m.grantType {
	case oauthmodel.ClientCredentialsGrant:
		tok, err := m.fetcher.Fetch(ctx)
		m.observer.TokenAcquired(oauthmodel.ClientCredentialsGrant, err)
		if err != nil {
			log.Error().Err(err).Msg("client credentials token request failed")
			return Entry{}, fmt.Errorf("[Manager acquire] %w: %w", proxyerrors.ErrTokenUnavailable, err)
		}
		return m.store(tok), nil

	default:
		prev, ok := m.cache.Peek()
		if !ok || prev.RefreshToken == "" {
			return Entry{}, fmt.Errorf("[Manager acquire] no usable token: %w", proxyerrors.ErrNotAuthenticated)
		}
		tok, err := m.exchanger.Refresh(ctx, prev.RefreshToken)
		m.observer.TokenAcquired(oauthmodel.RefreshTokenGrant, err)
		if err != nil {
			return Entry{}, m.refreshFailed(err)
		}
		return m.store(tok), nil
	}
}

// refreshFailed drops a refresh token the upstream rejected so the frontend
// is asked to log in again. Server side failures keep it for the next attempt.
func (m *Manager) refreshFailed(err error) error {
	log.Warn().Err(err).Msg("token refresh failed")
	if upstreamErr, ok := proxyerrors.UpstreamErrorFrom(err); ok && upstreamErr.StatusCode < http.StatusInternalServerError {
		m.cache.Clear()
		return fmt.Errorf("[Manager refresh] refresh rejected (%d): %w", upstreamErr.StatusCode, proxyerrors.ErrNotAuthenticated)
	}
	return fmt.Errorf("[Manager refresh] %w: %w", proxyerrors.ErrTokenUnavailable, err)
}

func (m *Manager) store(tok *oauth2.Token) Entry {
	now := m.nowFunc()
	e := Entry{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiryFor(tok, now, m.defaultTTL),
	}
	if e.TokenType == "" {
		e.TokenType = defaultTokenType
	}
	if e.RefreshToken == "" {
		if prev, ok := m.cache.Peek(); ok {
			e.RefreshToken = prev.RefreshToken
		}
	}
	m.cache.Put(e)
	log.Debug().
		Str("grant", m.grantType.String()).
		Time("expires_at", e.ExpiresAt).
		Bool("refreshable", e.RefreshToken != "").
		Msg("token cached")
	return e
}

// Exchange swaps a frontend authorization code for tokens and caches them.
func (m *Manager) Exchange(ctx context.Context, code, verifier, redirectURI string) (*oauthmodel.TokenResponse, error) {
	if m.grantType != oauthmodel.AuthorizationCodeGrant {
		return nil, fmt.Errorf("[Manager Exchange] %s mode: %w", m.grantType, proxyerrors.ErrUnsupportedGrant)
	}

	tok, err := m.exchanger.Exchange(ctx, code, verifier, redirectURI)
	m.observer.TokenAcquired(oauthmodel.AuthorizationCodeGrant, err)
	if err != nil {
		return nil, fmt.Errorf("[Manager Exchange] %w: %w", proxyerrors.ErrTokenUnavailable, err)
	}

	resp := &oauthmodel.TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		IDToken:      extraString(tok, "id_token"),
		Scope:        extraString(tok, "scope"),
	}

	if m.idVerifier != nil && resp.IDToken != "" {
		claims, err := m.idVerifier.Verify(ctx, resp.IDToken)
		if err != nil {
			return nil, fmt.Errorf("[Manager Exchange] %w: %w", proxyerrors.ErrNotAuthenticated, err)
		}
		resp.IDClaims = claims
	}

	e := m.store(tok)
	resp.ExpiresIn = int64(e.ExpiresAt.Sub(m.nowFunc()).Seconds())
	return resp, nil
}

// AuthCodeURL builds the upstream authorize URL with an S256 challenge.
func (m *Manager) AuthCodeURL(state, verifier, redirectURI string) (string, error) {
	if m.grantType != oauthmodel.AuthorizationCodeGrant {
		return "", fmt.Errorf("[Manager AuthCodeURL] %s mode: %w", m.grantType, proxyerrors.ErrUnsupportedGrant)
	}
	return m.exchanger.AuthCodeURL(state, verifier, redirectURI), nil
}

// Invalidate forgets the cached token.
func (m *Manager) Invalidate() {
	m.cache.Clear()
}

// Status describes the cached token without exposing it.
func (m *Manager) Status() oauthmodel.TokenStatus {
	status := oauthmodel.TokenStatus{GrantType: m.grantType}
	e, ok := m.cache.Peek()
	if !ok {
		return status
	}
	_, valid := m.cache.Get()
	status.Cached = true
	status.Valid = valid
	status.TokenType = e.TokenType
	status.ExpiresAt = e.ExpiresAt
	status.ExpiresInSeconds = int64(m.cache.Remaining().Seconds())
	status.HasRefreshToken = e.RefreshToken != ""
	return status
}

func extraString(tok *oauth2.Token, key string) string {
	if s, ok := tok.Extra(key).(string); ok {
		return s
	}
	return ""
}
