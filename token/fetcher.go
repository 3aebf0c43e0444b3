package token

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-flight-proxy/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Fetcher obtains a fresh token without user involvement.
type Fetcher interface {
	Fetch(ctx context.Context) (*oauth2.Token, error)
}

// CodeExchanger performs the authorization code grant and its refreshes.
type CodeExchanger interface {
	Exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	AuthCodeURL(state, verifier, redirectURI string) string
}

// ClientCredentialsFetcher posts the client credentials grant to the fixed token URL.
type ClientCredentialsFetcher struct {
	cfg        *clientcredentials.Config
	httpClient *http.Client
}

var _ Fetcher = (*ClientCredentialsFetcher)(nil)

func NewClientCredentialsFetcher(c config.OAuthConfig, httpClient *http.Client) *ClientCredentialsFetcher {
	params := url.Values{}
	if c.GetAudience() != "" {
		params.Set("audience", c.GetAudience())
	}
	return &ClientCredentialsFetcher{
		cfg: &clientcredentials.Config{
			ClientID:       c.GetClientID(),
			ClientSecret:   c.GetClientSecret(),
			TokenURL:       c.GetTokenURL(),
			Scopes:         c.GetScopes(),
			EndpointParams: params,
			AuthStyle:      c.GetAuthStyle(),
		},
		httpClient: httpClient,
	}
}

func (f *ClientCredentialsFetcher) Fetch(ctx context.Context) (*oauth2.Token, error) {
	tok, err := f.cfg.Token(withHTTPClient(ctx, f.httpClient))
	if err != nil {
		return nil, fmt.Errorf("[ClientCredentialsFetcher Fetch] %w", err)
	}
	return tok, nil
}

// AuthCodeClient wraps oauth2.Config for the PKCE authorization code grant.
// The client secret is attached here and never reaches the browser.
type AuthCodeClient struct {
	cfg        *oauth2.Config
	audience   string
	httpClient *http.Client
}

var _ CodeExchanger = (*AuthCodeClient)(nil)

func NewAuthCodeClient(c config.OAuthConfig, httpClient *http.Client) *AuthCodeClient {
	return &AuthCodeClient{
		cfg: &oauth2.Config{
			ClientID:     c.GetClientID(),
			ClientSecret: c.GetClientSecret(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   c.GetAuthURL(),
				TokenURL:  c.GetTokenURL(),
				AuthStyle: c.GetAuthStyle(),
			},
			RedirectURL: c.GetRedirectURI(),
			Scopes:      c.GetScopes(),
		},
		audience:   c.GetAudience(),
		httpClient: httpClient,
	}
}

func (a *AuthCodeClient) Exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error) {
	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(verifier)}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	tok, err := a.cfg.Exchange(withHTTPClient(ctx, a.httpClient), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("[AuthCodeClient Exchange] %w", err)
	}
	return tok, nil
}

func (a *AuthCodeClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	// An empty access token forces the token source to use the refresh token.
	src := a.cfg.TokenSource(withHTTPClient(ctx, a.httpClient), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("[AuthCodeClient Refresh] %w", err)
	}
	return tok, nil
}

func (a *AuthCodeClient) AuthCodeURL(state, verifier, redirectURI string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	if a.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", a.audience))
	}
	return a.cfg.AuthCodeURL(state, opts...)
}

func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
