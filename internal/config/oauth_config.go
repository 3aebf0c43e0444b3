package config

import (
	"time"

	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
	"golang.org/x/oauth2"
)

type OAuthConfig interface {
	GetGrantType() oauthmodel.GrantType
	GetClientID() string
	GetClientSecret() string
	GetTokenURL() string
	GetAuthURL() string
	GetRedirectURI() string
	GetScopes() []string
	GetAudience() string
	GetIssuer() string
	GetAuthStyle() oauth2.AuthStyle
	GetTokenExpirySkew() time.Duration
	GetDefaultTokenTTL() time.Duration
	GetPKCEStateTTL() time.Duration
}

// OAuth holds the upstream authorization server settings. The client secret
// never leaves this process.
type OAuth struct {
	GrantType    string        `env:"OAUTH_GRANT_TYPE" envDefault:"client_credentials"`
	ClientID     string        `env:"OAUTH_CLIENT_ID,required"`
	ClientSecret string        `env:"OAUTH_CLIENT_SECRET,required"`
	TokenURL     string        `env:"OAUTH_TOKEN_URL,required"`
	AuthURL      string        `env:"OAUTH_AUTH_URL"`
	RedirectURI  string        `env:"OAUTH_REDIRECT_URI"`
	Scopes       []string      `env:"OAUTH_SCOPES" envSeparator:","`
	Audience     string        `env:"OAUTH_AUDIENCE"`
	Issuer       string        `env:"OAUTH_ISSUER"`
	AuthStyle    string        `env:"OAUTH_AUTH_STYLE" envDefault:"auto"`
	ExpirySkew   time.Duration `env:"TOKEN_EXPIRY_SKEW" envDefault:"30s"`
	DefaultTTL   time.Duration `env:"TOKEN_DEFAULT_TTL" envDefault:"1h"`
	PKCEStateTTL time.Duration `env:"PKCE_STATE_TTL" envDefault:"10m"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetGrantType() oauthmodel.GrantType {
	return oauthmodel.GrantType(o.GrantType)
}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetTokenURL() string {
	return o.TokenURL
}

func (o OAuth) GetAuthURL() string {
	return o.AuthURL
}

func (o OAuth) GetRedirectURI() string {
	return o.RedirectURI
}

func (o OAuth) GetScopes() []string {
	scopes := make([]string, 0, len(o.Scopes))
	for _, s := range o.Scopes {
		if s != "" {
			scopes = append(scopes, s)
		}
	}
	return scopes
}

func (o OAuth) GetAudience() string {
	return o.Audience
}

func (o OAuth) GetIssuer() string {
	return o.Issuer
}

func (o OAuth) GetAuthStyle() oauth2.AuthStyle {
	switch o.AuthStyle {
	case "header":
		return oauth2.AuthStyleInHeader
	case "params":
		return oauth2.AuthStyleInParams
	default:
		return oauth2.AuthStyleAutoDetect
	}
}

func (o OAuth) GetTokenExpirySkew() time.Duration {
	if o.ExpirySkew < 0 {
		return 0
	}
	return o.ExpirySkew
}

func (o OAuth) GetDefaultTokenTTL() time.Duration {
	if o.DefaultTTL <= 0 {
		return time.Hour
	}
	return o.DefaultTTL
}

func (o OAuth) GetPKCEStateTTL() time.Duration {
	if o.PKCEStateTTL <= 0 {
		return 10 * time.Minute
	}
	return o.PKCEStateTTL
}
