package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	UpstreamConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetVerboseErrors() bool
	IsDev() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Upstream
}

// New reads the configuration from the process environment.
func New() (Config, error) {
	return Load(env.Options{})
}

// Load parses the configuration using the given env options. Tests pass an
// explicit Environment map so the process environment is left alone.
func Load(opts env.Options) (Config, error) {
	var c mainConfig
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, fmt.Errorf("[config Load] %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("[config Load] %w", err)
	}
	return c, nil
}

func (c mainConfig) validate() error {
	switch c.GetGrantType() {
	case oauthmodel.AuthorizationCodeGrant, oauthmodel.ClientCredentialsGrant:
	default:
		return fmt.Errorf("unsupported OAUTH_GRANT_TYPE %q", c.GrantType)
	}
	urls := []struct {
		name     string
		value    string
		optional bool
	}{
		{name: "OAUTH_TOKEN_URL", value: c.TokenURL},
		{name: "API_BASE_URL", value: c.APIBaseURL},
		{name: "OAUTH_AUTH_URL", value: c.AuthURL, optional: true},
	}
	for _, u := range urls {
		if u.optional && u.value == "" {
			continue
		}
		if !isAbsoluteURL(u.value) {
			return fmt.Errorf("%s must be an absolute URL, got %q", u.name, u.value)
		}
	}
	switch c.AuthStyle {
	case "auto", "header", "params":
	default:
		return fmt.Errorf("OAUTH_AUTH_STYLE must be auto, header or params, got %q", c.AuthStyle)
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
