package config_test

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-flight-proxy/internal/config"
	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func baseEnv() map[string]string {
	return map[string]string{
		"OAUTH_CLIENT_ID":     "proxy-client",
		"OAUTH_CLIENT_SECRET": "proxy-secret",
		"OAUTH_TOKEN_URL":     "https://auth.flightops.test/oauth/token",
		"API_BASE_URL":        "https://api.flightops.test/v1/",
	}
}

func load(t *testing.T, vars map[string]string) (config.Config, error) {
	t.Helper()
	return config.Load(env.Options{Environment: vars})
}

func TestLoad_Defaults(t *testing.T) {
	c, err := load(t, baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "Flight Ops Proxy", c.GetAppName())
	require.Equal(t, "DEV", c.GetEnv())
	require.True(t, c.IsDev())
	require.Equal(t, oauthmodel.ClientCredentialsGrant, c.GetGrantType())
	require.Equal(t, "https://api.flightops.test/v1", c.GetAPIBaseURL())
	require.Equal(t, 30*time.Second, c.GetTokenExpirySkew())
	require.Equal(t, time.Hour, c.GetDefaultTokenTTL())
	require.Equal(t, 10*time.Minute, c.GetPKCEStateTTL())
	require.Equal(t, 15*time.Second, c.GetUpstreamTimeout())
	require.Equal(t, oauth2.AuthStyleAutoDetect, c.GetAuthStyle())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("http://localhost:3000"))
	require.Empty(t, c.GetScopes())
	require.False(t, c.GetVerboseErrors())
}

func TestLoad_Overrides(t *testing.T) {
	vars := baseEnv()
	vars["PORT"] = ":9090"
	vars["ENV"] = "prod"
	vars["OAUTH_GRANT_TYPE"] = "authorization_code"
	vars["OAUTH_SCOPES"] = "flights.read,,flights.write"
	vars["OAUTH_AUTH_STYLE"] = "header"
	vars["ALLOWED_ORIGINS"] = "https://ops.example.com/, https://crew.example.com"
	vars["TOKEN_EXPIRY_SKEW"] = "1m"
	vars["VERBOSE_ERRORS"] = "true"

	c, err := load(t, vars)
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.False(t, c.IsDev())
	require.Equal(t, oauthmodel.AuthorizationCodeGrant, c.GetGrantType())
	require.Equal(t, []string{"flights.read", "flights.write"}, c.GetScopes())
	require.Equal(t, oauth2.AuthStyleInHeader, c.GetAuthStyle())
	require.Equal(t, time.Minute, c.GetTokenExpirySkew())
	require.True(t, c.GetVerboseErrors())
	require.Equal(t, []string{"https://crew.example.com", "https://ops.example.com"}, c.GetAllowedOrigins().List())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing required", func(t *testing.T) {
		vars := baseEnv()
		delete(vars, "OAUTH_CLIENT_SECRET")
		_, err := load(t, vars)
		require.Error(t, err)
		require.Contains(t, err.Error(), "OAUTH_CLIENT_SECRET")
	})

	t.Run("unknown grant", func(t *testing.T) {
		vars := baseEnv()
		vars["OAUTH_GRANT_TYPE"] = "password"
		_, err := load(t, vars)
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported OAUTH_GRANT_TYPE")
	})

	t.Run("relative api url", func(t *testing.T) {
		vars := baseEnv()
		vars["API_BASE_URL"] = "/flights"
		_, err := load(t, vars)
		require.Error(t, err)
		require.Contains(t, err.Error(), "API_BASE_URL")
	})

	t.Run("bad auth style", func(t *testing.T) {
		vars := baseEnv()
		vars["OAUTH_AUTH_STYLE"] = "basic"
		_, err := load(t, vars)
		require.Error(t, err)
		require.Contains(t, err.Error(), "OAUTH_AUTH_STYLE")
	})
}
