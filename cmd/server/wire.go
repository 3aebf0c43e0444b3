package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-flight-proxy/internal/config"
	"github.com/jrsteele09/go-flight-proxy/metrics"
	"github.com/jrsteele09/go-flight-proxy/oauthmodel"
	"github.com/jrsteele09/go-flight-proxy/server"
	"github.com/jrsteele09/go-flight-proxy/server/authflowrepo"
	"github.com/jrsteele09/go-flight-proxy/token"
	"github.com/jrsteele09/go-flight-proxy/upstream"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func loadConfig() (config.Config, error) {
	opts := env.Options{}
	if portFlag != "" {
		vars := env.ToMap(os.Environ())
		vars["PORT"] = portFlag
		opts.Environment = vars
	}
	c, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("[loadConfig] %w", err)
	}
	return c, nil
}

func setupLogger(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

type dependencies struct {
	config    config.Config
	metrics   *metrics.Metrics
	tokens    *token.Manager
	forwarder *upstream.Forwarder
}

func newDependencies(ctx context.Context, c config.Config) (*dependencies, error) {
	m := metrics.New()
	httpClient := &http.Client{
		Transport: m.RoundTripper(http.DefaultTransport),
		Timeout:   c.GetUpstreamTimeout(),
	}

	opts := []token.ManagerOption{
		token.WithExpirySkew(c.GetTokenExpirySkew()),
		token.WithDefaultTTL(c.GetDefaultTokenTTL()),
		token.WithObserver(m),
	}
	switch c.GetGrantType() {
	case oauthmodel.AuthorizationCodeGrant:
		opts = append(opts, token.WithCodeExchanger(token.NewAuthCodeClient(c, httpClient)))
		if c.GetIssuer() != "" {
			verifier, err := token.NewOIDCVerifier(ctx, c.GetIssuer(), c.GetClientID(), httpClient)
			if err != nil {
				return nil, fmt.Errorf("[newDependencies] %w", err)
			}
			opts = append(opts, token.WithIDTokenVerifier(verifier))
		}
	default:
		opts = append(opts, token.WithFetcher(token.NewClientCredentialsFetcher(c, httpClient)))
	}

	tokens, err := token.New(c.GetGrantType(), opts...)
	if err != nil {
		return nil, fmt.Errorf("[newDependencies] %w", err)
	}

	log.Info().
		Str("grant", c.GetGrantType().String()).
		Str("api", c.GetAPIBaseURL()).
		Str("env", c.GetEnv()).
		Msg("proxy configured")

	return &dependencies{
		config:    c,
		metrics:   m,
		tokens:    tokens,
		forwarder: upstream.NewForwarder(c.GetAPIBaseURL(), httpClient, tokens),
	}, nil
}

func (d *dependencies) newServer() (*server.Server, error) {
	return server.New(d.config, d.tokens, d.forwarder, authflowrepo.NewInMemoryRepo(d.config.GetPKCEStateTTL()), d.metrics)
}
