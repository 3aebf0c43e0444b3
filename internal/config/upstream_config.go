package config

import (
	"strings"
	"time"
)

type UpstreamConfig interface {
	GetAPIBaseURL() string
	GetUpstreamTimeout() time.Duration
}

type Upstream struct {
	APIBaseURL string        `env:"API_BASE_URL,required"`
	Timeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
}

var _ UpstreamConfig = Upstream{}

// GetAPIBaseURL returns the flight-operations API root without a trailing slash.
func (u Upstream) GetAPIBaseURL() string {
	return strings.TrimRight(u.APIBaseURL, "/")
}

func (u Upstream) GetUpstreamTimeout() time.Duration {
	if u.Timeout <= 0 {
		return 15 * time.Second
	}
	return u.Timeout
}
