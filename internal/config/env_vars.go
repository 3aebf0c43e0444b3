package config

import (
	"strings"
)

type EnvVars struct {
	Port          string `env:"PORT" envDefault:"8080"`
	AppName       string `env:"APP_NAME" envDefault:"Flight Ops Proxy"`
	Environment   string `env:"ENV" envDefault:"DEV"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	VerboseErrors bool   `env:"VERBOSE_ERRORS" envDefault:"false"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Environment == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Environment)
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == "DEV"
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetVerboseErrors reports whether generic 500/502 bodies carry the wrapped error text.
func (e EnvVars) GetVerboseErrors() bool {
	return e.VerboseErrors
}
