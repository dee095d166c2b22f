package config

import (
	"net"
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// CSRFKey signs form tokens, at least 32 bytes. A random key is used when
	// empty, which invalidates open forms on restart.
	CSRFKey string `env:"HTTP_CSRF_KEY"`
}

func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// APIClientConfig configures the client dashboard views use to read the
// JSON API.
type APIClientConfig struct {
	// BaseURL defaults to the local server's /api mount.
	BaseURL string        `env:"BASE_URL"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`

	// derived is set when BaseURL was filled in from the HTTP address.
	derived bool
}

func (a *APIClientConfig) Sanitize(h HTTPConfig) {
	if a.Timeout <= 0 {
		a.Timeout = 5 * time.Second
	}
	if a.Timeout > time.Minute {
		a.Timeout = time.Minute
	}
	if strings.TrimSpace(a.BaseURL) == "" || a.derived {
		a.BaseURL = localBaseURL(h.Addr) + "/api"
		a.derived = true
	}
	a.BaseURL = strings.TrimRight(a.BaseURL, "/")
}

func localBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://127.0.0.1:8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
