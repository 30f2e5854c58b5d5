package executor

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/studiowebux/webpagetest/internal/mapping"
)

// DefaultServer is used when no server is configured
const DefaultServer = "https://www.webpagetest.org"

// ServerConfig locates the remote service
type ServerConfig struct {
	Scheme   string
	Host     string // hostname without port
	Port     string // empty for the scheme default
	BasePath string // path prefix without trailing slash
}

// ParseServer parses a server URL. A missing scheme defaults to http and a
// default port for the scheme is dropped.
func ParseServer(raw string) (ServerConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultServer
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid server %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return ServerConfig{}, fmt.Errorf("invalid server %q: missing host", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ServerConfig{}, fmt.Errorf("invalid server %q: unsupported scheme %s", raw, u.Scheme)
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	return ServerConfig{
		Scheme:   scheme,
		Host:     u.Hostname(),
		Port:     port,
		BasePath: strings.TrimRight(u.Path, "/"),
	}, nil
}

// Authority returns host[:port] as used in the Host header
func (s ServerConfig) Authority() string {
	if s.Port == "" {
		return s.Host
	}
	return net.JoinHostPort(s.Host, s.Port)
}

// String returns the server base URL
func (s ServerConfig) String() string {
	return s.Scheme + "://" + s.Authority() + s.BasePath
}

// URL builds the full API URL for path with q appended in order
func (s ServerConfig) URL(path string, q *mapping.Query) string {
	u := s.String() + "/" + strings.TrimLeft(path, "/")
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
