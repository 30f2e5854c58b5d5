// Package server exposes the client operations over a local HTTP proxy.
// GET /<command>/<id>?<options> runs the command and answers with JSON,
// JSONP or the raw image bytes.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/studiowebux/webpagetest/internal/logger"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/metrics"
	"github.com/studiowebux/webpagetest/internal/types"
	"github.com/studiowebux/webpagetest/internal/waiter"
	"github.com/studiowebux/webpagetest/internal/wpt"
)

// DefaultPort is used when the listen address has no port
const DefaultPort = 7791

const (
	metricsPath  = "/metrics"
	logPath      = "/_log"
	logStatsPath = "/_log/stats"
	helpLabel    = "help"
)

// Config configures the proxy server
type Config struct {
	Host     string `yaml:"host"` // advertised hostname, os.Hostname when empty
	Port     int    `yaml:"port"`
	KeyFile  string `yaml:"key"`
	CertFile string `yaml:"cert"`
}

// TLS reports whether the server serves https
func (c *Config) TLS() bool {
	return c.KeyFile != "" && c.CertFile != ""
}

// ParseAddr splits a "hostname:port" listen address, applying DefaultPort
func ParseAddr(addr string) (host string, port int, err error) {
	host, port, err = waiter.SplitWaitAddr(addr)
	if err != nil {
		return "", 0, err
	}
	if port == 0 {
		port = DefaultPort
	}
	return host, port, nil
}

// Dispatcher runs client commands
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd *mapping.Command, arg string, in mapping.Input) (*wpt.Response, error)
}

// CallLog keeps the recent remote calls
type CallLog interface {
	Recent(command string, limit int) ([]types.CallLog, error)
	Stats() (map[string]int, error)
	Clear() error
}

// Server is the local proxy HTTP server
type Server struct {
	config     *Config
	client     Dispatcher
	calls      CallLog
	logger     *zap.Logger
	group      singleflight.Group
	httpServer *http.Server
	listener   net.Listener
	info       types.ListenInfo
}

// NewServer creates a proxy server. calls may be nil when no call log is kept.
func NewServer(config *Config, client Dispatcher, calls CallLog, log *zap.Logger) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}

	return &Server{
		config: config,
		client: client,
		calls:  calls,
		logger: logger.OrNop(log),
	}
}

// Handler returns the routing handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())
	mux.HandleFunc(logPath, s.handleLog)
	mux.HandleFunc(logStatsPath, s.handleLogStats)
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	// The host only names the server in its URL; every interface is bound
	addr := ":" + strconv.Itoa(s.config.Port)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	protocol := "http"
	if s.config.TLS() {
		cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to load server certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
		protocol = "https"
	}
	s.listener = ln

	hostname := s.config.Host
	if hostname == "" {
		if hostname, err = os.Hostname(); err != nil {
			hostname = "localhost"
		}
	}
	port := s.config.Port
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	s.info = types.ListenInfo{
		Protocol: protocol,
		Hostname: hostname,
		Port:     port,
		URL:      protocol + "://" + net.JoinHostPort(hostname, strconv.Itoa(port)),
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("proxy server error", zap.Error(err))
		}
	}()

	s.logger.Debug("proxy server listening", zap.String("url", s.info.URL))
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Info describes the bound listener, valid after Start
func (s *Server) Info() types.ListenInfo {
	return s.info
}

// normalizeRequest splits an escaped request path into the lowercased
// command (everything before the last segment) and the unescaped id (the
// last segment). A single segment is a command without id.
func normalizeRequest(escapedPath string) (command, id string) {
	p := strings.Trim(escapedPath, "/")
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return strings.ToLower(p), ""
	}
	command = strings.ToLower(p[:idx])
	id = p[idx+1:]
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return command, id
}

// handleRequest routes /<command>/<id> to the client
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	command, id := normalizeRequest(r.URL.EscapedPath())

	query := r.URL.Query()
	callback := query.Get("callback")
	if callback == "" {
		callback = query.Get("cb")
	}

	in := make(mapping.Input, len(query))
	for key, values := range query {
		switch {
		case key == "callback" || key == "cb" || len(values) == 0:
		case len(values) > 1:
			in[key] = values
		default:
			in[key] = values[0]
		}
	}

	var status int
	cmd, ok := mapping.Lookup(command)
	if !ok || cmd.Method == mapping.MethodListen {
		status = writeJSON(w, http.StatusOK, help(), callback)
		command = helpLabel
	} else {
		res, err := s.fetch(r.Context(), cmd, id, in)
		if err != nil {
			status = writeError(w, err, callback)
			s.logger.Debug("proxy command failed", zap.String("command", cmd.Name), zap.Error(err))
		} else {
			status = writeResponse(w, res, callback)
		}
		command = cmd.Name
	}

	metrics.ObserveProxy(command, status)
	s.logger.Debug("proxy request",
		zap.String("command", command),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))
}

// fetch coalesces identical concurrent reads. Test submissions and
// cancellations always reach the remote service. The shared call outlives
// any single caller; each caller stops waiting when its own ctx is done.
func (s *Server) fetch(ctx context.Context, cmd *mapping.Command, id string, in mapping.Input) (*wpt.Response, error) {
	if cmd.Method == mapping.MethodRunTest || cmd.Method == mapping.MethodCancelTest {
		return s.client.Dispatch(ctx, cmd, id, in)
	}

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey(cmd.Name, id, in), func() (any, error) {
		return s.client.Dispatch(shared, cmd, id, in)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("coalesced proxy request", zap.String("command", cmd.Name), zap.String("id", id))
		}
		return res.Val.(*wpt.Response), nil
	}
}

func flightKey(command, id string, in mapping.Input) string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(command)
	b.WriteByte(0)
	b.WriteString(id)
	for _, k := range keys {
		fmt.Fprintf(&b, "\x00%s=%v", k, in[k])
	}
	return b.String()
}

// handleLog serves the most recent remote calls, optionally per command.
// DELETE empties the log.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	callback := r.URL.Query().Get("callback")
	if s.calls == nil {
		writeJSON(w, http.StatusOK, []types.CallLog{}, callback)
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.calls.Clear(); err != nil {
			writeError(w, err, callback)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.calls.Recent(r.URL.Query().Get("command"), limit)
	if err != nil {
		writeError(w, err, callback)
		return
	}
	if entries == nil {
		entries = []types.CallLog{}
	}
	writeJSON(w, http.StatusOK, entries, callback)
}

// handleLogStats serves the number of logged calls per command
func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	callback := r.URL.Query().Get("callback")
	stats := map[string]int{}
	if s.calls != nil {
		var err error
		if stats, err = s.calls.Stats(); err != nil {
			writeError(w, err, callback)
			return
		}
	}
	writeJSON(w, http.StatusOK, stats, callback)
}
