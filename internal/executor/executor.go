package executor

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/studiowebux/webpagetest/internal/decode"
	"github.com/studiowebux/webpagetest/internal/logger"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/metrics"
	"github.com/studiowebux/webpagetest/internal/types"
)

// DefaultTimeout bounds a single remote call
const DefaultTimeout = 30 * time.Second

// Recorder receives one entry per remote call
type Recorder interface {
	Record(entry types.CallLog) error
}

// Call describes one remote API request
type Call struct {
	Command string         // command name for logs and metrics
	Path    string         // endpoint path relative to the server base path
	Query   *mapping.Query // wire parameters in order
	Decoder decode.Decoder // explicit decoder, overrides content-type dispatch
	Binary  bool           // image payload: raw bytes unless Decoder is set
	Server  *ServerConfig  // per-call server override
	Proxy   string         // forward proxy URL
	DryRun  bool           // return the URL without contacting the server
}

// Result is the decoded outcome of a call
type Result struct {
	URL         string
	Data        any
	ContentType string
	StatusCode  int
	Duration    time.Duration
	Size        int
}

// Engine performs remote API calls against a configured server
type Engine struct {
	server   ServerConfig
	client   *http.Client
	logger   *zap.Logger
	recorder Recorder
}

// Option configures an Engine
type Option func(*Engine) error

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger.OrNop(l)
		return nil
	}
}

// WithRecorder records every call into r
func WithRecorder(r Recorder) Option {
	return func(e *Engine) error {
		e.recorder = r
		return nil
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) error {
		e.client = c
		return nil
	}
}

// WithTLS builds the HTTP client with the given TLS configuration
func WithTLS(cfg *types.TLSConfig, timeout time.Duration) Option {
	return func(e *Engine) error {
		c, err := buildHTTPClient(cfg, timeout)
		if err != nil {
			return fmt.Errorf("failed to configure HTTP client: %w", err)
		}
		e.client = c
		return nil
	}
}

// New creates an engine for server
func New(server ServerConfig, opts ...Option) (*Engine, error) {
	e := &Engine{server: server, logger: zap.NewNop()}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.client == nil {
		c, err := buildHTTPClient(nil, DefaultTimeout)
		if err != nil {
			return nil, err
		}
		e.client = c
	}
	return e, nil
}

// Server returns the configured server
func (e *Engine) Server() ServerConfig {
	return e.server
}

// Execute performs the call. Non-200 responses return an *APIError, transport
// failures are returned unchanged and decode failures as *decode.Error.
func (e *Engine) Execute(ctx context.Context, call Call) (*Result, error) {
	server := e.server
	if call.Server != nil {
		server = *call.Server
	}
	target := server.URL(call.Path, call.Query)

	if call.DryRun {
		e.logger.Debug("dry run", zap.String("command", call.Command), zap.String("url", logger.RedactURL(target)))
		metrics.ObserveCall(call.Command, 0, metrics.StatusDryRun, 0)
		e.record(types.CallLog{Command: call.Command, URL: target, DryRun: true})
		return &Result{URL: target, Data: map[string]any{"url": target}}, nil
	}

	req, err := newRequest(ctx, server, target, call.Proxy)
	if err != nil {
		return nil, err
	}
	if !call.Binary {
		req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	}

	e.logger.Debug("api request",
		zap.String("command", call.Command),
		zap.String("url", logger.RedactURL(target)),
		zap.String("proxy", call.Proxy))

	startTime := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		duration := time.Since(startTime)
		metrics.ObserveCall(call.Command, 0, metrics.StatusError, duration)
		e.record(types.CallLog{Command: call.Command, URL: target, Duration: duration.Milliseconds(), Error: err.Error()})
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	duration := time.Since(startTime)
	metrics.ObserveCall(call.Command, resp.StatusCode, "", duration)
	entry := types.CallLog{
		Command:      call.Command,
		URL:          target,
		Status:       resp.StatusCode,
		Duration:     duration.Milliseconds(),
		ResponseSize: len(raw),
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := NewAPIError(resp.StatusCode)
		entry.Error = apiErr.Error()
		e.record(entry)
		return nil, apiErr
	}
	if err != nil {
		entry.Error = err.Error()
		e.record(entry)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	body, err := inflate(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		entry.Error = err.Error()
		e.record(entry)
		return nil, fmt.Errorf("failed to decompress response body: %w", err)
	}
	e.record(entry)

	contentType := resp.Header.Get("Content-Type")
	e.logger.Debug("api response",
		zap.String("command", call.Command),
		zap.Int("status", resp.StatusCode),
		zap.String("contentType", contentType),
		zap.String("duration", FormatDuration(duration)),
		zap.String("size", FormatSize(len(body))))
	result := &Result{
		URL:         target,
		ContentType: decode.MediaType(contentType),
		StatusCode:  resp.StatusCode,
		Duration:    duration,
		Size:        len(body),
	}

	if call.Binary && call.Decoder == nil {
		result.Data = body
		return result, nil
	}

	data, err := decode.Dispatch(body, contentType, call.Decoder)
	if err != nil {
		return nil, err
	}
	result.Data = data
	return result, nil
}

func (e *Engine) record(entry types.CallLog) {
	if e.recorder == nil {
		return
	}
	entry.URL = logger.RedactURL(entry.URL)
	if err := e.recorder.Record(entry); err != nil {
		e.logger.Warn("failed to record call", zap.Error(err))
	}
}

// newRequest builds the GET request. Through a forward proxy the request goes
// to the proxy with the absolute target URL as request-target and the target
// authority as Host; no CONNECT tunnel is used, even for https targets.
func newRequest(ctx context.Context, server ServerConfig, target, proxy string) (*http.Request, error) {
	if proxy == "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		return req, nil
	}

	proxyURL, err := url.Parse(proxy)
	if err != nil || proxyURL.Host == "" {
		return nil, fmt.Errorf("invalid proxy %q", proxy)
	}
	if proxyURL.Scheme == "" {
		proxyURL.Scheme = "http"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL.Scheme+"://"+proxyURL.Host+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.Path = ""
	req.URL.Opaque = target
	req.Host = server.Authority()
	if proxyURL.User != nil {
		pw, _ := proxyURL.User.Password()
		creds := base64.StdEncoding.EncodeToString([]byte(proxyURL.User.Username() + ":" + pw))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}
	return req, nil
}

// inflate decodes a compressed body according to Content-Encoding
func inflate(encoding string, raw []byte) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return raw, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(raw))
			defer fr.Close()
			r = fr
		} else {
			defer zr.Close()
			r = zr
		}
	case "br":
		r = brotli.NewReader(bytes.NewReader(raw))
	default:
		return raw, nil
	}
	return io.ReadAll(r)
}

// buildHTTPClient creates an HTTP client with optional TLS/mTLS configuration
func buildHTTPClient(tlsConfig *types.TLSConfig, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if tlsConfig != nil {
		tlsCfg := &tls.Config{
			InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
		}

		// Load client certificate if provided (for mTLS)
		if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}

		// Load CA certificate if provided (for server verification)
		if tlsConfig.CAFile != "" {
			caCert, err := os.ReadFile(tlsConfig.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}
			caCertPool := x509.NewCertPool()
			if !caCertPool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("failed to parse CA certificate")
			}
			tlsCfg.RootCAs = caCertPool
		}

		transport.TLSClientConfig = tlsCfg
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// FormatDuration formats a duration to a human-readable string
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.2fs", seconds)
}

// FormatSize formats byte size to human-readable string
func FormatSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%dB", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.2fKB", float64(bytes)/1024.0)
	}
	return fmt.Sprintf("%.2fMB", float64(bytes)/(1024.0*1024.0))
}
