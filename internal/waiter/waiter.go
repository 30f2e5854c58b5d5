// Package waiter turns an asynchronous test submission into a single
// blocking call. Completion is detected either by polling the results
// endpoint or by a local HTTP listener that the remote agent pings back.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/webpagetest/internal/logger"
	"github.com/studiowebux/webpagetest/internal/metrics"
	"github.com/studiowebux/webpagetest/internal/types"
)

// Strategy names how completion is detected
type Strategy string

const (
	StrategyPoll   Strategy = "poll"
	StrategyListen Strategy = "listen"
)

const (
	// DefaultPollInterval applies when polling is requested without an interval
	DefaultPollInterval = 5 * time.Second
	// DefaultWaitPort is the first port tried for the callback listener
	DefaultWaitPort = 8000
	// CallbackPath is the path the remote agent pings once a test completes
	CallbackPath = "/testdone"

	maxPort = 65535
)

// TimeoutError reports that a test did not complete before the timeout
type TimeoutError struct {
	TestID string `json:"testId"`
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for test %s", e.TestID)
}

// Code returns the fixed timeout error code
func (e *TimeoutError) Code() string {
	return "TIMEOUT"
}

// SubmitFunc submits the test. pingback is the callback URL for the listen
// strategy and empty when polling.
type SubmitFunc func(ctx context.Context, pingback string) (testID string, err error)

// FetchFunc fetches the test results and reports whether the test is complete
type FetchFunc func(ctx context.Context, testID string) (data any, complete bool, err error)

// Config controls a synchronous session
type Config struct {
	Poll         bool
	PollInterval time.Duration
	Wait         bool
	WaitAddr     string // hostname:port, either part optional
	WaitPort     int    // first port tried when WaitAddr has none, DefaultWaitPort when 0
	Timeout      time.Duration
	OnListen     func(types.ListenInfo)
	Logger       *zap.Logger

	// Listen and Hostname default to net.Listen and os.Hostname
	Listen   func(network, address string) (net.Listener, error)
	Hostname func() (string, error)
}

// Enabled reports whether either strategy is configured
func (c Config) Enabled() bool {
	return c.Poll || c.Wait
}

// Strategy returns the selected strategy; polling takes precedence
func (c Config) Strategy() Strategy {
	if c.Poll {
		return StrategyPoll
	}
	return StrategyListen
}

// Run submits the test and blocks until the results are available, the
// timeout elapses, ctx is canceled or an error occurs. It returns exactly
// once and releases the listener and timers before returning.
func Run(ctx context.Context, cfg Config, submit SubmitFunc, fetch FetchFunc) (data any, err error) {
	log := logger.OrNop(cfg.Logger)
	strategy := cfg.Strategy()

	defer func() {
		metrics.ObserveSession(string(strategy), outcome(err))
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		pingback string
		pings    chan string
	)
	if strategy == StrategyListen {
		ln, info, err := listenFirstAvailable(cfg)
		if err != nil {
			return nil, err
		}
		pings = make(chan string, 16)
		srv := &http.Server{Handler: callbackHandler(pings, log), ReadHeaderTimeout: 10 * time.Second}
		go srv.Serve(ln)
		defer srv.Close()

		log.Debug("waiting for test callback", zap.String("url", info.URL+CallbackPath))
		if cfg.OnListen != nil {
			cfg.OnListen(info)
		}
		pingback = info.URL + CallbackPath
	}

	testID, err := submit(ctx, pingback)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if cfg.Timeout > 0 {
		var cancelWait context.CancelFunc
		waitCtx, cancelWait = context.WithTimeout(ctx, cfg.Timeout)
		defer cancelWait()
	}
	stopped := func() error {
		if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{TestID: testID}
		}
		return ctx.Err()
	}
	fetchOnce := func() (any, bool, error) {
		data, complete, err := fetch(waitCtx, testID)
		if err != nil && waitCtx.Err() != nil {
			return nil, false, stopped()
		}
		return data, complete, err
	}

	if strategy == StrategyPoll {
		interval := cfg.PollInterval
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-waitCtx.Done():
				return nil, stopped()
			case <-timer.C:
				data, complete, err := fetchOnce()
				if err != nil {
					return nil, err
				}
				if complete {
					return data, nil
				}
				log.Debug("test not complete yet", zap.String("test", testID), zap.Duration("retry", interval))
				timer.Reset(interval)
			}
		}
	}

	for {
		select {
		case <-waitCtx.Done():
			return nil, stopped()
		case id := <-pings:
			if id != testID {
				log.Warn("ignoring callback for another test", zap.String("id", id), zap.String("test", testID))
				continue
			}
			data, _, err := fetchOnce()
			if err != nil {
				return nil, err
			}
			return data, nil
		}
	}
}

func callbackHandler(pings chan<- string, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		select {
		case pings <- id:
		default:
			log.Warn("dropping test callback", zap.String("id", id))
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func outcome(err error) string {
	var timeoutErr *TimeoutError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// SplitWaitAddr splits "hostname:port" where either part may be empty. A
// bare number is taken as a port.
func SplitWaitAddr(addr string) (host string, port int, err error) {
	addr = strings.TrimSpace(addr)
	if addr == "" || addr == ":" {
		return "", 0, nil
	}
	if n, convErr := strconv.Atoi(addr); convErr == nil {
		return "", n, validPort(n)
	}
	if !strings.Contains(addr, ":") {
		return addr, 0, nil
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid wait address %q: %w", addr, err)
	}
	if portStr == "" {
		return host, 0, nil
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid wait port %q", portStr)
	}
	return host, port, validPort(port)
}

func validPort(p int) error {
	if p < 0 || p > maxPort {
		return fmt.Errorf("invalid wait port %d", p)
	}
	return nil
}

// listenFirstAvailable binds the callback listener on the requested port or
// the first free port from cfg.WaitPort upward. The hostname only goes into
// the pingback URL; the listener binds every interface.
func listenFirstAvailable(cfg Config) (net.Listener, types.ListenInfo, error) {
	host, port, err := SplitWaitAddr(cfg.WaitAddr)
	if err != nil {
		return nil, types.ListenInfo{}, err
	}

	listen := cfg.Listen
	if listen == nil {
		listen = net.Listen
	}
	hostnameFn := cfg.Hostname
	if hostnameFn == nil {
		hostnameFn = os.Hostname
	}

	hostname := host
	if hostname == "" {
		if hostname, err = hostnameFn(); err != nil {
			return nil, types.ListenInfo{}, fmt.Errorf("failed to resolve hostname: %w", err)
		}
	}
	if port == 0 {
		port = cfg.WaitPort
	}
	if port == 0 {
		port = DefaultWaitPort
	}

	first := port
	for ; port <= maxPort; port++ {
		ln, err := listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			if errors.Is(err, syscall.EADDRINUSE) {
				continue
			}
			return nil, types.ListenInfo{}, fmt.Errorf("failed to listen for test callback: %w", err)
		}

		// Port 0 or a kernel-assigned port reports what was actually bound
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok && tcp.Port != 0 {
			port = tcp.Port
		}
		info := types.ListenInfo{
			Protocol: "http",
			Hostname: hostname,
			Port:     port,
			URL:      "http://" + net.JoinHostPort(hostname, strconv.Itoa(port)),
		}
		return ln, info, nil
	}

	return nil, types.ListenInfo{}, fmt.Errorf("no free port for test callback in %d-%d", first, maxPort)
}
