// Package wpt is the WebPageTest API client. Every command of the option
// schema maps to one client operation through an explicit dispatch table.
package wpt

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/webpagetest/internal/decode"
	"github.com/studiowebux/webpagetest/internal/executor"
	"github.com/studiowebux/webpagetest/internal/logger"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/types"
)

// Config configures a Client
type Config struct {
	Server     string // server URL, defaults to executor.DefaultServer
	APIKey     string
	TLS        *types.TLSConfig
	Timeout    time.Duration // per HTTP call
	Logger     *zap.Logger
	Recorder   executor.Recorder
	HTTPClient *http.Client

	// PollInterval and WaitPort are the synchronous test defaults when
	// pollResults has no interval or waitResults no port
	PollInterval time.Duration
	WaitPort     int

	// WaitHostname is used for the callback URL when the wait address has
	// no hostname, defaults to os.Hostname
	WaitHostname string
	// OnListen is called once the callback listener of a synchronous test
	// is bound
	OnListen func(types.ListenInfo)
}

// Client talks to one WebPageTest server
type Client struct {
	engine       *executor.Engine
	apiKey       string
	logger       *zap.Logger
	waitHostname string
	onListen     func(types.ListenInfo)
	pollInterval time.Duration
	waitPort     int

	// waitListen overrides the callback listener bind in tests
	waitListen func(network, address string) (net.Listener, error)
}

// Response is the outcome of one client operation
type Response struct {
	Data any    `json:"data"`
	URL  string `json:"url,omitempty"`
	// Type is the media type of image and HTML payloads, empty for
	// structured data
	Type string `json:"type,omitempty"`
	// Binary is set when Data holds raw image bytes
	Binary bool `json:"-"`
}

// New creates a client
func New(cfg Config) (*Client, error) {
	server, err := executor.ParseServer(cfg.Server)
	if err != nil {
		return nil, err
	}

	log := logger.OrNop(cfg.Logger)
	opts := []executor.Option{executor.WithLogger(log)}
	if cfg.HTTPClient != nil {
		opts = append(opts, executor.WithHTTPClient(cfg.HTTPClient))
	} else {
		opts = append(opts, executor.WithTLS(cfg.TLS, cfg.Timeout))
	}
	if cfg.Recorder != nil {
		opts = append(opts, executor.WithRecorder(cfg.Recorder))
	}

	engine, err := executor.New(server, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		engine:       engine,
		apiKey:       cfg.APIKey,
		logger:       log,
		waitHostname: cfg.WaitHostname,
		onListen:     cfg.OnListen,
		pollInterval: cfg.PollInterval,
		waitPort:     cfg.WaitPort,
	}, nil
}

// Server returns the configured server
func (c *Client) Server() executor.ServerConfig {
	return c.engine.Server()
}

type handler func(c *Client, ctx context.Context, arg string, opts mapping.Options) (*Response, error)

// handlers maps every client method to its implementation. listen is served
// by the server package and has no client operation.
var handlers = map[mapping.Method]handler{
	mapping.MethodTestStatus:       (*Client).testStatus,
	mapping.MethodTestResults:      (*Client).testResults,
	mapping.MethodLocations:        (*Client).locations,
	mapping.MethodTesters:          (*Client).testers,
	mapping.MethodRunTest:          (*Client).runTest,
	mapping.MethodCancelTest:       (*Client).cancelTest,
	mapping.MethodHARData:          (*Client).harData,
	mapping.MethodPageSpeedData:    gzipFile("pagespeed", filePageSpeed, nil),
	mapping.MethodUtilizationData:  gzipFile("utilization", fileUtilization, decode.CSV),
	mapping.MethodRequestData:      gzipFile("request", fileRequest, decode.TSV(decode.RequestDataHeaders)),
	mapping.MethodTimelineData:     gzipFile("timeline", fileTimeline, nil),
	mapping.MethodNetLogData:       gzipFile("netlog", fileNetLog, decode.NetLog),
	mapping.MethodChromeTraceData:  gzipFile("chrometrace", fileChromeTrace, nil),
	mapping.MethodConsoleLogData:   gzipFile("console", fileConsoleLog, nil),
	mapping.MethodTestInfo:         (*Client).testInfo,
	mapping.MethodHistory:          (*Client).history,
	mapping.MethodGoogleCsiData:    (*Client).googleCsiData,
	mapping.MethodResponseBody:     (*Client).responseBody,
	mapping.MethodWaterfallImage:   (*Client).waterfallImage,
	mapping.MethodScreenshotImage:  (*Client).screenshotImage,
	mapping.MethodCreateVideo:      (*Client).createVideo,
	mapping.MethodEmbedVideoPlayer: (*Client).embedVideoPlayer,
}

// Dispatch runs the command's operation with in resolved against its
// option namespaces
func (c *Client) Dispatch(ctx context.Context, cmd *mapping.Command, arg string, in mapping.Input) (*Response, error) {
	h, ok := handlers[cmd.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no client operation", mapping.ErrUnknownCommand, cmd.Name)
	}
	if cmd.Param != "" && !cmd.Optional && arg == "" {
		return nil, fmt.Errorf("%s: missing %s", cmd.Name, cmd.Param)
	}
	return h(c, ctx, arg, mapping.Resolve(cmd, in))
}

// Run looks up a command by name and dispatches it
func (c *Client) Run(ctx context.Context, command, arg string, in mapping.Input) (*Response, error) {
	cmd, ok := mapping.Lookup(command)
	if !ok {
		return nil, fmt.Errorf("%w: %s", mapping.ErrUnknownCommand, command)
	}
	return c.Dispatch(ctx, cmd, arg, in)
}

// call builds the call with the common options applied and executes it
func (c *Client) call(ctx context.Context, call executor.Call, opts mapping.Options) (*Response, error) {
	if server := opts.String("server"); server != "" {
		override, err := executor.ParseServer(server)
		if err != nil {
			return nil, err
		}
		call.Server = &override
	}
	call.Proxy = opts.String("proxy")
	call.DryRun = opts.Bool("dryRun")

	res, err := c.engine.Execute(ctx, call)
	if err != nil {
		return nil, err
	}
	return &Response{Data: res.Data, URL: res.URL}, nil
}

// key returns the per-call API key, falling back to the client key
func (c *Client) key(opts mapping.Options) string {
	if k := opts.String("key"); k != "" {
		return k
	}
	return c.apiKey
}
