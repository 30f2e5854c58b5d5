package wpt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/webpagetest/internal/executor"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/waiter"
)

// ErrNoTestID is returned when a submission is accepted without a test id
var ErrNoTestID = errors.New("test submission returned no test id")

// runTest submits a url or a script. With pollResults or waitResults it
// blocks until the results are available and returns them instead of the
// submission payload.
func (c *Client) runTest(ctx context.Context, what string, opts mapping.Options) (*Response, error) {
	submitCall := func(pingback string) executor.Call {
		q := mapping.NewQuery()
		if strings.ContainsAny(what, " \t\r\n") {
			q.Set("script", what)
		} else {
			q.Set("url", what)
		}
		if k := c.key(opts); k != "" {
			q.Set("k", k)
		}
		mapping.ApplyNamespaces(q, opts, mapping.Test, mapping.Request)
		if pingback != "" {
			q.Set("pingback", pingback)
		}
		q.Set("f", "json")
		return executor.Call{Command: "test", Path: pathTest, Query: q}
	}

	sync := c.syncConfig(opts)
	if !sync.Enabled() || opts.Bool("dryRun") {
		return c.call(ctx, submitCall(""), opts)
	}

	var resultsURL string
	data, err := waiter.Run(ctx, sync,
		func(ctx context.Context, pingback string) (string, error) {
			res, err := c.call(ctx, submitCall(pingback), opts)
			if err != nil {
				return "", err
			}
			id, err := SubmittedTestID(res.Data)
			if err != nil {
				return "", err
			}
			c.logger.Debug("test submitted", zap.String("test", id), zap.String("strategy", string(sync.Strategy())))
			return id, nil
		},
		func(ctx context.Context, id string) (any, bool, error) {
			res, err := c.testResults(ctx, id, opts)
			if err != nil {
				return nil, false, err
			}
			resultsURL = res.URL
			return res.Data, IsComplete(res.Data), nil
		})
	if err != nil {
		return nil, err
	}
	return &Response{Data: data, URL: resultsURL}, nil
}

func (c *Client) syncConfig(opts mapping.Options) waiter.Config {
	cfg := waiter.Config{
		Logger:   c.logger,
		OnListen: c.onListen,
		Listen:   c.waitListen,
		Timeout:  seconds(opts.String("timeout"), 0),
		WaitPort: c.waitPort,
	}
	if opts.Has("pollResults") {
		cfg.Poll = true
		def := c.pollInterval
		if def <= 0 {
			def = waiter.DefaultPollInterval
		}
		cfg.PollInterval = seconds(opts.String("pollResults"), def)
	}
	if opts.Has("waitResults") {
		cfg.Wait = true
		cfg.WaitAddr = opts.String("waitResults")
	}
	if c.waitHostname != "" {
		hostname := c.waitHostname
		cfg.Hostname = func() (string, error) { return hostname, nil }
	}
	return cfg
}

// seconds parses a possibly fractional number of seconds, def when empty,
// invalid or not positive
func seconds(raw string, def time.Duration) time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f <= 0 {
		return def
	}
	return time.Duration(f * float64(time.Second))
}

// SubmittedTestID extracts data.testId from a submission payload. A payload
// carrying a non-200 statusCode becomes an *executor.APIError.
func SubmittedTestID(data any) (string, error) {
	m, _ := data.(map[string]any)
	if inner, ok := m["data"].(map[string]any); ok {
		if id, ok := inner["testId"].(string); ok && id != "" {
			return id, nil
		}
	}
	if code, ok := StatusCode(m); ok && code != http.StatusOK {
		msg, _ := m["statusText"].(string)
		return "", &executor.APIError{StatusCode: code, Message: msg}
	}
	return "", ErrNoTestID
}

// IsComplete reports whether a results payload describes a finished test:
// the statusCode of its response envelope, or of the payload itself when
// there is no envelope, must be 200
func IsComplete(data any) bool {
	m, ok := data.(map[string]any)
	if !ok || len(m) == 0 {
		return false
	}
	if envelope, ok := m["response"].(map[string]any); ok {
		m = envelope
	}
	code, ok := StatusCode(m)
	if !ok {
		return true
	}
	return code == http.StatusOK
}

// StatusCode reads a statusCode field decoded from JSON or XML
func StatusCode(m map[string]any) (int, bool) {
	switch v := m["statusCode"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// ScriptToString renders script steps in the tab separated, newline
// delimited script format. A step is either a raw line or a single-entry
// map of command to a value or a list of values.
func ScriptToString(steps []any) string {
	lines := make([]string, 0, len(steps))
	for _, step := range steps {
		switch s := step.(type) {
		case string:
			lines = append(lines, s)
		case map[string]any:
			for command, value := range s {
				lines = append(lines, scriptLine(command, value))
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

func scriptLine(command string, value any) string {
	parts := []string{command}
	switch v := value.(type) {
	case nil:
	case string:
		if v != "" {
			parts = append(parts, v)
		}
	case []string:
		parts = append(parts, v...)
	case []any:
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
	case float64:
		parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
	default:
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "\t")
}
