package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/webpagetest/internal/executor"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/server"
	"github.com/studiowebux/webpagetest/internal/waiter"
	"github.com/studiowebux/webpagetest/internal/wpt"
)

type fakeClient struct {
	res     *wpt.Response
	err     error
	command string
	arg     string
}

func (f *fakeClient) Run(_ context.Context, command, arg string, _ mapping.Input) (*wpt.Response, error) {
	f.command, f.arg = command, arg
	return f.res, f.err
}

func newRunner(client Client) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return &Runner{Client: client, Stdout: &stdout, Stderr: &stderr}, &stdout, &stderr
}

var completeResults = map[string]any{
	"response": map[string]any{
		"statusCode": float64(200),
		"data": map[string]any{
			"median": map[string]any{
				"firstView": map[string]any{"TTFB": float64(120), "render": float64(800)},
			},
		},
	},
}

func TestRun_JSON(t *testing.T) {
	client := &fakeClient{res: &wpt.Response{Data: map[string]any{"statusCode": float64(200)}}}
	r, stdout, _ := newRunner(client)

	code := r.Run(context.Background(), RunOptions{Command: "STATUS", Arg: "abc"})
	assert.Equal(t, 0, code)
	assert.Equal(t, "status", client.command)
	assert.Equal(t, "abc", client.arg)
	assert.JSONEq(t, `{"statusCode":200}`, stdout.String())
}

func TestRun_QueryAndFormats(t *testing.T) {
	client := &fakeClient{res: &wpt.Response{Data: completeResults}}

	tests := []struct {
		format string
		query  string
		want   string
	}{
		{format: FormatJSON, query: "response.data.median.firstView.TTFB", want: "120\n"},
		{format: FormatText, query: "response.statusCode", want: "200\n"},
		{format: FormatYAML, query: "response.data.median.firstView", want: "TTFB: 120\nrender: 800\n"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			r, stdout, _ := newRunner(client)
			code := r.Run(context.Background(), RunOptions{Command: "results", Arg: "abc", Format: tt.format, Query: tt.query})
			assert.Equal(t, 0, code)
			assert.Equal(t, tt.want, stdout.String())
		})
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		err     error
		code    any
	}{
		{name: "unknown command", command: "nope", code: float64(404)},
		{name: "api error", command: "status", err: &executor.APIError{StatusCode: 400, Message: "Bad Request"}, code: float64(400)},
		{name: "timeout", command: "test", err: &waiter.TimeoutError{TestID: "abc"}, code: "TIMEOUT"},
		{name: "transport", command: "status", err: errors.New("connection refused"), code: float64(500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, stdout, _ := newRunner(&fakeClient{err: tt.err})
			assert.Equal(t, 1, r.Run(context.Background(), RunOptions{Command: tt.command, Arg: "abc"}))

			var out map[string]map[string]any
			require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
			assert.Equal(t, tt.code, out["error"]["code"])
		})
	}
}

func TestRun_SpecsExitCode(t *testing.T) {
	client := &fakeClient{res: &wpt.Response{Data: completeResults}}
	r, stdout, _ := newRunner(client)

	code := r.Run(context.Background(), RunOptions{
		Command: "results",
		Arg:     "abc",
		Input: mapping.Input{
			"specs":    `{"median":{"firstView":{"TTFB":100,"render":1000,"speedIndex":500}}}`,
			"reporter": "tap",
		},
	})
	assert.Equal(t, 2, code)
	assert.Contains(t, stdout.String(), "1..3")
	assert.Contains(t, stdout.String(), "not ok 1 WebPageTest median.firstView.TTFB: 120 should be less than 100")
	assert.Contains(t, stdout.String(), "ok 2 WebPageTest median.firstView.render: 800 should be less than 1000")
}

func TestRun_SpecsDefaultReporterAndParseError(t *testing.T) {
	client := &fakeClient{res: &wpt.Response{Data: completeResults}}
	r, stdout, _ := newRunner(client)

	code := r.Run(context.Background(), RunOptions{
		Command:  "results",
		Arg:      "abc",
		Input:    mapping.Input{"specs": "{broken"},
		Reporter: "min",
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "SpecsParserError")
	assert.Contains(t, stdout.String(), "1 failing")
}

func TestRun_SpecsSkippedWhenNotApplicable(t *testing.T) {
	incomplete := map[string]any{"response": map[string]any{"statusCode": float64(100)}}
	specsInput := `{"median":{"firstView":{"TTFB":1}}}`

	tests := []struct {
		name    string
		command string
		data    any
		input   mapping.Input
	}{
		{name: "incomplete results", command: "results", data: incomplete, input: mapping.Input{"specs": specsInput}},
		{name: "async test", command: "test", data: completeResults, input: mapping.Input{"specs": specsInput}},
		{name: "dry run", command: "results", data: map[string]any{"url": "http://x"}, input: mapping.Input{"specs": specsInput, "dryrun": true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, stdout, _ := newRunner(&fakeClient{res: &wpt.Response{Data: tt.data}})
			assert.Equal(t, 0, r.Run(context.Background(), RunOptions{Command: tt.command, Arg: "abc", Input: tt.input}))
			assert.True(t, strings.HasPrefix(stdout.String(), "{"), stdout.String())
		})
	}
}

func TestRun_SyncTestEvaluatesSpecs(t *testing.T) {
	client := &fakeClient{res: &wpt.Response{Data: completeResults}}
	r, _, _ := newRunner(client)

	code := r.Run(context.Background(), RunOptions{
		Command: "test",
		Arg:     "http://example.com",
		Input:   mapping.Input{"specs": `{"median":{"firstView":{"TTFB":1}}}`, "poll": "5"},
	})
	assert.Equal(t, 1, code)
}

func TestRun_SaveBinary(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	client := &fakeClient{res: &wpt.Response{Data: png, Type: "image/png", Binary: true}}
	r, stdout, stderr := newRunner(client)

	path := filepath.Join(t.TempDir(), "waterfall.png")
	code := r.Run(context.Background(), RunOptions{Command: "waterfall", Arg: "abc", Output: path})
	assert.Equal(t, 0, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), path)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, png, saved)
}

func TestRun_RawHTML(t *testing.T) {
	client := &fakeClient{res: &wpt.Response{Data: "<video></video>", Type: "text/html"}}
	r, stdout, _ := newRunner(client)

	assert.Equal(t, 0, r.Run(context.Background(), RunOptions{Command: "player", Arg: "abc"}))
	assert.Equal(t, "<video></video>\n", stdout.String())
}

func TestFormat_Unsupported(t *testing.T) {
	_, err := Format(map[string]any{}, "xml")
	assert.Error(t, err)
}

func TestListen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client, err := wpt.New(wpt.Config{Server: "http://example.com"})
	require.NoError(t, err)
	srv := server.NewServer(&server.Config{Host: "127.0.0.1", Port: port}, client, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var stdout bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- Listen(ctx, srv, &stdout) }()

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listen did not stop")
	}
	assert.Contains(t, stdout.String(), "listening for requests on http://127.0.0.1:")
}
