package wpt

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/webpagetest/internal/executor"
	"github.com/studiowebux/webpagetest/internal/mapping"
	"github.com/studiowebux/webpagetest/internal/types"
	"github.com/studiowebux/webpagetest/internal/waiter"
)

const testID = "120816_V2_2"

func newClient(t *testing.T, server string) *Client {
	t.Helper()
	c, err := New(Config{Server: server})
	require.NoError(t, err)
	return c
}

func dryRun(in mapping.Input) mapping.Input {
	out := mapping.Input{"dryRun": true}
	for k, v := range in {
		out[k] = v
	}
	return out
}

func TestDryRunURLs(t *testing.T) {
	c := newClient(t, "http://example.com")

	tests := []struct {
		name    string
		command string
		arg     string
		in      mapping.Input
		want    string
	}{
		{name: "status", command: "status", arg: testID, want: "http://example.com/testStatus.php?test=120816_V2_2"},
		{name: "status with request id", command: "status", arg: testID, in: mapping.Input{"e": "12345"}, want: "http://example.com/testStatus.php?test=120816_V2_2&r=12345"},
		{name: "results", command: "results", arg: testID, want: "http://example.com/xmlResult.php?test=120816_V2_2"},
		{name: "results shaping", command: "results", arg: testID, in: mapping.Input{"breakdown": true, "median": "SpeedIndex", "specs": "specs.json"}, want: "http://example.com/xmlResult.php?test=120816_V2_2&breakdown=1&medianMetric=SpeedIndex"},
		{name: "locations", command: "locations", want: "http://example.com/getLocations.php"},
		{name: "testers", command: "testers", want: "http://example.com/getTesters.php"},
		{name: "test", command: "test", arg: "http://foobar.com", want: "http://example.com/runtest.php?url=http%3A%2F%2Ffoobar.com&f=json"},
		{
			name:    "custom test",
			command: "test",
			arg:     "http://twitter.com/marcelduran",
			in: mapping.Input{
				"location":                 "Local_Firefox_Chrome:Chrome",
				"label":                    "test 123",
				"runs":                     3,
				"firstViewOnly":            true,
				"timeline":                 true,
				"netLog":                   true,
				"fullResolutionScreenshot": true,
			},
			want: "http://example.com/runtest.php?url=http%3A%2F%2Ftwitter.com%2Fmarcelduran&location=Local_Firefox_Chrome%3AChrome&runs=3&fvonly=1&label=test%20123&timeline=1&netlog=1&pngss=1&f=json",
		},
		{name: "test block list", command: "test", arg: "http://foobar.com", in: mapping.Input{"block": []string{"a.com", "b.com"}}, want: "http://example.com/runtest.php?url=http%3A%2F%2Ffoobar.com&block=a.com%20b.com&f=json"},
		{name: "test results options not sent", command: "test", arg: "http://foobar.com", in: mapping.Input{"breakdown": true, "medianMetric": "SpeedIndex"}, want: "http://example.com/runtest.php?url=http%3A%2F%2Ffoobar.com&f=json"},
		{name: "cancel", command: "cancel", arg: testID, want: "http://example.com/cancelTest.php?test=120816_V2_2"},
		{name: "cancel with key", command: "cancel", arg: testID, in: mapping.Input{"k": "secret"}, want: "http://example.com/cancelTest.php?test=120816_V2_2&k=secret"},
		{name: "har", command: "har", arg: testID, want: "http://example.com/export.php?test=120816_V2_2"},
		{name: "pagespeed", command: "pagespeed", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_pagespeed.txt"},
		{name: "utilization", command: "utilization", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_progress.csv"},
		{name: "request", command: "request", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_IEWTR.txt"},
		{name: "timeline", command: "timeline", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_timeline.json"},
		{name: "netlog", command: "netlog", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_netlog.txt"},
		{name: "chrometrace repeat view", command: "chrometrace", arg: testID, in: mapping.Input{"run": "2", "cached": true}, want: "http://example.com/getgzip.php?test=120816_V2_2&file=2_Cached_trace.json"},
		{name: "console", command: "console", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_console_log.json"},
		{name: "testinfo", command: "testinfo", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=testinfo.json"},
		{name: "history default", command: "history", want: "http://example.com/testlog.php?all=on&f=csv&days=1"},
		{name: "history days", command: "history", arg: "7", want: "http://example.com/testlog.php?all=on&f=csv&days=7"},
		{name: "googlecsi", command: "googlecsi", arg: testID, want: "http://example.com/google/google_csi.php?test=120816_V2_2"},
		{name: "response", command: "response", arg: testID, in: mapping.Input{"r": 2, "c": true, "R": 3}, want: "http://example.com/response_body.php?test=120816_V2_2&run=2&cached=1&request=3"},
		{name: "waterfall", command: "waterfall", arg: testID, want: "http://example.com/waterfall.php?test=120816_V2_2&run=1&cached=0"},
		{name: "waterfall thumbnail", command: "waterfall", arg: testID, in: mapping.Input{"thumbnail": true}, want: "http://example.com/thumbnail.php?test=120816_V2_2&run=1&cached=0&file=1_waterfall.png"},
		{name: "waterfall chart options", command: "waterfall", arg: testID, in: mapping.Input{"width": 500, "nocpu": true, "noLabels": false}, want: "http://example.com/waterfall.php?test=120816_V2_2&run=1&cached=0&width=500&cpu=0&labels=1"},
		{name: "screenshot", command: "screenshot", arg: testID, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_screen.jpg"},
		{name: "screenshot thumbnail", command: "screenshot", arg: testID, in: mapping.Input{"thumbnail": true}, want: "http://example.com/thumbnail.php?test=120816_V2_2&file=1_screen.jpg&run=1&cached=0"},
		{name: "screenshot full resolution", command: "screenshot", arg: testID, in: mapping.Input{"fullResolution": true}, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_screen.png"},
		{name: "screenshot start render", command: "screenshot", arg: testID, in: mapping.Input{"n": true}, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_screen_render.jpg"},
		{name: "screenshot document complete", command: "screenshot", arg: testID, in: mapping.Input{"complete": true}, want: "http://example.com/getgzip.php?test=120816_V2_2&file=1_screen_doc.jpg"},
		{name: "video", command: "video", arg: "a,b", in: mapping.Input{"end": "doc"}, want: "http://example.com/video/create.php?tests=a%2Cb&f=json&end=doc"},
		{name: "video invalid end dropped", command: "video", arg: "a,b", in: mapping.Input{"end": "bogus"}, want: "http://example.com/video/create.php?tests=a%2Cb&f=json"},
		{name: "player", command: "player", arg: "abc", want: "http://example.com/video/view.php?embed=1&id=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Run(context.Background(), tt.command, tt.arg, dryRun(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.URL)
			assert.Equal(t, map[string]any{"url": tt.want}, res.Data)

			again, err := c.Run(context.Background(), tt.command, tt.arg, dryRun(tt.in))
			require.NoError(t, err)
			assert.Equal(t, res.URL, again.URL)
		})
	}
}

func TestDryRun_ScriptTest(t *testing.T) {
	script := ScriptToString([]any{
		map[string]any{"logData": 0},
		map[string]any{"navigate": "http://foo.com/login"},
		"// log some data",
		map[string]any{"logData": 1},
		map[string]any{"setValue": []any{"name=username", "johndoe"}},
		map[string]any{"setValue": []any{"name=password", "12345"}},
		map[string]any{"submitForm": "action=http://foo.com/main"},
		"waitForComplete",
	})

	res, err := newClient(t, "http://example.com").RunTest(context.Background(), script, dryRun(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/runtest.php?script=logData%090%0Anavigate%09http%3A%2F%2Ffoo.com%2Flogin%0A%2F%2F%20log%20some%20data%0AlogData%091%0AsetValue%09name%3Dusername%09johndoe%0AsetValue%09name%3Dpassword%0912345%0AsubmitForm%09action%3Dhttp%3A%2F%2Ffoo.com%2Fmain%0AwaitForComplete&f=json", res.URL)
}

func TestScriptToString(t *testing.T) {
	got := ScriptToString([]any{
		map[string]any{"navigate": "http://a.com"},
		map[string]any{"setEventName": nil},
		map[string]any{"setValue": []string{"id=q", "go"}},
		"waitForComplete",
	})
	assert.Equal(t, "navigate\thttp://a.com\nsetEventName\nsetValue\tid=q\tgo\nwaitForComplete", got)
}

func TestDryRun_ServerOverrideAndKey(t *testing.T) {
	c := newClient(t, "http://example.com")

	res, err := c.RunTest(context.Background(), "http://foobar.com", dryRun(mapping.Input{"server": "wpt.com", "key": "0987654321"}))
	require.NoError(t, err)
	assert.Equal(t, "http://wpt.com/runtest.php?url=http%3A%2F%2Ffoobar.com&k=0987654321&f=json", res.URL)

	res, err = c.RunTest(context.Background(), "http://foobar.com", dryRun(mapping.Input{"s": "https://wpt.com:1234/baz"}))
	require.NoError(t, err)
	assert.Equal(t, "https://wpt.com:1234/baz/runtest.php?url=http%3A%2F%2Ffoobar.com&f=json", res.URL)

	// The override never changes the client's own server
	assert.Equal(t, "http://example.com", c.Server().String())
}

func TestDryRun_ClientKey(t *testing.T) {
	c, err := New(Config{Server: "http://example.com", APIKey: "clientkey"})
	require.NoError(t, err)

	res, err := c.RunTest(context.Background(), "http://foobar.com", dryRun(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/runtest.php?url=http%3A%2F%2Ffoobar.com&k=clientkey&f=json", res.URL)

	res, err = c.RunTest(context.Background(), "http://foobar.com", dryRun(mapping.Input{"k": "callkey"}))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/runtest.php?url=http%3A%2F%2Ffoobar.com&k=callkey&f=json", res.URL)
}

func TestDryRun_ImageTypes(t *testing.T) {
	c := newClient(t, "http://example.com")

	res, err := c.GetWaterfallImage(context.Background(), testID, dryRun(nil))
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.Type)
	assert.False(t, res.Binary)

	res, err = c.GetScreenshotImage(context.Background(), testID, dryRun(nil))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.Type)

	res, err = c.GetScreenshotImage(context.Background(), testID, dryRun(mapping.Input{"full": true}))
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.Type)
}

func TestDispatch_EveryCommandHasAHandler(t *testing.T) {
	c := newClient(t, "http://example.com")

	for _, cmd := range mapping.Commands {
		t.Run(cmd.Name, func(t *testing.T) {
			res, err := c.Dispatch(context.Background(), cmd, "x", dryRun(nil))
			if cmd.Method == mapping.MethodListen {
				assert.ErrorIs(t, err, mapping.ErrUnknownCommand)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.URL)
		})
	}
}

func TestDispatch_MissingArgument(t *testing.T) {
	_, err := newClient(t, "http://example.com").Run(context.Background(), "status", "", nil)
	assert.Error(t, err)

	_, err = newClient(t, "http://example.com").Run(context.Background(), "nope", "", nil)
	assert.ErrorIs(t, err, mapping.ErrUnknownCommand)
}

func TestFetch_DecodersPerCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getgzip.php":
			w.Header().Set("Content-Type", "text/plain")
			switch r.URL.Query().Get("file") {
			case "1_progress.csv":
				w.Write([]byte("Offset Time (ms),Bandwidth In (bps),CPU Utilization (%)\n100,0,51\n200,1024,12.5\n"))
			case "1_netlog.txt":
				w.Write([]byte("{\"constants\":{},\"events\":[\r\n{\"a\":1},\r\n"))
			}
		case "/cancelTest.php":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body><h3>Sorry, the test could not be cancelled.</h3></body></html>"))
		case "/video/view.php":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<video></video>"))
		case "/waterfall.php":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		}
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	ctx := context.Background()

	res, err := c.GetUtilizationData(ctx, testID, nil)
	require.NoError(t, err)
	util := res.Data.(map[string]any)
	assert.Equal(t, []any{float64(100), float64(200)}, util["Offset Time (ms)"])
	assert.Equal(t, []any{float64(51), 12.5}, util["CPU Utilization (%)"])

	res, err = c.GetNetLogData(ctx, testID, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"constants": map[string]any{}, "events": []any{map[string]any{"a": float64(1)}}}, res.Data)

	res, err = c.CancelTest(ctx, testID, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": "Sorry, the test could not be cancelled."}, res.Data)

	res, err = c.GetEmbedVideoPlayer(ctx, "abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "<video></video>", res.Data)
	assert.Equal(t, "text/html", res.Type)

	res, err = c.GetWaterfallImage(ctx, testID, nil)
	require.NoError(t, err)
	assert.True(t, res.Binary)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, res.Data)

	res, err = c.GetWaterfallImage(ctx, testID, mapping.Input{"uri": true})
	require.NoError(t, err)
	assert.False(t, res.Binary)
	assert.Equal(t, "iVBORw==", res.Data)
}

func TestSubmittedTestID(t *testing.T) {
	id, err := SubmittedTestID(map[string]any{"statusCode": float64(200), "data": map[string]any{"testId": "abc"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = SubmittedTestID(map[string]any{"statusCode": float64(400), "statusText": "Invalid URL"})
	var apiErr *executor.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "Invalid URL", apiErr.Message)

	_, err = SubmittedTestID("garbage")
	assert.ErrorIs(t, err, ErrNoTestID)
}

func TestIsComplete(t *testing.T) {
	assert.False(t, IsComplete(nil))
	assert.False(t, IsComplete(map[string]any{}))
	assert.False(t, IsComplete(map[string]any{"response": map[string]any{"statusCode": float64(100)}}))
	assert.True(t, IsComplete(map[string]any{"response": map[string]any{"statusCode": float64(200)}}))
	assert.True(t, IsComplete(map[string]any{"statusCode": 200, "data": map[string]any{}}))
	assert.False(t, IsComplete(map[string]any{"statusCode": "101"}))
}

// fakeServer stands in for the remote API of a synchronous test
type fakeServer struct {
	completeAt  int32
	polls       int32
	mu          sync.Mutex
	submitQuery string
	resultQuery string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/runtest.php":
		f.mu.Lock()
		f.submitQuery = r.URL.RawQuery
		f.mu.Unlock()
		if pingback := r.URL.Query().Get("pingback"); pingback != "" {
			go func() {
				if resp, err := http.Get(pingback + "?id=abc"); err == nil {
					resp.Body.Close()
				}
			}()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"statusCode":200,"statusText":"Ok","data":{"testId":"abc"}}`))
	case "/xmlResult.php":
		f.mu.Lock()
		f.resultQuery = r.URL.RawQuery
		f.mu.Unlock()
		n := atomic.AddInt32(&f.polls, 1)
		w.Header().Set("Content-Type", "text/xml")
		if f.completeAt > 0 && n >= f.completeAt {
			w.Write([]byte(`<?xml version="1.0"?><response><statusCode>200</statusCode><data><testId>abc</testId><successfulFVRuns>1</successfulFVRuns></data></response>`))
			return
		}
		w.Write([]byte(`<?xml version="1.0"?><response><statusCode>100</statusCode><statusText>Test Started</statusText></response>`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeServer) queries() (submit, results string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitQuery, f.resultQuery
}

func TestRunTest_PollsUntilComplete(t *testing.T) {
	fake := &fakeServer{completeAt: 3}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newClient(t, srv.URL)
	res, err := c.RunTest(context.Background(), "http://foobar.com", mapping.Input{
		"poll":   "0.01",
		"wait":   "",
		"median": "SpeedIndex",
	})
	require.NoError(t, err)

	data := res.Data.(map[string]any)["response"].(map[string]any)
	assert.Equal(t, float64(200), data["statusCode"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&fake.polls))
	submitQuery, resultQuery := fake.queries()
	assert.Equal(t, "test=abc&medianMetric=SpeedIndex", resultQuery)
	assert.Equal(t, "url=http%3A%2F%2Ffoobar.com&f=json", submitQuery)
}

func TestRunTest_PollTimeout(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	defer srv.Close()

	_, err := newClient(t, srv.URL).RunTest(context.Background(), "http://foobar.com", mapping.Input{
		"poll":    "0.01",
		"timeout": "0.1",
	})
	var timeoutErr *waiter.TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "abc", timeoutErr.TestID)
}

func TestRunTest_SubmissionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"statusCode":400,"statusText":"Invalid API Key"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).RunTest(context.Background(), "http://foobar.com", mapping.Input{"poll": "1"})
	var apiErr *executor.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid API Key", apiErr.Message)
}

func TestRunTest_WaitsForPingback(t *testing.T) {
	fake := &fakeServer{completeAt: 1}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	var listenURL string
	c, err := New(Config{
		Server:       srv.URL,
		WaitHostname: "127.0.0.1",
		OnListen:     func(info types.ListenInfo) { listenURL = info.URL },
	})
	require.NoError(t, err)
	c.waitListen = func(network, address string) (net.Listener, error) {
		return net.Listen(network, "127.0.0.1:0")
	}

	res, err := c.RunTest(context.Background(), "http://foobar.com", mapping.Input{"wait": ""})
	require.NoError(t, err)

	require.NotEmpty(t, listenURL)
	submitQuery, _ := fake.queries()
	assert.Contains(t, submitQuery, "pingback="+mapping.EscapeComponent(listenURL+waiter.CallbackPath))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.polls))
	assert.True(t, IsComplete(res.Data))
}
