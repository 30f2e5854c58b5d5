package wpt

import (
	"context"
	"strconv"
	"strings"

	"github.com/studiowebux/webpagetest/internal/decode"
	"github.com/studiowebux/webpagetest/internal/executor"
	"github.com/studiowebux/webpagetest/internal/mapping"
)

// Remote endpoint paths, relative to the server base path
const (
	pathTestStatus   = "testStatus.php"
	pathTestResults  = "xmlResult.php"
	pathLocations    = "getLocations.php"
	pathTesters      = "getTesters.php"
	pathTest         = "runtest.php"
	pathCancel       = "cancelTest.php"
	pathGzip         = "getgzip.php"
	pathHAR          = "export.php"
	pathWaterfall    = "waterfall.php"
	pathThumbnail    = "thumbnail.php"
	pathHistory      = "testlog.php"
	pathGoogleCsi    = "google/google_csi.php"
	pathResponseBody = "response_body.php"
	pathVideoCreate  = "video/create.php"
	pathVideoView    = "video/view.php"
)

// Per-run result files, prefixed with <run>[_Cached]_
const (
	filePageSpeed       = "pagespeed.txt"
	fileUtilization     = "progress.csv"
	fileRequest         = "IEWTR.txt"
	fileTimeline        = "timeline.json"
	fileNetLog          = "netlog.txt"
	fileChromeTrace     = "trace.json"
	fileConsoleLog      = "console_log.json"
	fileWaterfall       = "waterfall.png"
	fileScreenshot      = "screen.jpg"
	fileScreenRender    = "screen_render.jpg"
	fileScreenDocument  = "screen_doc.jpg"
	fileScreenFullRes   = "screen.png"
	fileTestInfo        = "testinfo.json"
	cachedSuffix        = "_Cached"
	defaultHistoryDays  = "1"
	defaultResponseBody = "1"
)

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
	mimeHTML = "text/html"
)

// runFilename prefixes file with the selected run and view
func runFilename(file string, opts mapping.Options) string {
	run := opts.Int("run", 1)
	if run < 1 {
		run = 1
	}
	cached := ""
	if opts.Bool("repeatView") {
		cached = cachedSuffix
	}
	return strconv.Itoa(run) + cached + "_" + file
}

// setRun appends the run and cached parameters image endpoints expect
func setRun(q *mapping.Query, opts mapping.Options) {
	run := opts.Int("run", 1)
	if run < 1 {
		run = 1
	}
	q.Set("run", strconv.Itoa(run))
	if opts.Bool("repeatView") {
		q.Set("cached", "1")
	} else {
		q.Set("cached", "0")
	}
}

func (c *Client) testStatus(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("test", id)
	mapping.ApplyNamespaces(q, opts, mapping.Request)
	return c.call(ctx, executor.Call{Command: "status", Path: pathTestStatus, Query: q}, opts)
}

func (c *Client) testResults(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("test", id)
	mapping.ApplyNamespaces(q, opts, mapping.Results, mapping.Request)
	return c.call(ctx, executor.Call{Command: "results", Path: pathTestResults, Query: q}, opts)
}

func (c *Client) locations(ctx context.Context, _ string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery()
	mapping.ApplyNamespaces(q, opts, mapping.Request)
	return c.call(ctx, executor.Call{Command: "locations", Path: pathLocations, Query: q}, opts)
}

func (c *Client) testers(ctx context.Context, _ string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery()
	mapping.ApplyNamespaces(q, opts, mapping.Request)
	return c.call(ctx, executor.Call{Command: "testers", Path: pathTesters, Query: q}, opts)
}

func (c *Client) cancelTest(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("test", id)
	if k := c.key(opts); k != "" {
		q.Set("k", k)
	}
	return c.call(ctx, executor.Call{Command: "cancel", Path: pathCancel, Query: q}, opts)
}

func (c *Client) harData(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("test", id)
	return c.call(ctx, executor.Call{Command: "har", Path: pathHAR, Query: q}, opts)
}

// gzipFile fetches one per-run result file through getgzip.php
func gzipFile(command, file string, dec decode.Decoder) handler {
	return func(c *Client, ctx context.Context, id string, opts mapping.Options) (*Response, error) {
		q := mapping.NewQuery("test", id, "file", runFilename(file, opts))
		return c.call(ctx, executor.Call{Command: command, Path: pathGzip, Query: q, Decoder: dec}, opts)
	}
}

func (c *Client) testInfo(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("test", id, "file", fileTestInfo)
	return c.call(ctx, executor.Call{Command: "testinfo", Path: pathGzip, Query: q}, opts)
}

func (c *Client) history(ctx context.Context, days string, opts mapping.Options) (*Response, error) {
	days = strings.TrimSpace(days)
	if days == "" {
		days = defaultHistoryDays
	}
	q := mapping.NewQuery("all", "on", "f", "csv", "days", days)
	return c.call(ctx, executor.Call{Command: "history", Path: pathHistory, Query: q, Decoder: decode.CSV}, opts)
}

func (c *Client) googleCsiData(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("test", id)
	if opts.Has("run") || opts.Has("repeatView") {
		setRun(q, opts)
	}
	return c.call(ctx, executor.Call{Command: "googlecsi", Path: pathGoogleCsi, Query: q, Decoder: decode.CSV}, opts)
}

func (c *Client) responseBody(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("test", id)
	setRun(q, opts)
	q.Set("request", defaultResponseBody)
	mapping.ApplyNamespaces(q, opts, mapping.Response)
	return c.call(ctx, executor.Call{Command: "response", Path: pathResponseBody, Query: q}, opts)
}

func (c *Client) waterfallImage(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	path := pathWaterfall
	q := mapping.NewQuery("test", id)
	setRun(q, opts)
	if opts.Bool("thumbnail") {
		path = pathThumbnail
		q.Set("file", runFilename(fileWaterfall, opts))
	}
	mapping.ApplyNamespaces(q, opts, mapping.Waterfall)
	return c.image(ctx, executor.Call{Command: "waterfall", Path: path, Query: q}, mimePNG, opts)
}

func (c *Client) screenshotImage(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	file, mime := fileScreenshot, mimeJPEG
	switch {
	case opts.Bool("startRender"):
		file = fileScreenRender
	case opts.Bool("documentComplete"):
		file = fileScreenDocument
	case opts.Bool("fullResolution"):
		file, mime = fileScreenFullRes, mimePNG
	}

	path := pathGzip
	q := mapping.NewQuery("test", id, "file", runFilename(file, opts))
	if opts.Bool("thumbnail") {
		path = pathThumbnail
		setRun(q, opts)
	}
	return c.image(ctx, executor.Call{Command: "screenshot", Path: path, Query: q}, mime, opts)
}

// image fetches a binary payload, base64 encoded when dataURI is set
func (c *Client) image(ctx context.Context, call executor.Call, mime string, opts mapping.Options) (*Response, error) {
	call.Binary = true
	dataURI := opts.Bool("dataURI")
	if dataURI {
		call.Decoder = decode.DataURI
	}

	res, err := c.call(ctx, call, opts)
	if err != nil {
		return nil, err
	}
	res.Type = mime
	_, raw := res.Data.([]byte)
	res.Binary = raw && !dataURI
	return res, nil
}

func (c *Client) createVideo(ctx context.Context, tests string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("tests", tests, "f", "json")
	mapping.ApplyNamespaces(q, opts, mapping.Video)
	return c.call(ctx, executor.Call{Command: "video", Path: pathVideoCreate, Query: q}, opts)
}

func (c *Client) embedVideoPlayer(ctx context.Context, id string, opts mapping.Options) (*Response, error) {
	q := mapping.NewQuery("embed", "1", "id", id)
	res, err := c.call(ctx, executor.Call{Command: "player", Path: pathVideoView, Query: q, Decoder: decode.Raw}, opts)
	if err != nil {
		return nil, err
	}
	if !opts.Bool("dryRun") {
		res.Type = mimeHTML
	}
	return res, nil
}
