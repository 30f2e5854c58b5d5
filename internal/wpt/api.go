package wpt

import (
	"context"

	"github.com/studiowebux/webpagetest/internal/mapping"
)

func (c *Client) GetTestStatus(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "status", id, in)
}

func (c *Client) GetTestResults(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "results", id, in)
}

func (c *Client) GetLocations(ctx context.Context, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "locations", "", in)
}

func (c *Client) GetTesters(ctx context.Context, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "testers", "", in)
}

// RunTest submits a test for a url, or for a script when what contains
// whitespace
func (c *Client) RunTest(ctx context.Context, what string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "test", what, in)
}

func (c *Client) CancelTest(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "cancel", id, in)
}

func (c *Client) GetHARData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "har", id, in)
}

func (c *Client) GetPageSpeedData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "pagespeed", id, in)
}

func (c *Client) GetUtilizationData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "utilization", id, in)
}

func (c *Client) GetRequestData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "request", id, in)
}

func (c *Client) GetTimelineData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "timeline", id, in)
}

func (c *Client) GetNetLogData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "netlog", id, in)
}

func (c *Client) GetChromeTraceData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "chrometrace", id, in)
}

func (c *Client) GetConsoleLogData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "console", id, in)
}

func (c *Client) GetTestInfo(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "testinfo", id, in)
}

// GetHistory lists the tests of the last days, one day when days is empty
func (c *Client) GetHistory(ctx context.Context, days string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "history", days, in)
}

func (c *Client) GetGoogleCsiData(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "googlecsi", id, in)
}

func (c *Client) GetResponseBody(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "response", id, in)
}

func (c *Client) GetWaterfallImage(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "waterfall", id, in)
}

func (c *Client) GetScreenshotImage(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "screenshot", id, in)
}

// CreateVideo creates a comparison video from comma separated test ids
func (c *Client) CreateVideo(ctx context.Context, tests string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "video", tests, in)
}

func (c *Client) GetEmbedVideoPlayer(ctx context.Context, id string, in mapping.Input) (*Response, error) {
	return c.Run(ctx, "player", id, in)
}
