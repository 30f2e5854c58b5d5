package mapping

import (
	"errors"
	"strings"
)

// ErrUnknownCommand is returned when a command name is not registered
var ErrUnknownCommand = errors.New("unknown command")

// Method identifies the client operation a command dispatches to
type Method int

const (
	MethodTestStatus Method = iota
	MethodTestResults
	MethodLocations
	MethodTesters
	MethodRunTest
	MethodCancelTest
	MethodHARData
	MethodPageSpeedData
	MethodUtilizationData
	MethodRequestData
	MethodTimelineData
	MethodNetLogData
	MethodChromeTraceData
	MethodConsoleLogData
	MethodTestInfo
	MethodHistory
	MethodGoogleCsiData
	MethodResponseBody
	MethodWaterfallImage
	MethodScreenshotImage
	MethodCreateVideo
	MethodEmbedVideoPlayer
	MethodListen
)

// Command describes a user-facing command and the options it accepts
type Command struct {
	Name       string
	Method     Method
	Func       string // programmatic operation name
	Param      string // positional argument, empty when none
	Optional   bool   // positional argument may be omitted
	Namespaces []*Namespace
	NoKey      []*Namespace // accepted but never sent on this command's own request
	Info       string
}

// Commands lists every command in help order
var Commands = []*Command{
	{Name: "status", Method: MethodTestStatus, Func: "getTestStatus", Param: "id", Namespaces: []*Namespace{Request}, Info: "check test status"},
	{Name: "results", Method: MethodTestResults, Func: "getTestResults", Param: "id", Namespaces: []*Namespace{Results, Request}, Info: "get test results"},
	{Name: "locations", Method: MethodLocations, Func: "getLocations", Namespaces: []*Namespace{Request}, Info: "list locations and the number of pending tests"},
	{Name: "testers", Method: MethodTesters, Func: "getTesters", Namespaces: []*Namespace{Request}, Info: "list testers status and details"},
	{Name: "test", Method: MethodRunTest, Func: "runTest", Param: "url_or_script", Namespaces: []*Namespace{APIKey, Test, Request}, NoKey: []*Namespace{Results}, Info: "run test"},
	{Name: "cancel", Method: MethodCancelTest, Func: "cancelTest", Param: "id", Namespaces: []*Namespace{APIKey}, Info: "cancel running/pending test"},
	{Name: "har", Method: MethodHARData, Func: "getHARData", Param: "id", Info: "get the HTTP Archive (HAR) from test"},
	{Name: "pagespeed", Method: MethodPageSpeedData, Func: "getPageSpeedData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get the Google Page Speed results (if available) from test"},
	{Name: "utilization", Method: MethodUtilizationData, Func: "getUtilizationData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get the CPU, bandwidth and memory utilization data from test"},
	{Name: "request", Method: MethodRequestData, Func: "getRequestData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get the request data from test"},
	{Name: "timeline", Method: MethodTimelineData, Func: "getTimelineData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get the Chrome Developer Tools Timeline data (if available) from test"},
	{Name: "netlog", Method: MethodNetLogData, Func: "getNetLogData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get the Chrome Developer Tools Net log data (if available) from test"},
	{Name: "chrometrace", Method: MethodChromeTraceData, Func: "getChromeTraceData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get the Chrome Trace data (if available) from test"},
	{Name: "console", Method: MethodConsoleLogData, Func: "getConsoleLogData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get the browser console log data (if available) from test"},
	{Name: "testinfo", Method: MethodTestInfo, Func: "getTestInfo", Param: "id", Info: "get test request info/details"},
	{Name: "history", Method: MethodHistory, Func: "getHistory", Param: "days", Optional: true, Info: "get history of previously run tests"},
	{Name: "googlecsi", Method: MethodGoogleCsiData, Func: "getGoogleCsiData", Param: "id", Namespaces: []*Namespace{Run}, Info: "get Google CSI data (Client Side Instrumentation)"},
	{Name: "response", Method: MethodResponseBody, Func: "getResponseBody", Param: "id", Namespaces: []*Namespace{Run, Response}, Info: "get response body for text resources"},
	{Name: "waterfall", Method: MethodWaterfallImage, Func: "getWaterfallImage", Param: "id", Namespaces: []*Namespace{Run, Image, Waterfall}, Info: "get the waterfall PNG image"},
	{Name: "screenshot", Method: MethodScreenshotImage, Func: "getScreenshotImage", Param: "id", Namespaces: []*Namespace{Run, Image, Screenshot}, Info: "get the fully loaded page screenshot in JPG format (PNG if in full resolution)"},
	{Name: "video", Method: MethodCreateVideo, Func: "createVideo", Param: "tests", Namespaces: []*Namespace{Video}, Info: "create a video from <tests> (comma separated test ids)"},
	{Name: "player", Method: MethodEmbedVideoPlayer, Func: "getEmbedVideoPlayer", Param: "id", Info: "get a html5 player for a video <id>"},
	{Name: "listen", Method: MethodListen, Func: "listen", Param: "hostname:port", Optional: true, Namespaces: []*Namespace{Listen}, Info: "start webpagetest proxy server on <hostname>:<port> [hostname:%s]"},
}

var commandIndex = func() map[string]*Command {
	idx := make(map[string]*Command, len(Commands))
	for _, cmd := range Commands {
		idx[cmd.Name] = cmd
	}
	return idx
}()

// Lookup returns the command registered under name (case-insensitive)
func Lookup(name string) (*Command, bool) {
	cmd, ok := commandIndex[strings.ToLower(name)]
	return cmd, ok
}

// AllNamespaces returns the namespaces a command resolves options against, in
// priority order: common first, then the command's own, then its no-key ones
func (c *Command) AllNamespaces() []*Namespace {
	all := make([]*Namespace, 0, 1+len(c.Namespaces)+len(c.NoKey))
	all = append(all, Common)
	all = append(all, c.Namespaces...)
	all = append(all, c.NoKey...)
	return all
}

// Lookup resolves a user key against the command's namespaces; the first
// namespace that defines the key wins
func (c *Command) Lookup(key string) (*Option, bool) {
	for _, ns := range c.AllNamespaces() {
		if opt, ok := ns.Lookup(key); ok {
			return opt, true
		}
	}
	return nil, false
}
