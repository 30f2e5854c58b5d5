package mapping

import "regexp"

// Kind describes how an option value is interpreted
type Kind int

const (
	// KindScalar options carry a single string value
	KindScalar Kind = iota
	// KindFlag options are booleans sent as 1/0
	KindFlag
	// KindList options accept a list joined with single spaces
	KindList
)

// Option describes a user-facing option and how it maps onto the remote API
type Option struct {
	Flag     string         // long flag name, e.g. "first"
	Name     string         // programmatic name, e.g. "firstViewOnly"
	Short    string         // single-letter alias
	Wire     string         // remote query parameter, empty for client-side options
	Kind     Kind           // value interpretation
	Invert   bool           // flag means "hide", sent as the negation
	Param    string         // value placeholder for help output
	Valid    *regexp.Regexp // scalar values must match when set
	Optional bool           // value may be omitted on the command line
	Info     string
}

// Namespace is a named group of options shared by commands
type Namespace struct {
	Name    string
	Options []*Option
	lookup  map[string]*Option
}

func newNamespace(name string, opts ...*Option) *Namespace {
	ns := &Namespace{
		Name:    name,
		Options: opts,
		lookup:  make(map[string]*Option, len(opts)*3),
	}
	for _, opt := range opts {
		ns.lookup[opt.Flag] = opt
		ns.lookup[opt.Name] = opt
		if opt.Short != "" {
			ns.lookup[opt.Short] = opt
		}
	}
	return ns
}

// Lookup finds an option by long flag, programmatic name or short alias
func (n *Namespace) Lookup(key string) (*Option, bool) {
	opt, ok := n.lookup[key]
	return opt, ok
}

var (
	reCallStack = regexp.MustCompile(`^[1-5]$`)
	rePriority  = regexp.MustCompile(`^\d$`)
	reReporter  = regexp.MustCompile(`^(?:dot|spec|tap|xunit|list|progress|min|nyan|landing|json|doc|markdown|teamcity)$`)
	reVideoEnd  = regexp.MustCompile(`^(?:visual|all|doc|full)$`)
)

// Common options apply to every command
var Common = newNamespace("common",
	&Option{Flag: "server", Name: "server", Short: "s", Param: "server", Info: "the WPT server URL [%s]"},
	&Option{Flag: "dryrun", Name: "dryRun", Short: "d", Kind: KindFlag, Info: "just return the RESTful API URL"},
	&Option{Flag: "proxy", Name: "proxy", Param: "url", Info: "forward proxy URL used for every remote call"},
)

// Test holds the test submission options
var Test = newNamespace("test",
	&Option{Flag: "location", Name: "location", Short: "l", Wire: "location", Param: "location", Info: "location to test from"},

	// Test Setting tab
	&Option{Flag: "connectivity", Name: "connectivity", Short: "y", Wire: "connectivity", Param: "profile", Info: "connectivity profile (Cable|DSL|FIOS|Dial|3G|3GFast|Native|custom) [Cable]"},
	&Option{Flag: "runs", Name: "runs", Short: "r", Wire: "runs", Param: "number", Info: "number of test runs [1]"},
	&Option{Flag: "first", Name: "firstViewOnly", Short: "f", Wire: "fvonly", Kind: KindFlag, Info: "skip the Repeat View test"},
	&Option{Flag: "video", Name: "video", Short: "v", Wire: "video", Kind: KindFlag, Info: "capture video"},
	&Option{Flag: "private", Name: "private", Short: "p", Wire: "private", Kind: KindFlag, Info: "keep the test hidden from the test log"},
	&Option{Flag: "label", Name: "label", Short: "L", Wire: "label", Param: "label", Info: "label for the test"},

	// Advanced tab
	&Option{Flag: "onload", Name: "stopAtDocumentComplete", Short: "i", Wire: "web10", Kind: KindFlag, Info: "stop test at document complete. typically, tests run until all activity stops"},
	&Option{Flag: "noscript", Name: "disableJavaScript", Short: "S", Wire: "noscript", Kind: KindFlag, Info: "disable JavaScript (IE, Chrome, Firefox)"},
	&Option{Flag: "clearcerts", Name: "clearCerts", Short: "C", Wire: "clearcerts", Kind: KindFlag, Info: "clear SSL certificate caches"},
	&Option{Flag: "ignoressl", Name: "ignoreSSL", Short: "R", Wire: "ignoreSSL", Kind: KindFlag, Info: "ignore SSL certificate errors, e.g. name mismatch, self-signed certificates, etc"},
	&Option{Flag: "standards", Name: "disableCompatibilityView", Short: "T", Wire: "standards", Kind: KindFlag, Info: "forces all pages to load in standards mode (IE only)"},
	&Option{Flag: "tcpdump", Name: "tcpDump", Short: "u", Wire: "tcpdump", Kind: KindFlag, Info: "capture network packet trace (tcpdump)"},
	&Option{Flag: "bodies", Name: "saveResponseBodies", Short: "O", Wire: "bodies", Kind: KindFlag, Info: "save response bodies for text resources"},
	&Option{Flag: "keepua", Name: "keepOriginalUserAgent", Short: "K", Wire: "keepua", Kind: KindFlag, Info: "do not add PTST to the original browser User Agent string"},
	&Option{Flag: "dom", Name: "domElement", Short: "m", Wire: "domelement", Param: "element", Info: "DOM element to record for sub-measurement"},
	&Option{Flag: "duration", Name: "minimumDuration", Short: "N", Wire: "time", Param: "seconds", Info: "minimum test duration in seconds"},
	&Option{Flag: "tester", Name: "tester", Short: "E", Wire: "tester", Param: "name", Info: "run the test on a specific PC (name must match exactly or the test will not run)"},

	// Chrome tab
	&Option{Flag: "mobile", Name: "emulateMobile", Short: "W", Wire: "mobile", Kind: KindFlag, Info: "(experimental) emulate mobile browser: Chrome mobile user agent, 640x960 screen, 2x scaling and fixed viewport (Chrome only)"},
	&Option{Flag: "device", Name: "device", Wire: "mobileDevice", Param: "string", Info: "device name from mobile_devices.ini to use for mobile emulation (only when mobile=1 is specified to enable emulation and only for Chrome)"},
	&Option{Flag: "timeline", Name: "timeline", Short: "M", Wire: "timeline", Kind: KindFlag, Info: "capture Developer Tools Timeline (Chrome only)"},
	&Option{Flag: "callstack", Name: "timelineCallStack", Short: "J", Wire: "timelineStack", Param: "depth", Valid: reCallStack, Info: "set between 1-5 to include the JS call stack. must be used in conjunction with timeline (increases overhead) (Chrome only)"},
	&Option{Flag: "chrometrace", Name: "chromeTrace", Short: "q", Wire: "trace", Kind: KindFlag, Info: "capture chrome trace (about://tracing) (Chrome only)"},
	&Option{Flag: "tracecategories", Name: "traceCategories", Wire: "traceCategories", Param: "categories", Info: "trace categories (when chrometrace enabled) (Chrome only)"},
	&Option{Flag: "netlog", Name: "netLog", Short: "G", Wire: "netlog", Kind: KindFlag, Info: "capture Network Log (Chrome only)"},
	&Option{Flag: "datareduction", Name: "dataReduction", Short: "Q", Wire: "dataReduction", Kind: KindFlag, Info: "enable data reduction on Chrome 34+ Android (Chrome only)"},
	&Option{Flag: "useragent", Name: "userAgent", Short: "x", Wire: "uastring", Param: "string", Info: "custom user agent string (Chrome only)"},
	&Option{Flag: "cmdline", Name: "commandLine", Short: "X", Wire: "cmdline", Param: "switches", Info: "use a list of custom command line switches (Chrome only)"},
	&Option{Flag: "lighthouse", Name: "lighthouse", Wire: "lighthouse", Kind: KindFlag, Info: "perform lighthouse test (Chrome only, Linux agent only)"},

	// Auth tab
	&Option{Flag: "login", Name: "login", Short: "g", Wire: "login", Param: "username", Info: "username for authenticating tests (http authentication)"},
	&Option{Flag: "password", Name: "password", Short: "w", Wire: "password", Param: "password", Info: "password for authenticating tests (http authentication)"},

	// Script tab
	&Option{Flag: "sensitive", Name: "sensitive", Short: "t", Wire: "sensitive", Kind: KindFlag, Info: "discard script and http headers in the result"},
	&Option{Flag: "noheaders", Name: "disableHTTPHeaders", Short: "H", Wire: "noheaders", Kind: KindFlag, Info: "disable saving of the http headers (as well as browser status messages and CPU utilization)"},

	// Block and SPOF tabs
	&Option{Flag: "block", Name: "block", Short: "b", Wire: "block", Kind: KindList, Param: "urls", Info: "space-delimited list of urls to block (substring match)"},
	&Option{Flag: "spof", Name: "spof", Short: "Z", Wire: "spof", Kind: KindList, Param: "domains", Info: "space-delimited list of domains to simulate failure by re-routing to blackhole.webpagetest.org to silently drop all requests"},

	// Custom tab
	&Option{Flag: "custom", Name: "customMetrics", Short: "c", Wire: "custom", Param: "script", Info: "execute arbitrary JavaScript at the end of a test to collect custom metrics"},

	// API only settings
	&Option{Flag: "authtype", Name: "authenticationType", Short: "a", Wire: "authType", Param: "type", Info: "type of authentication: 0 = Basic, 1 = SNS [0]"},
	&Option{Flag: "notify", Name: "notifyEmail", Short: "n", Wire: "notify", Param: "e-mail", Info: "e-mail address to notify with the test results"},
	&Option{Flag: "pingback", Name: "pingback", Short: "B", Wire: "pingback", Param: "url", Info: `URL to ping when the test is complete (the test ID will be passed as an "id" parameter)`},
	&Option{Flag: "bwdown", Name: "bandwidthDown", Short: "D", Wire: "bwDown", Param: "bandwidth", Info: "download bandwidth in Kbps (used when specifying a custom connectivity profile)"},
	&Option{Flag: "bwup", Name: "bandwidthUp", Short: "U", Wire: "bwUp", Param: "bandwidth", Info: "upload bandwidth in Kbps (used when specifying a custom connectivity profile)"},
	&Option{Flag: "latency", Name: "latency", Short: "Y", Wire: "latency", Param: "time", Info: "first-hop Round Trip Time in ms (used when specifying a custom connectivity profile)"},
	&Option{Flag: "plr", Name: "packetLossRate", Short: "P", Wire: "plr", Param: "percentage", Info: "packet loss rate - percent of packets to drop (used when specifying a custom connectivity profile)"},
	&Option{Flag: "noopt", Name: "disableOptimization", Short: "z", Wire: "noopt", Kind: KindFlag, Info: "disable optimization checks (for faster testing)"},
	&Option{Flag: "noimages", Name: "disableScreenshot", Short: "I", Wire: "noimages", Kind: KindFlag, Info: "disable screen shot capturing"},
	&Option{Flag: "full", Name: "fullResolutionScreenshot", Short: "F", Wire: "pngss", Kind: KindFlag, Info: "save a full-resolution version of the fully loaded screen shot as a PNG"},
	&Option{Flag: "jpeg", Name: "jpegQuality", Short: "j", Wire: "iq", Param: "level", Info: "jpeg compression level (30-100) for the screen shots and video capture"},
	&Option{Flag: "medianvideo", Name: "medianVideo", Short: "A", Wire: "mv", Kind: KindFlag, Info: "store the video from the median run when capturing video is enabled"},
	&Option{Flag: "htmlbody", Name: "htmlBody", Wire: "htmlbody", Kind: KindFlag, Info: "save the content of only the base HTML response"},
	&Option{Flag: "tsview", Name: "tsView", Wire: "tsview_id", Param: "id", Info: "test name to use when submitting results to tsviewdb (for private instances that have integrated with tsviewdb)"},
	&Option{Flag: "tsviewconfigs", Name: "tsViewConfigs", Wire: "tsview_configs", Param: "string", Info: "configs to use when submitting results to tsviewdb (for private instances that have integrated with tsviewdb)"},
	&Option{Flag: "affinity", Name: "affinity", Wire: "affinity", Param: "string", Info: "string to hash test to a specific test agent. tester will be picked by index among available testers"},
	&Option{Flag: "priority", Name: "priority", Wire: "priority", Param: "number", Valid: rePriority, Info: "change test priority (0-9) [enforced by API key, otherwise 5]"},

	// Undocumented/experimental
	&Option{Flag: "noads", Name: "blockAds", Wire: "blockads", Kind: KindFlag, Info: "block ads defined by adblockrules.org"},
	&Option{Flag: "continuous", Name: "continuousVideoCapture", Wire: "continuousVideo", Kind: KindFlag, Info: "capture video continuously (unstable/experimental, may cause tests to fail)"},
	&Option{Flag: "spdy3", Name: "forceSpdy3", Wire: "spdy3", Kind: KindFlag, Info: "force SPDY version 3 (Chrome only)"},
	&Option{Flag: "swrender", Name: "forceSoftwareRendering", Wire: "swrender", Kind: KindFlag, Info: "force software rendering, disable GPU acceleration (Chrome only)"},

	// Synchronous tests
	&Option{Flag: "poll", Name: "pollResults", Param: "interval", Optional: true, Info: "poll for results after test is scheduled at every <interval> seconds [5]"},
	&Option{Flag: "wait", Name: "waitResults", Param: "hostname:port", Optional: true, Info: "wait for test results informed by agent once complete listening on <hostname>:<port> [hostname:first port available above 8000]"},
	&Option{Flag: "timeout", Name: "timeout", Param: "seconds", Info: "timeout for polling and waiting results [no timeout]"},
)

// Request holds the request echo option
var Request = newNamespace("request",
	&Option{Flag: "request", Name: "requestId", Short: "e", Wire: "r", Param: "id", Info: "echo request ID, useful to track asynchronous requests"},
)

// Run selects a run and view of a test
var Run = newNamespace("run",
	&Option{Flag: "run", Name: "run", Short: "r", Param: "number", Info: "which run number on a multiple runs test [1]"},
	&Option{Flag: "cached", Name: "repeatView", Short: "c", Kind: KindFlag, Info: "get the Repeat View (cached view) instead of default First View (primed cache)"},
)

// Image controls how image payloads are returned
var Image = newNamespace("image",
	&Option{Flag: "thumbnail", Name: "thumbnail", Short: "t", Kind: KindFlag, Info: "get the thumbnail of actual image"},
	&Option{Flag: "uri", Name: "dataURI", Short: "u", Kind: KindFlag, Info: "return the base64 string representation (inline) of actual image"},
)

// Screenshot selects which screenshot to fetch
var Screenshot = newNamespace("screenshot",
	&Option{Flag: "full", Name: "fullResolution", Short: "f", Kind: KindFlag, Info: "get full resolution screenshot in PNG format if available"},
	&Option{Flag: "render", Name: "startRender", Short: "n", Kind: KindFlag, Info: "get the page screenshot at the Start Render point (i.e.: when something was first displayed on screen)"},
	&Option{Flag: "complete", Name: "documentComplete", Short: "p", Kind: KindFlag, Info: "get the page screenshot at the Document Complete point (i.e.: when window.onload was fired)"},
)

// Results shapes the results payload and the local assertions on it
var Results = newNamespace("results",
	&Option{Flag: "breakdown", Name: "breakDown", Short: "b", Wire: "breakdown", Kind: KindFlag, Info: "include the breakdown of requests and bytes by mime type"},
	&Option{Flag: "domains", Name: "domains", Short: "D", Wire: "domains", Kind: KindFlag, Info: "include the breakdown of requests and bytes by domain"},
	&Option{Flag: "pagespeed", Name: "pageSpeed", Short: "p", Wire: "pagespeed", Kind: KindFlag, Info: "include the PageSpeed score in the response (may be slower)"},
	&Option{Flag: "requests", Name: "requests", Short: "R", Wire: "requests", Kind: KindFlag, Info: "include the request data in the response (slower and results in much larger responses)"},
	&Option{Flag: "median", Name: "medianMetric", Short: "m", Wire: "medianMetric", Param: "metric", Info: "set the metric used to calculate median for multiple runs tests [loadTime]"},
	&Option{Flag: "medianrun", Name: "medianRun", Wire: "medianRun", Param: "metric", Info: "set the run used for median for multiple runs tests [median]"},
	&Option{Flag: "specs", Name: "specs", Short: "S", Param: "json_or_file", Info: "set the specs for performance test suite"},
	&Option{Flag: "reporter", Name: "reporter", Short: "r", Param: "name", Valid: reReporter, Info: "set performance test suite reporter output: [dot]|spec|tap|xunit|list|progress|min|nyan|landing|json|doc|markdown|teamcity"},
)

// Waterfall controls waterfall chart rendering
var Waterfall = newNamespace("waterfall",
	&Option{Flag: "type", Name: "chartType", Short: "T", Wire: "type", Param: "chart", Info: "set the chart type: waterfall or connection [waterfall]"},
	&Option{Flag: "mime", Name: "colorByMime", Short: "M", Wire: "mime", Kind: KindFlag, Info: "set chart coloring by MIME type [false]"},
	&Option{Flag: "width", Name: "chartWidth", Short: "w", Wire: "width", Param: "px", Info: "chart image width in px (300-2000) [930]"},
	&Option{Flag: "max", Name: "maxTime", Short: "m", Wire: "max", Param: "seconds", Info: "set maximum time in seconds [automatic]"},
	&Option{Flag: "requests", Name: "requests", Short: "R", Wire: "requests", Param: "items", Info: "filter requests (e.g.:1,2,3,4-9,8) [all]"},
	&Option{Flag: "nocpu", Name: "noCPU", Short: "C", Wire: "cpu", Kind: KindFlag, Invert: true, Info: "hide CPU utilization [false]"},
	&Option{Flag: "nobandwidth", Name: "noBandwidth", Short: "b", Wire: "bw", Kind: KindFlag, Invert: true, Info: "hide bandwidth utilization [false]"},
	&Option{Flag: "noellipsis", Name: "noEllipsis", Short: "i", Wire: "dots", Kind: KindFlag, Invert: true, Info: "hide ellipsis (...) for missing items [false]"},
	&Option{Flag: "nolabels", Name: "noLabels", Short: "l", Wire: "labels", Kind: KindFlag, Invert: true, Info: "hide labels for requests (URL) [false]"},
)

// APIKey carries the per-call API key
var APIKey = newNamespace("apikey",
	&Option{Flag: "key", Name: "key", Short: "k", Wire: "k", Param: "api_key", Info: "API key (if assigned). Contact the WebPageTest server administrator for a key if required"},
)

// Video controls video creation
var Video = newNamespace("video",
	&Option{Flag: "end", Name: "comparisonEndPoint", Short: "e", Wire: "end", Param: "end_point", Valid: reVideoEnd, Info: "frame comparison end point: [visual]=visually complete | all=last change | doc=document complete | full=fully loaded"},
)

// Response selects a request's response body
var Response = newNamespace("response",
	&Option{Flag: "request", Name: "request", Short: "R", Wire: "request", Param: "number", Info: "the request number [1]"},
)

// Listen configures TLS for the local proxy server
var Listen = newNamespace("listen",
	&Option{Flag: "key", Name: "key", Short: "k", Param: "file", Info: "private key file to use for SSL"},
	&Option{Flag: "cert", Name: "cert", Short: "c", Param: "file", Info: "public x509 certificate file to use for SSL"},
)
