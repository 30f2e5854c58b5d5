package decode

import (
	"regexp"
	"strings"
)

var reLineBreak = regexp.MustCompile(`[\n\r]+`)

// RequestDataHeaders names the columns of the tab-separated request data
// file. Blank names mark columns that are discarded.
var RequestDataHeaders = []string{
	"", "", "", "ip_addr", "method", "host", "url", "responseCode", "load_ms",
	"ttfb_ms", "load_start", "bytesOut", "bytesIn", "objectSize", "", "",
	"expires", "cacheControl", "contentType", "contentEncoding", "type",
	"socket", "", "", "", "", "", "", "", "", "", "", "", "", "",
	"score_cache", "score_cdn", "score_gzip", "score_cookies",
	"score_keep-alive", "", "score_minify", "score_combine", "score_compress",
	"score_etags", "", "is_secure", "dns_ms", "connect_ms", "ssl_ms",
	"gzip_total", "gzip_save", "minify_total", "minify_save", "image_total",
	"image_save", "cache_time", "", "", "", "cdn_provider", "dns_start",
	"dns_end", "connect_start", "connect_end", "ssl_start", "ssl_end",
	"initiator", "initiator_line", "initiator_column",
}

// CSV decodes comma-separated text whose first row is the header
func CSV(data []byte) (any, error) {
	return delimited(",", nil, data), nil
}

// TSV returns a decoder for tab-separated text with fixed column names
func TSV(headers []string) Decoder {
	return func(data []byte) (any, error) {
		return delimited("\t", headers, data), nil
	}
}

// delimited builds a columnar view: header name to the list of column values
func delimited(delim string, headers []string, data []byte) map[string]any {
	columns := map[string][]any{}
	table := map[string]any{}
	if len(data) == 0 {
		return table
	}

	text := reLineBreak.ReplaceAllString(string(data), "\n")
	text = strings.TrimSuffix(text, "\n")
	rows := strings.Split(text, "\n")

	start := 0
	if headers == nil {
		headers = strings.Split(rows[0], delim)
		start = 1
	}

	// Files that carry their own header block repeat it on the second row
	if first := strings.Split(rows[0], delim); len(first) > 3 && first[3] == "IP Address" {
		start = 2
	}

	for _, h := range headers {
		if h != "" {
			columns[h] = []any{}
		}
	}

	if start > len(rows) {
		start = len(rows)
	}
	for _, row := range rows[start:] {
		for i, value := range strings.Split(row, delim) {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			columns[headers[i]] = append(columns[headers[i]], ParseNumber(value))
		}
	}
	for h, values := range columns {
		table[h] = values
	}
	return table
}
