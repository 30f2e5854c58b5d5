/*
Package executor performs calls against the remote WebPageTest API.

# Overview

The executor package provides:
  - Server URL parsing (scheme, host, port, base path)
  - Ordered query URLs, identical between dry runs and live calls
  - GET requests with optional forward proxy
  - gzip, deflate and brotli response bodies
  - Content-type based decoding through the decode package
  - TLS/mTLS configuration

# Dry Runs

A dry run builds the exact URL a live call would request and returns it as
{"url": "..."} without any network activity.

# Forward Proxy

With Call.Proxy set, the request is sent to the proxy with the absolute target
URL as request-target and the target host in the Host header. There is no
CONNECT tunnel, so https targets are fetched by the proxy itself.

# Compression

Text requests advertise "gzip, deflate, br" and the body is inflated according
to Content-Encoding. Binary (image) requests leave negotiation to net/http.

# Error Handling

Errors are categorized as:
  - *APIError for any status other than 200
  - transport errors from net/http, returned unchanged
  - *decode.Error when the body cannot be decoded

# Example Usage

	server, err := executor.ParseServer("https://www.webpagetest.org")
	if err != nil {
		return err
	}

	engine, err := executor.New(server, executor.WithLogger(log))
	if err != nil {
		return err
	}

	res, err := engine.Execute(ctx, executor.Call{
		Command: "status",
		Path:    "testStatus.php",
		Query:   mapping.NewQuery("test", id),
	})

# Thread Safety

An Engine is safe for concurrent use. Every call records one entry in the
optional Recorder and one observation in the metrics package.
*/
package executor
