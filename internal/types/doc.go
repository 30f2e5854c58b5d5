/*
Package types defines data structures shared across the webpagetest packages.

# Overview

The types package provides shared type definitions for:
  - Client TLS configuration
  - Call log records kept by the history package
  - Local listener descriptions returned to callers

# TLSConfig

Applies to the HTTP client talking to the remote service:
  - Client certificates (mTLS)
  - CA certificates
  - InsecureSkipVerify for private instances with self-signed certificates

# CallLog

One record per remote call:
  - Command name and final URL (API key redacted)
  - Status code, duration and response size
  - Dry-run marker and transport error text

# ListenInfo

Reported when a synchronous test or the proxy server binds a local port:
  - Hostname and port the remote agent should call back
  - Ready-made base URL

# Field Tags

All types use JSON tags for output rendering. The `omitempty` tag keeps
optional fields out of rendered records.
*/
package types
