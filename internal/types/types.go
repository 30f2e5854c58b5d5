package types

import "time"

// TLSConfig configures the client side of TLS connections to the remote service
type TLSConfig struct {
	CertFile           string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile            string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	CAFile             string `json:"caFile,omitempty" yaml:"caFile,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// CallLog records one remote API call
type CallLog struct {
	ID           int64     `json:"id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Command      string    `json:"command"`
	URL          string    `json:"url"`
	Status       int       `json:"status"`
	Duration     int64     `json:"duration"` // milliseconds
	ResponseSize int       `json:"responseSize"`
	DryRun       bool      `json:"dryRun,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// ListenInfo describes a local HTTP listener started on behalf of the caller
type ListenInfo struct {
	Protocol string `json:"protocol"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
	URL      string `json:"url"`
}
