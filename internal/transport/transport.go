// Package transport provides HTTP round trippers for the Bedrock client.
package transport

import (
	"log"
	"net/http"
	"time"
)

// LoggingTransport logs one line per request with its status and latency
type LoggingTransport struct {
	base   http.RoundTripper
	logger *log.Logger
}

// WithLogging wraps base, defaulting to http.DefaultTransport. A nil logger uses the standard logger.
func WithLogging(base http.RoundTripper, logger *log.Logger) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingTransport{base: base, logger: logger}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		t.logger.Printf("%s %s%s failed after %s: %v", req.Method, req.URL.Host, req.URL.Path, elapsed, err)
		return resp, err
	}

	// Bedrock reports its request ID in this header
	requestID := resp.Header.Get("x-amzn-requestid")
	t.logger.Printf("%s %s%s -> %d in %s (request id %q)",
		req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, elapsed, requestID)
	return resp, nil
}

// NewClient returns an HTTP client whose requests are logged
func NewClient(logger *log.Logger) *http.Client {
	return &http.Client{
		Transport: WithLogging(nil, logger),
	}
}
