package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

var (
	checkTimeout = 5 * time.Second
	pingTimeout  = 10 * time.Second
)

// Candidate paths, tried in order until one answers.
var (
	checkPaths = []string{"/health", "/ping", "/", "/api/health"}
	pingPaths  = []string{"/ping", "/health", "/", "/api/ping"}
)

// Probe statuses.
const (
	StatusConnected    = "connected"
	StatusSuccess      = "success"
	StatusTimeout      = "timeout"
	StatusNetworkError = "network_error"
	StatusUnknownError = "unknown_error"
	StatusError        = "error"
)

// ProbeResult reports backend reachability. Any HTTP response counts as
// reachable, whatever its status.
type ProbeResult struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Endpoint   string `json:"endpoint,omitempty"`
	Latency    string `json:"latency,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func (c *Client) probe(ctx context.Context, path string, timeout time.Duration) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetwork(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CheckConnection tries each candidate path with a 5s timeout, then the bare
// base URL, and reports how (or whether) the backend answered.
func (c *Client) CheckConnection(ctx context.Context) ProbeResult {
	for _, path := range checkPaths {
		status, _, err := c.probe(ctx, path, checkTimeout)
		if err != nil {
			continue
		}
		msg := "Backend is reachable via " + path
		if status < 200 || status >= 300 {
			msg = fmt.Sprintf("Backend responded via %s (status: %d)", path, status)
		}
		return ProbeResult{Status: StatusConnected, Message: msg, StatusCode: status, Endpoint: path, Timestamp: timestamp()}
	}

	status, _, err := c.probe(ctx, c.baseURL, checkTimeout)
	switch {
	case err == nil:
		return ProbeResult{Status: StatusConnected, Message: "Backend is reachable (root endpoint)", StatusCode: status, Endpoint: "/", Timestamp: timestamp()}
	case isTimeout(err):
		return ProbeResult{Status: StatusTimeout, Message: "Backend connection timed out after 5 seconds", Timestamp: timestamp()}
	case isNetwork(err):
		return ProbeResult{Status: StatusNetworkError, Message: "Network error - unable to reach backend", Timestamp: timestamp()}
	default:
		return ProbeResult{Status: StatusUnknownError, Message: "Connection error: " + err.Error(), Timestamp: timestamp()}
	}
}

// Ping is CheckConnection with a 10s timeout and a measured latency.
func (c *Client) Ping(ctx context.Context) ProbeResult {
	for _, path := range pingPaths {
		status, latency, err := c.probe(ctx, path, pingTimeout)
		if err != nil {
			continue
		}
		msg := "Backend responding via " + path
		if status < 200 || status >= 300 {
			msg = fmt.Sprintf("Backend responding via %s (status: %d)", path, status)
		}
		return ProbeResult{Status: StatusSuccess, Message: msg, StatusCode: status, Endpoint: path, Latency: formatLatency(latency), Timestamp: timestamp()}
	}

	status, latency, err := c.probe(ctx, c.baseURL, pingTimeout)
	switch {
	case err == nil:
		return ProbeResult{Status: StatusSuccess, Message: "Backend responding (root endpoint)", StatusCode: status, Endpoint: "/", Latency: formatLatency(latency), Timestamp: timestamp()}
	case isTimeout(err):
		return ProbeResult{Status: StatusTimeout, Message: "Backend ping timed out after 10 seconds", Latency: "N/A", Timestamp: timestamp()}
	default:
		return ProbeResult{Status: StatusError, Message: "Ping failed: " + err.Error(), Latency: "N/A", Timestamp: timestamp()}
	}
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
