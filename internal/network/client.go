package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"go-offline-proxy/internal/config"
	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/metrics"
	"go-offline-proxy/internal/models"
)

// ErrOffline wraps every failure to reach the upstream: transport errors,
// timeouts and an open circuit breaker.
var ErrOffline = errors.New("upstream unreachable")

// ErrBodyTooLarge is returned when an upstream response exceeds maxBodySize.
// The upstream was reached, so it is not an ErrOffline.
var ErrBodyTooLarge = errors.New("upstream response too large")

// Ensure Client implements interfaces.Fetcher
var _ interfaces.Fetcher = (*Client)(nil)

// maxBodySize caps buffered upstream responses
const maxBodySize = 32 << 20

// hopHeaders are not forwarded between client and upstream
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client fetches requests from the upstream origin behind a circuit breaker
type Client struct {
	upstream *url.URL
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewClient creates an upstream client for upstreamURL
func NewClient(upstreamURL string, timeout time.Duration, cfg config.BreakerConfig, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(upstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", upstreamURL)
	}

	c := &Client{
		upstream: u,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrBodyTooLarge)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetBreakerState(name, int(to))
		},
	})
	return c, nil
}

// Fetch sends req to the upstream and buffers the response into a snapshot.
// HTTP error statuses are returned as snapshots; only transport failures are errors.
func (c *Client) Fetch(ctx context.Context, req *http.Request) (*models.Snapshot, error) {
	out, err := c.outgoing(ctx, req)
	if err != nil {
		return nil, err
	}

	timer := metrics.TimeUpstream()
	defer timer()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(out)
	})
	if errors.Is(err, ErrBodyTooLarge) {
		metrics.RecordUpstream("body_too_large")
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.RequestURI(), err)
	}
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.RecordUpstream("breaker_open")
		default:
			metrics.RecordUpstream("network_error")
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrOffline, req.Method, req.URL.RequestURI(), err)
	}

	snap := result.(*models.Snapshot)
	if snap.OK() {
		metrics.RecordUpstream("ok")
	} else {
		metrics.RecordUpstream("http_error")
	}
	return snap, nil
}

func (c *Client) roundTrip(out *http.Request) (*models.Snapshot, error) {
	resp, err := c.http.Do(out)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodySize)
	}

	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del("Content-Length")

	return &models.Snapshot{
		Method:   out.Method,
		URL:      out.URL.RequestURI(),
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		StoredAt: time.Now(),
	}, nil
}

// outgoing rewrites an intercepted request onto the upstream origin
func (c *Client) outgoing(ctx context.Context, req *http.Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.Resolve(req.URL.RequestURI())
	out, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	out.Header = req.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	// Let the transport negotiate and transparently decode compression
	out.Header.Del("Accept-Encoding")
	return out, nil
}

// Resolve returns the absolute upstream URL of an origin-relative request URI
func (c *Client) Resolve(requestURI string) string {
	base := strings.TrimSuffix(c.upstream.String(), "/")
	if !strings.HasPrefix(requestURI, "/") {
		requestURI = "/" + requestURI
	}
	return base + requestURI
}

// Probe checks that the upstream answers path. Probes bypass the circuit breaker.
func (c *Client) Probe(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: probe status %d", ErrOffline, resp.StatusCode)
	}
	return nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}
