package ame

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"amequeue/internal/config"
	"amequeue/internal/logging"
	"amequeue/internal/services"
)

const (
	component = "ame"

	jobPath     = "/job"
	serverPath  = "/server"
	historyPath = "/history"

	// DefaultPort is the web service's listening port when none is configured.
	DefaultPort = 8080

	maxBodyBytes = 4 << 20
)

// HTTPDoer describes the HTTP client used by the gateway.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger attaches a logger; requests are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// WithTimeout bounds each round-trip. Zero leaves requests unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimit paces outgoing requests. A non-positive rate disables pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// Client talks to one encoding service instance.
type Client struct {
	baseURL string
	http    HTTPDoer
	logger  *slog.Logger
	timeout time.Duration
	limiter *rate.Limiter
}

// NewClient builds a client for the service rooted at baseURL, for example
// "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    http.DefaultClient,
		logger:  logging.NewComponentLogger(nil, component),
	}
	if c.baseURL == "" {
		c.baseURL = fmt.Sprintf("http://localhost:%d", DefaultPort)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the gateway section of cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	if cfg == nil {
		return NewClient("", WithLogger(logger))
	}
	return NewClient(cfg.GatewayURL(),
		WithLogger(logger),
		WithTimeout(cfg.GatewayTimeout()),
		WithRateLimit(cfg.Gateway.MaxRequestsPerSecond),
	)
}

// BaseURL returns the service root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitJob posts a manifest to /job. The returned status carries the
// service's verdict; a Rejected or Busy verdict is not an error.
func (c *Client) SubmitJob(ctx context.Context, sub Submission) (*SubmitStatus, error) {
	body, err := BuildManifest(sub)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "submit job", "build manifest", err)
	}
	raw, err := c.do(ctx, "submit job", http.MethodPost, jobPath, body)
	if err != nil {
		return nil, err
	}
	status, err := ParseSubmitResponse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, component, "submit job", "parse response", err)
	}
	return status, nil
}

// JobStatus fetches the state of the job currently occupying the slot.
func (c *Client) JobStatus(ctx context.Context) (*JobStatusSnapshot, error) {
	raw, err := c.do(ctx, "job status", http.MethodGet, jobPath, nil)
	if err != nil {
		return nil, err
	}
	snap, err := ParseJobStatusResponse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, component, "job status", "parse response", err)
	}
	return snap, nil
}

// AbortJob asks the service to stop the job in the slot.
func (c *Client) AbortJob(ctx context.Context) error {
	_, err := c.do(ctx, "abort job", http.MethodDelete, jobPath, nil)
	return err
}

// JobHistory fetches the completed job list.
func (c *Client) JobHistory(ctx context.Context) (*JobHistory, error) {
	raw, err := c.do(ctx, "job history", http.MethodGet, historyPath, nil)
	if err != nil {
		return nil, err
	}
	history, err := ParseHistoryResponse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, component, "job history", "parse response", err)
	}
	return history, nil
}

// ServerStatus fetches the encoding server's status and settings.
func (c *Client) ServerStatus(ctx context.Context) (*ServerInfo, error) {
	raw, err := c.do(ctx, "server status", http.MethodGet, serverPath, nil)
	if err != nil {
		return nil, err
	}
	info, err := ParseServerResponse(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, component, "server status", "parse response", err)
	}
	return info, nil
}

// StartServer asks the web service to launch the encoding server.
func (c *Client) StartServer(ctx context.Context) error {
	_, err := c.do(ctx, "start server", http.MethodPost, serverPath, nil)
	return err
}

// StopServer asks the web service to shut the encoding server down.
func (c *Client) StopServer(ctx context.Context) error {
	_, err := c.do(ctx, "stop server", http.MethodDelete, serverPath, nil)
	return err
}

func (c *Client) do(ctx context.Context, operation, method, path string, body []byte) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, services.Wrap(services.ErrTransport, component, operation, "rate limiter", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, operation, "build request", err)
	}
	req.Header.Set("Accept", "text/xml,application/xml")
	if body != nil {
		req.Header.Set("Content-Type", "text/xml")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		marker := services.ErrTransport
		if ctx.Err() == context.DeadlineExceeded {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, component, operation, method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, operation, "read response", err)
	}
	c.logger.Debug("ame request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)
	if resp.StatusCode/100 != 2 {
		return nil, services.Wrap(services.ErrRemote, component, operation,
			fmt.Sprintf("expected HTTP status 2XX, got %d", resp.StatusCode), nil)
	}
	return raw, nil
}
