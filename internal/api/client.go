package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"amequeue/internal/services"
)

const clientComponent = "api-client"

// Client talks to a running daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon listening on bind, which may be a
// host:port pair or a full URL.
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		if strings.HasPrefix(base, ":") {
			base = "127.0.0.1" + base
		}
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var out DaemonStatus
	if err := c.do(ctx, "status", http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs returns every registered job in enqueue order.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var out JobListResponse
	if err := c.do(ctx, "list jobs", http.MethodGet, "/api/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob returns one job.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var out JobResponse
	if err := c.do(ctx, "get job", http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// Enqueue queues a new encode job.
func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error) {
	var out JobResponse
	if err := c.do(ctx, "enqueue", http.MethodPost, "/api/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

// AbortJob asks the daemon to abort a job.
func (c *Client) AbortJob(ctx context.Context, id string) (*Job, error) {
	var out JobResponse
	if err := c.do(ctx, "abort job", http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/abort", nil, &out); err != nil {
		return nil, err
	}
	return &out.Job, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return services.Wrap(services.ErrValidation, clientComponent, operation, "encode request", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, clientComponent, operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, clientComponent, operation, "daemon did not answer", err)
		}
		return services.Wrap(services.ErrTransport, clientComponent, operation, "is the daemon running?", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return services.Wrap(services.ErrTransport, clientComponent, operation, "read response", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		message := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		return services.Wrap(markerForStatus(resp.StatusCode), clientComponent, operation,
			fmt.Sprintf("daemon returned %d: %s", resp.StatusCode, message), nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrDecode, clientComponent, operation, "decode response", err)
	}
	return nil
}

func markerForStatus(code int) error {
	switch code {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return services.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.ErrConfiguration
	default:
		return services.ErrRemote
	}
}
