package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mweidner/JadeFrame/internal/pkg/env"
	"github.com/mweidner/JadeFrame/internal/pkg/metrics"
)

const defaultComputeBaseURL = "https://queue.jadecompute.ai"

// Name tags jobs with the compute provider that runs them.
const Name = "jadecompute"

// Client talks to the external GPU compute provider's queue API. All calls
// carry bounded timeouts; no call ever runs inside a database transaction.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// SubmitResponse is the provider's acknowledgment of a queued request.
type SubmitResponse struct {
	RequestID string `json:"request_id"`
}

// StatusResponse carries the provider's raw status body. Status is the
// provider's own vocabulary; callers normalize it before acting. Raw is kept
// for defensive artifact extraction since the output shape varies by
// endpoint version.
type StatusResponse struct {
	Status string
	Raw    []byte
}

// NewClientFromEnv builds a client from operator configuration.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: strings.TrimRight(env.GetEnv("COMPUTE_API_BASE_URL", defaultComputeBaseURL), "/"),
		APIKey:  strings.TrimSpace(env.GetEnv("COMPUTE_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit queues a generation request on the given endpoint and returns the
// provider's request id.
func (c *Client) Submit(ctx context.Context, endpoint string, input map[string]interface{}) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal provider input: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.BaseURL, endpoint), bytes.NewReader(body), "submit")
	if err != nil {
		return "", err
	}

	// Endpoint versions disagree on the id field name.
	for _, path := range []string{"request_id", "id"} {
		if id := gjson.GetBytes(raw, path).String(); id != "" {
			return id, nil
		}
	}
	return "", errors.New("provider response contained no request id")
}

// GetStatus queries the remote status of a previously submitted request.
// Safe to call repeatedly; it has no side effects beyond the read.
func (c *Client) GetStatus(ctx context.Context, endpoint, requestID string) (*StatusResponse, error) {
	url := fmt.Sprintf("%s/%s/requests/%s/status", c.BaseURL, endpoint, requestID)
	raw, err := c.do(ctx, http.MethodGet, url, nil, "status")
	if err != nil {
		return nil, err
	}

	status := gjson.GetBytes(raw, "status").String()
	if status == "" {
		return nil, errors.New("provider status response contained no status field")
	}
	return &StatusResponse{Status: status, Raw: raw}, nil
}

// GetResult fetches the full output document of a finished request. Some
// endpoint versions inline the output in the status body, others only serve
// it here.
func (c *Client) GetResult(ctx context.Context, endpoint, requestID string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/requests/%s", c.BaseURL, endpoint, requestID)
	return c.do(ctx, http.MethodGet, url, nil, "result")
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, call string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.Registry().ProviderLatency.WithLabelValues(call, "transport_error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("compute provider %s call: %w", call, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	metrics.Registry().ProviderLatency.WithLabelValues(call, fmt.Sprintf("%d", resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("compute provider %s call failed: status=%d body=%s", call, resp.StatusCode, truncate(string(raw), 200))
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
