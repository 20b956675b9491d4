// Package backend delivers normalized inbound messages to the backend webhook.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"wagateway/internal/domain"
	"wagateway/internal/metrics"
)

const webhookPath = "/messages/webhook"

// maxErrorBody bounds how much of a rejected response is kept for logging.
const maxErrorBody = 4 << 10

// Client posts ForwardPayloads to {BaseURL}/messages/webhook. It never retries.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	// HTTPClient overrides the default pooled client (tests).
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newHTTPClient(cfg.Timeout)
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + webhookPath,
		http:     hc,
		logger:   cfg.Logger,
	}
}

// Endpoint returns the full webhook URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Forward delivers payload once. Any network failure or non-2xx response is
// returned as a *domain.DeliveryError.
func (c *Client) Forward(ctx context.Context, payload domain.ForwardPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.BackendLatency.Since(start)
	if err != nil {
		return &domain.DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.DeliveryError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	io.Copy(io.Discard, resp.Body)

	c.logger.Debug("forwarded to backend", "status", resp.StatusCode, "elapsed", time.Since(start))
	return nil
}

// newHTTPClient returns a pooled client for the single backend host.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
