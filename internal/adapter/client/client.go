// Package client provides the outbound lambda clients: the single-destination
// HTTP client, the per-destination bounded pool, and the multi-destination
// racing client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

const lambdaPath = "/v1/lambda"

// HTTPClient invokes lambdas on a single destination over HTTP. One request
// at a time; the pool guarantees exclusive use.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

// Options tunes the transport of new clients.
type Options struct {
	ConnectionTimeout time.Duration
	ResponseTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		ConnectionTimeout: 5 * time.Second,
		ResponseTimeout:   60 * time.Second,
	}
}

// New creates a client towards the given destination endpoint (host:port).
func New(endpoint string, opts Options) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.ResponseTimeout,
	}
	if opts.ConnectionTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: opts.ConnectionTimeout}).DialContext
	}
	return &HTTPClient{
		endpoint: endpoint,
		http: &http.Client{
			Transport: transport,
		},
	}
}

// RunLambda posts the request and decodes the response. A transport error is
// wrapped as a TransportError; a decoded response is returned as-is, OK or
// not.
func (c *HTTPClient) RunLambda(ctx context.Context, req domain.LambdaRequest, dry bool) (domain.LambdaResponse, error) {
	req.Dry = dry

	body, err := json.Marshal(req)
	if err != nil {
		return domain.LambdaResponse{}, fmt.Errorf("cannot encode lambda request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+c.endpoint+lambdaPath, bytes.NewReader(body))
	if err != nil {
		return domain.LambdaResponse{}, &domain.TransportError{Destination: c.endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.LambdaResponse{}, &domain.TransportError{Destination: c.endpoint, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, httpResp.Body)
		_ = httpResp.Body.Close()
	}()

	if httpResp.StatusCode != http.StatusOK {
		return domain.LambdaResponse{}, &domain.TransportError{
			Destination: c.endpoint,
			Err:         fmt.Errorf("unexpected status %d", httpResp.StatusCode),
		}
	}

	var resp domain.LambdaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return domain.LambdaResponse{}, &domain.TransportError{Destination: c.endpoint, Err: err}
	}
	return resp, nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

var _ ports.LambdaClient = (*HTTPClient)(nil)
