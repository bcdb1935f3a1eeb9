package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thushan/ferry/internal/core/ports"
)

// HTTPController talks to the fabric controller over HTTP. All calls are
// best-effort; the processor logs failures and moves on.
type HTTPController struct {
	endpoint string
	http     *http.Client
}

func NewHTTPController(endpoint string) *HTTPController {
	return &HTTPController{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPController) AnnounceProcessor(ctx context.Context, lambdaEndpoint, commandsEndpoint string) error {
	return c.post(ctx, "/v1/controller/processors", map[string]string{
		"lambda_endpoint":   lambdaEndpoint,
		"commands_endpoint": commandsEndpoint,
	})
}

func (c *HTTPController) AnnounceComputer(ctx context.Context, endpoint string, lambdas []string) error {
	return c.post(ctx, "/v1/controller/computers", map[string]any{
		"endpoint": endpoint,
		"lambdas":  lambdas,
	})
}

func (c *HTTPController) RemoveComputer(ctx context.Context, endpoint string) error {
	return c.post(ctx, "/v1/controller/computers/remove", map[string]string{
		"endpoint": endpoint,
	})
}

func (c *HTTPController) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("controller at %s returned status %d", c.endpoint, resp.StatusCode)
	}
	return nil
}

var _ ports.Controller = (*HTTPController)(nil)
