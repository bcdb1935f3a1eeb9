package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
)

// Client talks to a remote state server.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(endpoint string, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Get fetches a state. A missing state is not an error.
func (c *Client) Get(ctx context.Context, name string) ([]byte, bool, error) {
	msg, status, err := c.do(ctx, http.MethodGet, name, nil)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if msg.RetCode != domain.RetCodeOK {
		c.logger.Error("error when retrieving state",
			"state", name, "endpoint", c.endpoint, "retcode", msg.RetCode)
		return nil, false, &domain.RemoteError{RetCode: msg.RetCode}
	}
	return msg.Content, true, nil
}

// Put stores a state.
func (c *Client) Put(ctx context.Context, name string, content []byte) error {
	msg, _, err := c.do(ctx, http.MethodPut, name, &stateMessage{Name: name, Content: content})
	if err != nil {
		return err
	}
	if msg.RetCode != domain.RetCodeOK {
		c.logger.Error("error when updating state",
			"state", name, "endpoint", c.endpoint, "retcode", msg.RetCode)
		return &domain.RemoteError{RetCode: msg.RetCode}
	}
	return nil
}

// Del removes a state, reporting whether it existed.
func (c *Client) Del(ctx context.Context, name string) (bool, error) {
	msg, status, err := c.do(ctx, http.MethodDelete, name, nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if msg.RetCode != domain.RetCodeOK {
		c.logger.Error("error when deleting state",
			"state", name, "endpoint", c.endpoint, "retcode", msg.RetCode)
		return false, &domain.RemoteError{RetCode: msg.RetCode}
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, method, name string, payload *stateMessage) (stateMessage, int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return stateMessage{}, 0, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://"+c.endpoint+routePrefix+name, body)
	if err != nil {
		return stateMessage{}, 0, &domain.TransportError{Destination: c.endpoint, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return stateMessage{}, 0, &domain.TransportError{Destination: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	var msg stateMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return stateMessage{}, resp.StatusCode, &domain.TransportError{
			Destination: c.endpoint,
			Err:         fmt.Errorf("cannot decode state response: %w", err),
		}
	}
	return msg, resp.StatusCode, nil
}
