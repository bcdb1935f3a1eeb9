// Package callback carries asynchronous lambda outcomes back to the client
// that asked for them: an HTTP endpoint receiving one-way LambdaResponse
// deliveries, a subscriber hub fanning them out, and the client used by the
// edge side to post them.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ferry/internal/core/domain"
)

const route = "/v1/callback"

// Hub fans received responses out to subscribers. Subscribers with a full
// buffer miss deliveries; the fabric treats a lost asynchronous outcome as
// acceptable, so drops are counted, not retried.
type Hub struct {
	subscribers *xsync.Map[string, chan domain.LambdaResponse]
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: xsync.NewMap[string, chan domain.LambdaResponse](),
		logger:      logger,
	}
}

// Subscribe registers a buffered delivery channel. Cancel with Unsubscribe.
func (h *Hub) Subscribe(buffer int) (string, <-chan domain.LambdaResponse) {
	if buffer < 1 {
		buffer = 1
	}
	id := strconv.FormatUint(h.nextID.Add(1), 10)
	ch := make(chan domain.LambdaResponse, buffer)
	h.subscribers.Store(id, ch)
	return id, ch
}

func (h *Hub) Unsubscribe(id string) {
	if ch, ok := h.subscribers.LoadAndDelete(id); ok {
		close(ch)
	}
}

// Publish hands a response to every subscriber without blocking.
func (h *Hub) Publish(rep domain.LambdaResponse) {
	h.subscribers.Range(func(_ string, ch chan domain.LambdaResponse) bool {
		select {
		case ch <- rep:
		default:
			h.dropped.Add(1)
			h.logger.Warn("callback subscriber buffer full, dropping delivery")
		}
		return true
	})
}

// Dropped reports how many deliveries were lost to slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Server receives one-way LambdaResponse deliveries.
type Server struct {
	hub    *Hub
	logger *slog.Logger
}

func NewServer(hub *Hub, logger *slog.Logger) *Server {
	return &Server{hub: hub, logger: logger}
}

// Register attaches the callback route to a mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc(route, s.handle)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var rep domain.LambdaResponse
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Debug("async response received", "response", rep.String())
	s.hub.Publish(rep)
	w.WriteHeader(http.StatusOK)
}

// Client posts asynchronous outcomes to a callback endpoint.
type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: 10 * time.Second}}
}

// Deliver posts the response once. Callers log and drop on failure; the
// client on the other end has lost that particular asynchronous outcome.
func (c *Client) Deliver(ctx context.Context, endpoint string, rep domain.LambdaResponse) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+endpoint+route, bytes.NewReader(body))
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
		return fmt.Errorf("callback endpoint %s returned status %d", endpoint, resp.StatusCode)
	}
	return nil
}
