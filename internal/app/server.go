package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thushan/ferry/internal/adapter/stats"
	"github.com/thushan/ferry/internal/config"
	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/logger"
	"github.com/thushan/ferry/pkg/pool"
)

const statsPushPeriod = 2 * time.Second

// LambdaProcessor serves one lambda request; satisfied by the processor and
// the computer.
type LambdaProcessor interface {
	Process(ctx context.Context, req domain.LambdaRequest) domain.LambdaResponse
}

type requestContext struct {
	id string
}

func (r *requestContext) Reset() {
	r.id = ""
}

// Server is the HTTP surface of a fabric node.
type Server struct {
	cfg       *config.Config
	processor LambdaProcessor
	collector *stats.Collector
	logger    logger.StyledLogger
	mux       *http.ServeMux
	http      *http.Server
	upgrader  websocket.Upgrader
	contexts  *pool.Pool[*requestContext]
}

func NewServer(cfg *config.Config, processor LambdaProcessor, collector *stats.Collector, styled logger.StyledLogger) *Server {
	s := &Server{
		cfg:       cfg,
		processor: processor,
		collector: collector,
		logger:    styled,
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		contexts: pool.NewLitePool(func() *requestContext {
			return &requestContext{}
		}),
	}

	if processor != nil {
		s.mux.HandleFunc("/v1/lambda", s.handleLambda)
	}
	s.mux.HandleFunc("/internal/health", s.handleHealth)
	if cfg.Metrics.Enabled && collector != nil {
		s.mux.Handle("/metrics", collector.MetricsHandler())
		s.mux.HandleFunc("/ws/stats", s.handleStatsFeed)
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Mux exposes the underlying mux so the roles can register their routes.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Start serves until the context is cancelled, then drains within the
// shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithEndpoint("listening on", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleLambda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rctx := s.contexts.Get()
	defer s.contexts.Put(rctx)
	rctx.id = r.Header.Get("X-Request-ID")
	if rctx.id == "" {
		rctx.id = uuid.NewString()
	}

	var req domain.LambdaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rep := s.processor.Process(r.Context(), req)
	s.logger.Debug("lambda served",
		"request_id", rctx.id, "lambda", req.Name, "retcode", rep.RetCode)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", rctx.id)
	_ = json.NewEncoder(w).Encode(rep)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleStatsFeed pushes the dispatch snapshot to websocket observers.
func (s *Server) handleStatsFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(statsPushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.collector.GetDispatchStats()); err != nil {
				return
			}
		}
	}
}
