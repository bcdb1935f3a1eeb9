package state

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

const routePrefix = "/v1/state/"

// stateMessage is the wire payload shared by the state service.
type stateMessage struct {
	RetCode string `json:"retcode"`
	Name    string `json:"name,omitempty"`
	Content []byte `json:"content,omitempty"`
}

// Server exposes a state store over HTTP:
// GET/PUT/DELETE /v1/state/{name}.
type Server struct {
	store  ports.StateStore
	logger *slog.Logger
}

func NewServer(store ports.StateStore, logger *slog.Logger) *Server {
	return &Server{store: store, logger: logger}
}

// Register attaches the state routes to a mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc(routePrefix, s.handle)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, routePrefix)
	if name == "" {
		writeState(w, http.StatusBadRequest, stateMessage{RetCode: "missing state name"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		content, found, err := s.store.Get(r.Context(), name)
		if err != nil {
			s.logger.Error("state get failed", "state", name, "error", err)
			writeState(w, http.StatusInternalServerError, stateMessage{RetCode: err.Error()})
			return
		}
		if !found {
			writeState(w, http.StatusNotFound, stateMessage{RetCode: "not found", Name: name})
			return
		}
		writeState(w, http.StatusOK, stateMessage{RetCode: domain.RetCodeOK, Name: name, Content: content})

	case http.MethodPut, http.MethodPost:
		var msg stateMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeState(w, http.StatusBadRequest, stateMessage{RetCode: err.Error()})
			return
		}
		if err := s.store.Put(r.Context(), name, msg.Content); err != nil {
			s.logger.Error("state put failed", "state", name, "error", err)
			writeState(w, http.StatusInternalServerError, stateMessage{RetCode: err.Error()})
			return
		}
		writeState(w, http.StatusOK, stateMessage{RetCode: domain.RetCodeOK, Name: name})

	case http.MethodDelete:
		removed, err := s.store.Del(r.Context(), name)
		if err != nil {
			s.logger.Error("state delete failed", "state", name, "error", err)
			writeState(w, http.StatusInternalServerError, stateMessage{RetCode: err.Error()})
			return
		}
		if !removed {
			writeState(w, http.StatusNotFound, stateMessage{RetCode: "not found", Name: name})
			return
		}
		writeState(w, http.StatusOK, stateMessage{RetCode: domain.RetCodeOK, Name: name})

	default:
		writeState(w, http.StatusMethodNotAllowed, stateMessage{RetCode: "method not allowed"})
	}
}

func writeState(w http.ResponseWriter, status int, msg stateMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(msg)
}
