package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ferry/internal/adapter/stats"
	"github.com/thushan/ferry/internal/config"
	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/logger"
	"github.com/thushan/ferry/theme"
)

type echoProcessor struct{}

func (echoProcessor) Process(_ context.Context, req domain.LambdaRequest) domain.LambdaResponse {
	rep := domain.NewLambdaResponse(domain.RetCodeOK, req.Input)
	rep.Hops = req.Hops + 1
	return rep
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	styled := logger.NewStyledLogger(slog.New(slog.DiscardHandler), theme.Plain())
	server := NewServer(config.DefaultConfig(), echoProcessor{}, stats.NewCollector(), styled)
	ts := httptest.NewServer(server.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func TestLambdaEndpointRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	req := domain.NewLambdaRequest("f", "hello", nil)
	body, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/v1/lambda", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var rep domain.LambdaResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.True(t, rep.OK())
	assert.Equal(t, "hello", rep.Output)
	assert.Equal(t, uint32(1), rep.Hops)
}

func TestLambdaEndpointRejectsBadPayload(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/lambda", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLambdaEndpointRejectsGet(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/lambda")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/internal/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
