package state

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ferry/internal/core/ports"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func runStoreSuite(t *testing.T, store ports.StateStore) {
	ctx := context.Background()

	// Put then Get yields the content
	require.NoError(t, store.Put(ctx, "alpha", []byte("v1")))
	content, found, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), content)

	// Put overwrites
	require.NoError(t, store.Put(ctx, "alpha", []byte("v2")))
	content, _, err = store.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), content)

	// Del then Get misses
	removed, err := store.Del(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, removed)
	_, found, err = store.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, found)

	// Del on an unknown key reports false
	removed, err = store.Del(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runStoreSuite(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "states.db"))
	require.NoError(t, err)
	defer store.Close()
	runStoreSuite(t, store)
}

func TestMemoryStoreCopiesContent(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	original := []byte("abc")
	require.NoError(t, store.Put(context.Background(), "k", original))
	original[0] = 'X'

	content, _, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), content)
}

func newServerAndClient(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(NewMemoryStore(), discard()).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	endpoint := strings.TrimPrefix(server.URL, "http://")
	return NewClient(endpoint, discard())
}

func TestStateClientRoundTrip(t *testing.T) {
	client := newServerAndClient(t)
	ctx := context.Background()

	require.NoError(t, client.Put(ctx, "alpha", []byte("hello")))

	content, found, err := client.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), content)

	removed, err := client.Del(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, removed)

	_, found, err = client.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, found)

	removed, err = client.Del(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStateClientTransportFailure(t *testing.T) {
	client := NewClient("localhost:1", discard())
	_, _, err := client.Get(context.Background(), "alpha")
	require.Error(t, err)
}

func TestStateServerRejectsMissingName(t *testing.T) {
	mux := http.NewServeMux()
	NewServer(NewMemoryStore(), discard()).Register(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/state/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
