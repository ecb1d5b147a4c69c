package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLoopbackManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	m := NewManager(handler, cfg, zap.NewNop())
	require.NoError(t, m.Start())
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}

func TestManager_ServesRequests(t *testing.T) {
	m := newLoopbackManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))

	resp, err := http.Get("http://" + m.Addr() + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestManager_StartTwiceFails(t *testing.T) {
	m := newLoopbackManager(t, http.NewServeMux())

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestManager_ShutdownIdempotent(t *testing.T) {
	m := newLoopbackManager(t, http.NewServeMux())

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_StartAfterShutdownFails(t *testing.T) {
	m := newLoopbackManager(t, http.NewServeMux())
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already shut down")
}

func TestManager_ShutdownStopsServing(t *testing.T) {
	m := newLoopbackManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	addr := m.Addr()

	require.NoError(t, m.Shutdown(context.Background()))

	client := &http.Client{Timeout: 500 * time.Millisecond}
	_, err := client.Get("http://" + addr + "/")
	assert.Error(t, err, "connections must be refused after shutdown")
}

func TestNewManager_FillsZeroConfig(t *testing.T) {
	m := NewManager(http.NewServeMux(), Config{}, nil)

	def := DefaultConfig()
	assert.Equal(t, def.Addr, m.cfg.Addr)
	assert.Equal(t, def.ReadTimeout, m.cfg.ReadTimeout)
	assert.Equal(t, def.ShutdownTimeout, m.cfg.ShutdownTimeout)
	assert.Equal(t, def.MaxHeaderBytes, m.srv.MaxHeaderBytes)
}

func TestManager_AddrBeforeStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:9099"
	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())

	assert.Equal(t, "127.0.0.1:9099", m.Addr())
}
