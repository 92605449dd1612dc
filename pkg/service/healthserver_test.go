package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkbase-io/go-chatpipe/pkg/service"
)

func startProbeServer(t *testing.T, ready service.ProbeFunc) *service.HealthServer {
	t.Helper()
	server := service.NewHealthServer(zerolog.Nop(), ":0", ready)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server
}

func probeGet(t *testing.T, server *service.HealthServer, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://%s%s", server.Addr(), path))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthServer_Healthz(t *testing.T) {
	server := startProbeServer(t, nil)

	status, body := probeGet(t, server, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestHealthServer_ReadyzFollowsProbe(t *testing.T) {
	var ready atomic.Bool
	server := startProbeServer(t, func() error {
		if !ready.Load() {
			return errors.New("dispatch fleet not started")
		}
		return nil
	})

	status, body := probeGet(t, server, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body, "dispatch fleet not started")

	ready.Store(true)

	status, body = probeGet(t, server, "/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body)
}

func TestHealthServer_NilProbeIsAlwaysReady(t *testing.T) {
	server := startProbeServer(t, nil)

	status, _ := probeGet(t, server, "/readyz")
	assert.Equal(t, http.StatusOK, status)
}
