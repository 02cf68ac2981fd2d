package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHttpServer(t *testing.T) {
	server := NewHttpServer(Config{Host: "127.0.0.1", Port: 8080, ReadTimeout: 15 * time.Second})

	assert.Equal(t, "127.0.0.1:8080", server.Addr)
	assert.Equal(t, 15*time.Second, server.ReadTimeout)

	ts := httptest.NewServer(server.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp404, err := http.Get(ts.URL + "/other")
	require.NoError(t, err)
	defer resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
}

func TestConfig_AddrIPv6(t *testing.T) {
	assert.Equal(t, "[::1]:9464", Config{Host: "::1", Port: 9464}.addr())
}

func TestInitDefault_Disabled(t *testing.T) {
	closer, err := InitDefault(Config{Enabled: false, Host: "127.0.0.1", Port: 1})

	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.NoError(t, closer.Close())
}

func TestInitDefault_ServesMetrics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}

	closer, err := InitDefault(Config{Enabled: true, Host: "127.0.0.1", Port: 0, ReadTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	m, ok := closer.(*Metrics)
	require.True(t, ok)
	require.NotEmpty(t, m.Addr())

	resp, err := http.Get("http://" + m.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestInitDefault_PortInUse(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}

	first := New(Config{Host: "127.0.0.1", Port: 0})
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Close() })

	_, port := splitPort(t, first.Addr())
	closer, err := InitDefault(Config{Enabled: true, Host: "127.0.0.1", Port: port})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start metrics server")
	assert.NoError(t, closer.Close())
}

func TestInitPrometheus_Idempotent(t *testing.T) {
	require.NoError(t, InitPrometheus())
	require.NoError(t, InitPrometheus())
}
