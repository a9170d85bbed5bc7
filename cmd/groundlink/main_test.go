package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundlink/pkg/config"
	"groundlink/pkg/db"
	"groundlink/pkg/store"
	"groundlink/pkg/vehicle/mavlink"
	"groundlink/pkg/vehicle/mocklink"
)

func writeTestConfig(t *testing.T, provider string, autostart bool) string {
	t.Helper()
	dir := t.TempDir()

	tempConfig := fmt.Sprintf(`
server:
    address: localhost:0  # 0 lets OS choose free port
link:
    provider: %s
    mock:
        connect_delay: 10ms
        boot_delay: 10ms
        tick_rate: 10ms
vehicle:
    call_timeout: 1s
    stop_timeout: 1s
    notify_interval: 50ms
autostart:
    enabled: %t
    heartbeat_poll: 10ms
    armed_poll: 10ms
log:
    server:
        path: %q
        level: "debug"
    requests:
        path: %q
        level: "info"
db:
    path: ":memory:" # Use in-memory DB for test
`, provider, autostart, filepath.Join(dir, "logs", "server.log"), filepath.Join(dir, "logs", "requests.log"))

	path := filepath.Join(dir, "groundlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tempConfig), 0o644))
	return path
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		autostart bool
	}{
		{name: "MockLink", autostart: false},
		{name: "MockLinkAutostart", autostart: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestConfig(t, "mock", tt.autostart)

			// Cancel quickly to verify the startup and shutdown sequence
			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()

			require.NoError(t, run(ctx, path))
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeTestConfig(t, "simconnect", false)

	err := run(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link.provider")
}

func TestInitializeTransport(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		address  string
		wantMock bool
		wantErr  bool
	}{
		{name: "Mock", provider: "mock", wantMock: true},
		{name: "MAVLinkUDP", provider: "mavlink", address: "udpin://127.0.0.1:14540"},
		{name: "MAVLinkBadAddress", provider: "mavlink", address: "carrier-pigeon://coop", wantErr: true},
		{name: "Unknown", provider: "simconnect", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Link.Provider = tt.provider
			cfg.Link.Address = tt.address

			tr, err := initializeTransport(context.Background(), config.NewProvider(cfg, nil))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer tr.Close()

			if tt.wantMock {
				assert.IsType(t, &mocklink.Client{}, tr)
			} else {
				assert.IsType(t, &mavlink.Client{}, tr)
			}
		})
	}
}

func TestInitializeTransport_StoredOverride(t *testing.T) {
	conn, err := db.Init(":memory:")
	require.NoError(t, err)
	st := store.NewSQLiteStore(conn)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.SetState(ctx, config.KeyLinkProvider, "mock"))

	tr, err := initializeTransport(ctx, config.NewProvider(config.DefaultConfig(), st))
	require.NoError(t, err)
	defer tr.Close()

	assert.IsType(t, &mocklink.Client{}, tr)
}

func TestLinkOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Navigator.HorizontalTolerance = config.Distance(2.5)

	opts := linkOptions(context.Background(), config.NewProvider(cfg, nil))

	assert.Equal(t, 10*time.Second, opts.CallTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.NotifyInterval)
	assert.InDelta(t, 2.5, opts.HorizontalTolerance, 1e-9)
	assert.InDelta(t, 1.0, opts.VerticalTolerance, 1e-9)
	assert.Equal(t, 30*time.Second, opts.ReconnectMaxDelay)
}
