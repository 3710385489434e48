package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/runway/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
temporal:
  host_port: localhost:7233
  connect_attempts: 5
  connect_delay: 500ms
nmap:
  binary: /usr/local/bin/nmap
server:
  transport: stdio
service:
  verbose: true
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, "localhost:7233", cfg.Temporal.HostPort)
	require.Equal(t, "default", cfg.Temporal.Namespace)
	require.Equal(t, 5, cfg.Temporal.ConnectAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.Temporal.Delay())
	require.Equal(t, "/usr/local/bin/nmap", cfg.Nmap.Binary)
	require.Equal(t, "nmap-scans", cfg.Nmap.TaskQueue)
	require.True(t, cfg.Shell.Enabled)
	require.Equal(t, "shell-tasks", cfg.Shell.TaskQueue)
	require.Equal(t, model.TransportStdio, cfg.Server.Transport)
	require.NotNil(t, cfg.Service.Verbose)
	require.True(t, *cfg.Service.Verbose)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := model.DefaultConfig()
	require.Equal(t, 0, cfg.Version)
	require.Equal(t, "temporal:7233", cfg.Temporal.HostPort)
	require.Equal(t, 60, cfg.Temporal.ConnectAttempts)
	require.Equal(t, 2*time.Second, cfg.Temporal.Delay())
	require.Equal(t, 10*time.Second, cfg.Runner.Interval())
	require.Equal(t, "-sT --top-ports 100", cfg.Nmap.DefaultArgs)
	require.Equal(t, model.TransportHTTP, cfg.Server.Transport)
	require.Nil(t, cfg.Service.Verbose)
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    string
	}{
		{"unknown field", "version: 0\ntemporal:\n  hots: x\n"},
		{"bad transport", "version: 0\nserver:\n  transport: grpc\n"},
		{"bad duration", "version: 0\nrunner:\n  heartbeat_interval: often\n"},
		{"zero attempts", "version: 0\ntemporal:\n  connect_attempts: 0\n"},
		{"unsupported version", "version: 1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			_, err := model.LoadConfig(strings.NewReader(tc.given))
			require.Error(t, err)
			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
		})
	}
}
