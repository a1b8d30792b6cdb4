package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/claude-agent/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "claude-agent", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SamplingRate)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:        true,
		Endpoint:       "otel.example.com:4318",
		Protocol:       ProtocolHTTP,
		Insecure:       false,
		SamplingRate:   0.25,
		ExportInterval: config.Duration(30 * time.Second),
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otel.example.com:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, 0.25, cfg.SamplingRate)
	assert.Equal(t, 30*time.Second, cfg.ExportInterval)
	require.NoError(t, cfg.Validate())
}

func TestFromConfig_KeepsDefaultsForEmptyFields(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{Insecure: true, SamplingRate: 1}, "")

	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		return cfg
	}

	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "valid", modify: func(*Config) {}},
		{
			name:   "disabled skips validation",
			modify: func(c *Config) { *c = Config{} },
		},
		{
			name:   "missing endpoint",
			modify: func(c *Config) { c.Endpoint = "" },
			errMsg: "endpoint is required",
		},
		{
			name:   "missing service name",
			modify: func(c *Config) { c.ServiceName = "" },
			errMsg: "service_name is required",
		},
		{
			name:   "unknown protocol",
			modify: func(c *Config) { c.Protocol = "thrift" },
			errMsg: "protocol must be",
		},
		{
			name:   "insecure remote endpoint",
			modify: func(c *Config) { c.Endpoint = "collector.example.com:4317" },
			errMsg: "insecure connections to remote endpoints",
		},
		{
			name: "secure remote endpoint",
			modify: func(c *Config) {
				c.Endpoint = "https://collector.example.com:4317"
				c.Insecure = false
			},
		},
		{
			name:   "sampling rate too low",
			modify: func(c *Config) { c.SamplingRate = -0.1 },
			errMsg: "sampling_rate must be between 0 and 1",
		},
		{
			name:   "sampling rate too high",
			modify: func(c *Config) { c.SamplingRate = 1.5 },
			errMsg: "sampling_rate must be between 0 and 1",
		},
		{
			name:   "zero export interval",
			modify: func(c *Config) { c.ExportInterval = 0 },
			errMsg: "export_interval must be positive",
		},
		{
			name:   "zero shutdown timeout",
			modify: func(c *Config) { c.ShutdownTimeout = 0 },
			errMsg: "shutdown timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1:4318", true},
		{"[::1]:4317", true},
		{"[::1]", true},
		{"http://localhost:4318", true},
		{"https://127.0.0.1:4318", true},
		{"otel-collector:4317", false},
		{"10.0.0.5:4317", false},
		{"https://collector.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.want, cfg.isLocalEndpoint())
		})
	}
}
