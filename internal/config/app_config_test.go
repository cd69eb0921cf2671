package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AppConfig{LogLevel: tt.logLevel}
			assert.Equal(t, tt.want, c.SlogLevel())
		})
	}
}

func TestAppConfig_DirectoryPaths(t *testing.T) {
	c := &AppConfig{DataDir: "/data"}

	tests := []struct {
		name string
		fn   func() string
		want string
	}{
		{"LogDir", c.LogDir, "/data/logs"},
		{"DatabaseFile", c.DatabaseFile, "/data/cloudcli-push.db"},
		{"VAPIDKeysFile", c.VAPIDKeysFile, "/data/webpush-vapid.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn())
		})
	}
}

func TestAppConfig_AllowedOrigins(t *testing.T) {
	c := &AppConfig{CORSAllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins())

	empty := &AppConfig{}
	assert.Empty(t, empty.AllowedOrigins())
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CLOUDCLI_DATA_DIR", "/tmp/test-cloudcli")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	t.Setenv("PUSH_VAPID_SUBJECT", "")
	t.Setenv("PUSH_TTL_SECONDS", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/test-cloudcli", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "pub", cfg.VAPIDPublicKey)
	assert.Equal(t, "priv", cfg.VAPIDPrivateKey)
	assert.Equal(t, DefaultVAPIDSubject, cfg.VAPIDSubject)
	assert.Equal(t, time.Minute, cfg.PushTTL())
}

func TestLoad_DefaultDataDir(t *testing.T) {
	t.Setenv("CLOUDCLI_DATA_DIR", "")
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/home/tester/.cloudcli", cfg.DataDir)
}
