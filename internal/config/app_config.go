package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// DefaultVAPIDSubject is the contact used in VAPID claims when PUSH_VAPID_SUBJECT is unset.
const DefaultVAPIDSubject = "mailto:cloudcli@localhost"

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 3001.
	Port int `envconfig:"PORT" default:"3001"`

	// DataDir is the root data directory. Defaults to ~/.cloudcli.
	DataDir string `envconfig:"CLOUDCLI_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// VAPIDPublicKey and VAPIDPrivateKey bypass the persisted key file entirely
	// when both are set.
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`

	// VAPIDSubject is the contact URI sent to push services.
	VAPIDSubject string `envconfig:"PUSH_VAPID_SUBJECT" default:"mailto:cloudcli@localhost"`

	// PushTTLSeconds is how long push services should hold an undelivered message.
	PushTTLSeconds int `envconfig:"PUSH_TTL_SECONDS" default:"86400"`

	// JWTSecret signs the bearer tokens that identify users on the notification routes.
	JWTSecret string `envconfig:"CLOUDCLI_JWT_SECRET"`

	// CORSAllowedOrigins is a comma separated list of origins allowed to call the API.
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.cloudcli if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".cloudcli")
	}
	if c.VAPIDSubject == "" {
		c.VAPIDSubject = DefaultVAPIDSubject
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.cloudcli/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DatabaseFile returns the path to the SQLite database holding push subscriptions.
func (c *AppConfig) DatabaseFile() string {
	return filepath.Join(c.DataDir, "cloudcli-push.db")
}

// VAPIDKeysFile returns the path of the persisted VAPID identity.
func (c *AppConfig) VAPIDKeysFile() string {
	return filepath.Join(c.DataDir, "webpush-vapid.json")
}

// PushTTL returns PushTTLSeconds as a duration.
func (c *AppConfig) PushTTL() time.Duration {
	return time.Duration(c.PushTTLSeconds) * time.Second
}

// AllowedOrigins splits CORSAllowedOrigins into a clean slice.
func (c *AppConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
