package notification

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/singleflight"
)

// ErrIdentityUnavailable wraps every failure to establish the VAPID identity.
var ErrIdentityUnavailable = errors.New("vapid identity unavailable")

// VAPIDIdentity is the server's push signing identity.
type VAPIDIdentity struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// persistedIdentity is the on-disk layout of the key file.
type persistedIdentity struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	UpdatedAt  string `json:"updatedAt"`
}

// KeyGenerator produces a new VAPID keypair.
type KeyGenerator func() (privateKey, publicKey string, err error)

// KeyManagerConfig configures a KeyManager.
type KeyManagerConfig struct {
	// EnvPublicKey and EnvPrivateKey, when both set, are used instead of
	// the key file. A malformed pair is a configuration error.
	EnvPublicKey  string
	EnvPrivateKey string
	// KeyFile is where generated keys are persisted.
	KeyFile string
	// Subject is the VAPID contact, e.g. "mailto:ops@example.com".
	Subject string
	// Generate defaults to webpush.GenerateVAPIDKeys.
	Generate KeyGenerator
	Logger   *slog.Logger
}

// KeyManager lazily establishes the VAPID identity once per process.
// Concurrent first callers share a single initialization; a failed
// initialization is not cached.
type KeyManager struct {
	cfg   KeyManagerConfig
	group singleflight.Group

	mu       sync.Mutex
	identity *VAPIDIdentity
}

// NewKeyManager creates a KeyManager. No I/O happens until Identity is called.
func NewKeyManager(cfg KeyManagerConfig) *KeyManager {
	if cfg.Generate == nil {
		cfg.Generate = webpush.GenerateVAPIDKeys
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &KeyManager{cfg: cfg}
}

// Identity returns the process-wide VAPID identity, initializing it on first use.
// ctx only bounds how long this caller waits; the initialization itself
// runs to completion for the other waiters.
func (m *KeyManager) Identity(ctx context.Context) (*VAPIDIdentity, error) {
	if id := m.cached(); id != nil {
		return id, nil
	}

	ch := m.group.DoChan("vapid", func() (any, error) {
		// A previous flight may have finished between cached() and DoChan.
		if id := m.cached(); id != nil {
			return id, nil
		}
		id, err := m.establish()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.identity = id
		m.mu.Unlock()
		return id, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*VAPIDIdentity), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublicKey is a convenience wrapper around Identity.
func (m *KeyManager) PublicKey(ctx context.Context) (string, error) {
	id, err := m.Identity(ctx)
	if err != nil {
		return "", err
	}
	return id.PublicKey, nil
}

func (m *KeyManager) cached() *VAPIDIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

func (m *KeyManager) establish() (*VAPIDIdentity, error) {
	id := &VAPIDIdentity{Subject: m.cfg.Subject}

	switch {
	case m.cfg.EnvPublicKey != "" && m.cfg.EnvPrivateKey != "":
		if err := ValidateKeyPair(m.cfg.EnvPublicKey, m.cfg.EnvPrivateKey); err != nil {
			return nil, fmt.Errorf("%w: environment keys: %w", ErrIdentityUnavailable, err)
		}
		id.PublicKey, id.PrivateKey = m.cfg.EnvPublicKey, m.cfg.EnvPrivateKey
		m.cfg.Logger.Info("using VAPID keys from environment")
		return id, nil
	case m.cfg.EnvPublicKey != "" || m.cfg.EnvPrivateKey != "":
		m.cfg.Logger.Warn("ignoring partial VAPID key pair from environment; both keys are required")
	}

	if stored := m.readKeyFile(); stored != nil {
		id.PublicKey, id.PrivateKey = stored.PublicKey, stored.PrivateKey
		return id, nil
	}

	privateKey, publicKey, err := m.cfg.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: generating keys: %w", ErrIdentityUnavailable, err)
	}
	if err := m.writeKeyFile(publicKey, privateKey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityUnavailable, err)
	}
	m.cfg.Logger.Info("generated VAPID keys", "path", m.cfg.KeyFile)

	id.PublicKey, id.PrivateKey = publicKey, privateKey
	return id, nil
}

// readKeyFile returns nil when the file is missing, unreadable or holds no
// valid key pair, so the caller regenerates.
func (m *KeyManager) readKeyFile() *persistedIdentity {
	//nolint:gosec // path comes from the configured data dir
	raw, err := os.ReadFile(m.cfg.KeyFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.cfg.Logger.Warn("failed to read VAPID keys file", "path", m.cfg.KeyFile, "error", err)
		}
		return nil
	}

	var stored persistedIdentity
	if err := json.Unmarshal(raw, &stored); err != nil {
		m.cfg.Logger.Warn("failed to parse VAPID keys file", "path", m.cfg.KeyFile, "error", err)
		return nil
	}
	if stored.PublicKey == "" || stored.PrivateKey == "" {
		return nil
	}
	if err := ValidateKeyPair(stored.PublicKey, stored.PrivateKey); err != nil {
		m.cfg.Logger.Warn("discarding invalid VAPID keys file", "path", m.cfg.KeyFile, "error", err)
		return nil
	}
	return &stored
}

// ValidateKeyPair checks that publicKey is an uncompressed P-256 point and
// privateKey the matching 32-byte scalar, both base64url encoded.
func ValidateKeyPair(publicKey, privateKey string) error {
	pub, err := decodeKey(publicKey)
	if err != nil {
		return fmt.Errorf("decoding public key: %w", err)
	}
	if len(pub) != 65 || pub[0] != 0x04 {
		return fmt.Errorf("public key must be a 65-byte uncompressed P-256 point, got %d bytes", len(pub))
	}
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	priv, err := decodeKey(privateKey)
	if err != nil {
		return fmt.Errorf("decoding private key: %w", err)
	}
	if len(priv) != 32 {
		return fmt.Errorf("private key must be 32 bytes, got %d", len(priv))
	}
	key, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return fmt.Errorf("parsing private key: %w", err)
	}
	if !bytes.Equal(key.PublicKey().Bytes(), pub) {
		return errors.New("public key does not match private key")
	}
	return nil
}

// decodeKey accepts base64url with or without padding.
func decodeKey(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func (m *KeyManager) writeKeyFile(publicKey, privateKey string) error {
	if err := os.MkdirAll(filepath.Dir(m.cfg.KeyFile), 0750); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	data, err := json.MarshalIndent(persistedIdentity{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding keys: %w", err)
	}

	if err := os.WriteFile(m.cfg.KeyFile, data, 0600); err != nil {
		return fmt.Errorf("writing key file %q: %w", m.cfg.KeyFile, err)
	}
	return nil
}
