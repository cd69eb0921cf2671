package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cloudcli-push/internal/logger"
	"github.com/shaharia-lab/cloudcli-push/internal/notification"
)

// countingGenerator returns distinct real keypairs and counts invocations.
type countingGenerator struct {
	calls atomic.Int32
	delay time.Duration

	mu    sync.Mutex
	pubs  []string
	privs []string
}

func (g *countingGenerator) generate() (string, string, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", err
	}
	g.mu.Lock()
	g.pubs = append(g.pubs, pub)
	g.privs = append(g.privs, priv)
	g.mu.Unlock()
	return priv, pub, nil
}

// public returns the public key of the n-th generated pair, counting from 1.
func (g *countingGenerator) public(n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pubs[n-1]
}

func (g *countingGenerator) private(n int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.privs[n-1]
}

func realKeyPair(t *testing.T) (pub, priv string) {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return pub, priv
}

func newKeyManager(keyFile string, gen *countingGenerator) *notification.KeyManager {
	return notification.NewKeyManager(notification.KeyManagerConfig{
		KeyFile:  keyFile,
		Subject:  "mailto:test@example.com",
		Generate: gen.generate,
		Logger:   logger.Discard(),
	})
}

func readKeyFile(t *testing.T, path string) map[string]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestKeyManager_ConcurrentFirstCallsGenerateOnce(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "nested", "webpush-vapid.json")
	gen := &countingGenerator{delay: 20 * time.Millisecond}
	km := newKeyManager(keyFile, gen)

	const callers = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		ids   = make([]*notification.VAPIDIdentity, callers)
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ids[i], errs[i] = km.Identity(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, gen.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, ids[0], ids[i])
	}
	assert.Equal(t, gen.public(1), ids[0].PublicKey)
	assert.Equal(t, "mailto:test@example.com", ids[0].Subject)

	stored := readKeyFile(t, keyFile)
	assert.Equal(t, gen.public(1), stored["publicKey"])
	assert.Equal(t, gen.private(1), stored["privateKey"])
	_, err := time.Parse(time.RFC3339Nano, stored["updatedAt"])
	assert.NoError(t, err)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestKeyManager_EnvironmentKeysSkipDisk(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "never", "webpush-vapid.json")
	gen := &countingGenerator{}
	pub, priv := realKeyPair(t)
	km := notification.NewKeyManager(notification.KeyManagerConfig{
		EnvPublicKey:  pub,
		EnvPrivateKey: priv,
		KeyFile:       keyFile,
		Subject:       "mailto:ops@example.com",
		Generate:      gen.generate,
		Logger:        logger.Discard(),
	})

	id, err := km.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pub, id.PublicKey)
	assert.Equal(t, priv, id.PrivateKey)

	assert.Zero(t, gen.calls.Load())
	_, statErr := os.Stat(filepath.Dir(keyFile))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestKeyManager_PartialEnvironmentFallsThrough(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "webpush-vapid.json")
	gen := &countingGenerator{}
	km := notification.NewKeyManager(notification.KeyManagerConfig{
		EnvPublicKey: "BOnlyPublic",
		KeyFile:      keyFile,
		Generate:     gen.generate,
		Logger:       logger.Discard(),
	})

	id, err := km.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gen.public(1), id.PublicKey)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestKeyManager_ReadsPersistedFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "webpush-vapid.json")
	pub, priv := realKeyPair(t)
	require.NoError(t, os.WriteFile(keyFile,
		[]byte(`{"publicKey":"`+pub+`","privateKey":"`+priv+`","updatedAt":"2026-01-01T00:00:00Z"}`), 0600))

	gen := &countingGenerator{}
	km := newKeyManager(keyFile, gen)

	id, err := km.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pub, id.PublicKey)
	assert.Equal(t, priv, id.PrivateKey)
	assert.Zero(t, gen.calls.Load())
}

func TestKeyManager_MalformedFileRegenerates(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: `{"publicKey":`},
		{name: "missing private key", content: `{"publicKey":"disk-public"}`},
		{name: "empty object", content: `{}`},
		{name: "keys are not base64url", content: `{"publicKey":"disk public!","privateKey":"disk private!"}`},
		{name: "keys have wrong length", content: `{"publicKey":"BAAA","privateKey":"AAAA"}`},
		{name: "mismatched pair", content: mismatchedPairJSON()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyFile := filepath.Join(t.TempDir(), "webpush-vapid.json")
			require.NoError(t, os.WriteFile(keyFile, []byte(tt.content), 0600))

			gen := &countingGenerator{}
			km := newKeyManager(keyFile, gen)

			id, err := km.Identity(context.Background())
			require.NoError(t, err)
			assert.EqualValues(t, 1, gen.calls.Load())
			assert.Equal(t, gen.public(1), id.PublicKey)
			assert.Equal(t, gen.public(1), readKeyFile(t, keyFile)["publicKey"])
		})
	}
}

func TestKeyManager_WriteFailureIsRetried(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0600))
	keyFile := filepath.Join(blocker, "webpush-vapid.json")

	gen := &countingGenerator{}
	km := newKeyManager(keyFile, gen)

	_, err := km.Identity(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrIdentityUnavailable)

	// Clear the obstruction; the failed attempt must not be cached.
	require.NoError(t, os.Remove(blocker))

	id, err := km.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gen.public(2), id.PublicKey)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestKeyManager_GenerateErrorPropagates(t *testing.T) {
	km := notification.NewKeyManager(notification.KeyManagerConfig{
		KeyFile: filepath.Join(t.TempDir(), "webpush-vapid.json"),
		Generate: func() (string, string, error) {
			return "", "", errors.New("entropy exhausted")
		},
		Logger: logger.Discard(),
	})

	_, err := km.PublicKey(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notification.ErrIdentityUnavailable)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestKeyManager_SuccessIsCached(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "webpush-vapid.json")
	gen := &countingGenerator{}
	km := newKeyManager(keyFile, gen)

	first, err := km.Identity(context.Background())
	require.NoError(t, err)

	// Even if the file disappears, the process keeps its identity.
	require.NoError(t, os.Remove(keyFile))

	second, err := km.Identity(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestKeyManager_CanceledWaiterReturnsContextError(t *testing.T) {
	gen := &countingGenerator{delay: 200 * time.Millisecond}
	km := newKeyManager(filepath.Join(t.TempDir(), "webpush-vapid.json"), gen)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := km.Identity(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The initialization kept running and later callers get its result.
	id, err := km.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gen.public(1), id.PublicKey)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestKeyManager_RealKeyGeneration(t *testing.T) {
	km := notification.NewKeyManager(notification.KeyManagerConfig{
		KeyFile: filepath.Join(t.TempDir(), "webpush-vapid.json"),
		Logger:  logger.Discard(),
	})

	id, err := km.Identity(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id.PublicKey)
	assert.NotEmpty(t, id.PrivateKey)
	assert.NotEqual(t, id.PublicKey, id.PrivateKey)
	assert.NoError(t, notification.ValidateKeyPair(id.PublicKey, id.PrivateKey))
}

func mismatchedPairJSON() string {
	_, pub, _ := webpush.GenerateVAPIDKeys()
	priv, _, _ := webpush.GenerateVAPIDKeys()
	return `{"publicKey":"` + pub + `","privateKey":"` + priv + `"}`
}

func TestKeyManager_MalformedEnvironmentKeysFail(t *testing.T) {
	pub, priv := realKeyPair(t)
	_, otherPriv := realKeyPair(t)

	tests := []struct {
		name string
		pub  string
		priv string
	}{
		{name: "not base64", pub: "not-a-key!", priv: "also-not-a-key!"},
		{name: "wrong lengths", pub: "not-a-key", priv: "also-not-a-key"},
		{name: "compressed-length public key", pub: pub[:44], priv: priv},
		{name: "mismatched pair", pub: pub, priv: otherPriv},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyFile := filepath.Join(t.TempDir(), "webpush-vapid.json")
			gen := &countingGenerator{}
			km := notification.NewKeyManager(notification.KeyManagerConfig{
				EnvPublicKey:  tt.pub,
				EnvPrivateKey: tt.priv,
				KeyFile:       keyFile,
				Generate:      gen.generate,
				Logger:        logger.Discard(),
			})

			// Every caller sees the failure; nothing is cached or generated.
			for i := 0; i < 2; i++ {
				_, err := km.PublicKey(context.Background())
				require.Error(t, err)
				assert.ErrorIs(t, err, notification.ErrIdentityUnavailable)
			}
			assert.Zero(t, gen.calls.Load())
			assert.NoFileExists(t, keyFile)
		})
	}
}

func TestValidateKeyPair_AcceptsPaddedEncoding(t *testing.T) {
	pub, priv := realKeyPair(t)
	assert.NoError(t, notification.ValidateKeyPair(pub+"=", priv))
}
