package notification_test

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cloudcli-push/internal/notification"
	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

func browserSubscription(t *testing.T, endpoint string) *storage.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &storage.PushSubscription{
		ID:       "sub-1",
		UserID:   "user-1",
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func testIdentity(t *testing.T) *notification.VAPIDIdentity {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return &notification.VAPIDIdentity{PublicKey: pub, PrivateKey: priv, Subject: "mailto:ops@example.com"}
}

func TestWebPushTransport_Send(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  bool
		wantGone bool
	}{
		{name: "created", status: http.StatusCreated},
		{name: "ok", status: http.StatusOK},
		{name: "gone", status: http.StatusGone, body: "subscription expired", wantErr: true, wantGone: true},
		{name: "not found", status: http.StatusNotFound, wantErr: true, wantGone: true},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: true},
		{name: "too many requests", status: http.StatusTooManyRequests, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotTTL, gotAuth, gotEncoding string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTTL = r.Header.Get("TTL")
				gotAuth = r.Header.Get("Authorization")
				gotEncoding = r.Header.Get("Content-Encoding")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := notification.NewWebPushTransport(srv.Client(), time.Hour)
			err := tr.Send(context.Background(), browserSubscription(t, srv.URL+"/push/abc"), []byte(`{"title":"hi"}`), testIdentity(t))

			assert.Equal(t, "3600", gotTTL)
			assert.True(t, strings.HasPrefix(gotAuth, "vapid "), "authorization header %q", gotAuth)
			assert.Equal(t, "aes128gcm", gotEncoding)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var de *notification.DeliveryError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.status, de.StatusCode)
			assert.Equal(t, tt.body, de.Body)
			assert.Equal(t, tt.wantGone, notification.IsGone(err))
		})
	}
}

func TestWebPushTransport_ErrorBodyIsCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	tr := notification.NewWebPushTransport(srv.Client(), time.Minute)
	err := tr.Send(context.Background(), browserSubscription(t, srv.URL), []byte(`{}`), testIdentity(t))

	var de *notification.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Body, 512)
	assert.False(t, de.Gone())
}

func TestWebPushTransport_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	tr := notification.NewWebPushTransport(nil, time.Minute)
	err := tr.Send(context.Background(), browserSubscription(t, endpoint), []byte(`{}`), testIdentity(t))

	require.Error(t, err)
	assert.False(t, notification.IsGone(err))
}

func TestIsGone(t *testing.T) {
	assert.True(t, notification.IsGone(&notification.DeliveryError{StatusCode: 410}))
	assert.True(t, notification.IsGone(&notification.DeliveryError{StatusCode: 404}))
	assert.False(t, notification.IsGone(&notification.DeliveryError{StatusCode: 500}))
	assert.False(t, notification.IsGone(errors.New("timeout")))
	assert.False(t, notification.IsGone(nil))
}
