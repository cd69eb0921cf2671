package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

// Transport delivers one encrypted payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub *storage.PushSubscription, payload []byte, id *VAPIDIdentity) error
}

// DeliveryError is returned when the push service answers with a non-2xx status.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("push service returned status %d: %s", e.StatusCode, e.Body)
}

// Gone reports whether the push service considers the endpoint permanently dead.
func (e *DeliveryError) Gone() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

// IsGone reports whether err carries a 404 or 410 from the push service.
func IsGone(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Gone()
}

const maxErrorBody = 512

// WebPushTransport sends notifications with webpush-go.
type WebPushTransport struct {
	client *http.Client
	ttl    time.Duration
}

// NewWebPushTransport creates a transport. A nil client means http.DefaultClient.
func NewWebPushTransport(client *http.Client, ttl time.Duration) *WebPushTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushTransport{client: client, ttl: ttl}
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
func (t *WebPushTransport) Send(ctx context.Context, sub *storage.PushSubscription, payload []byte, id *VAPIDIdentity) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient: t.client,
		// webpush-go adds the mailto: scheme itself.
		Subscriber:      strings.TrimPrefix(id.Subject, "mailto:"),
		VAPIDPublicKey:  id.PublicKey,
		VAPIDPrivateKey: id.PrivateKey,
		TTL:             int(t.ttl.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("sending push notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
