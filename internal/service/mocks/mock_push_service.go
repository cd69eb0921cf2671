package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/cloudcli-push/internal/notification"
	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

// MockPushService is a mock implementation of service.PushService.
type MockPushService struct {
	mock.Mock
}

//nolint:revive
func (m *MockPushService) PublicKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

//nolint:revive
func (m *MockPushService) Subscribe(
	ctx context.Context, userID string, sub storage.SubscriptionInput, meta storage.DeviceMetadata,
) (*storage.PushSubscription, error) {
	args := m.Called(ctx, userID, sub, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PushSubscription), args.Error(1)
}

//nolint:revive
func (m *MockPushService) Unsubscribe(ctx context.Context, userID, endpoint string) (int64, error) {
	args := m.Called(ctx, userID, endpoint)
	return args.Get(0).(int64), args.Error(1)
}

//nolint:revive
func (m *MockPushService) SendTest(ctx context.Context, userID string) (notification.Result, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(notification.Result), args.Error(1)
}

//nolint:revive
func (m *MockPushService) PublishEvent(ctx context.Context, userID, eventType string, payload map[string]string) error {
	args := m.Called(ctx, userID, eventType, payload)
	return args.Error(0)
}

//nolint:revive
func (m *MockPushService) ListDeliveries(ctx context.Context, userID string, limit int) ([]storage.DeliveryLogEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.DeliveryLogEntry), args.Error(1)
}
