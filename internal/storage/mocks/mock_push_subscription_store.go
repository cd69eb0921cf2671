package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

// MockPushSubscriptionStore is a mock implementation of storage.PushSubscriptionStore.
type MockPushSubscriptionStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockPushSubscriptionStore) Upsert(
	ctx context.Context, userID string, sub storage.SubscriptionInput, meta storage.DeviceMetadata,
) (*storage.PushSubscription, error) {
	args := m.Called(ctx, userID, sub, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PushSubscription), args.Error(1)
}

//nolint:revive
func (m *MockPushSubscriptionStore) DeleteByEndpoint(ctx context.Context, userID, endpoint string) (int64, error) {
	args := m.Called(ctx, userID, endpoint)
	return args.Get(0).(int64), args.Error(1)
}

//nolint:revive
func (m *MockPushSubscriptionStore) DeleteByID(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

//nolint:revive
func (m *MockPushSubscriptionStore) ListActive(ctx context.Context, userID string) ([]*storage.PushSubscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*storage.PushSubscription), args.Error(1)
}

//nolint:revive
func (m *MockPushSubscriptionStore) Get(ctx context.Context, id string) (*storage.PushSubscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PushSubscription), args.Error(1)
}

//nolint:revive
func (m *MockPushSubscriptionStore) MarkDeliverySuccess(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

//nolint:revive
func (m *MockPushSubscriptionStore) MarkDeliveryError(ctx context.Context, id, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}
