package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

// MockDeliveryLogStore is a mock implementation of storage.DeliveryLogStore.
type MockDeliveryLogStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockDeliveryLogStore) LogDelivery(ctx context.Context, entry storage.DeliveryLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

//nolint:revive
func (m *MockDeliveryLogStore) ListDeliveries(ctx context.Context, userID string, limit int) ([]storage.DeliveryLogEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.DeliveryLogEntry), args.Error(1)
}
