package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/flashlist/client"
	"github.com/zlnvch/flashlist/models"
)

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) ListItems(ctx context.Context) ([]models.Item, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *MockRemote) CreateItem(ctx context.Context, item models.NewItem) (models.Item, error) {
	args := m.Called(ctx, item)
	return args.Get(0).(models.Item), args.Error(1)
}

func (m *MockRemote) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (models.Item, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(models.Item), args.Error(1)
}

func (m *MockRemote) DeleteItem(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRemote) Reorder(ctx context.Context, orders []models.ItemOrder) (int, error) {
	args := m.Called(ctx, orders)
	return args.Int(0), args.Error(1)
}

type MockLegacy struct {
	mock.Mock
}

func (m *MockLegacy) Load() ([]models.Item, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *MockLegacy) Remove() error {
	args := m.Called()
	return args.Error(0)
}

type MockFeed struct {
	mock.Mock
}

func (m *MockFeed) Watch(ctx context.Context, onChange func(client.ChangeEvent)) error {
	args := m.Called(ctx, onChange)
	return args.Error(0)
}
