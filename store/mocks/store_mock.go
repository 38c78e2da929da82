package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zlnvch/flashlist/models"
)

// MockStore records calls for assertions. CreateUser and CreateItem also
// accept a func returning the stored value built from the argument.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	if fn, ok := args.Get(0).(func(models.User) models.User); ok {
		return fn(user), args.Error(1)
	}
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) SetUserLastLogin(ctx context.Context, userId string, at int64) error {
	args := m.Called(ctx, userId, at)
	return args.Error(0)
}

func (m *MockStore) TouchUserActivity(ctx context.Context, userId string, at int64) error {
	args := m.Called(ctx, userId, at)
	return args.Error(0)
}

func (m *MockStore) DeleteUser(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockStore) ListItems(ctx context.Context, userId string) ([]models.Item, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *MockStore) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	args := m.Called(ctx, item)
	if fn, ok := args.Get(0).(func(models.Item) models.Item); ok {
		return fn(item), args.Error(1)
	}
	return args.Get(0).(models.Item), args.Error(1)
}

func (m *MockStore) UpdateItem(ctx context.Context, userId string, itemId string, patch models.ItemPatch, updatedAt int64) (models.Item, error) {
	args := m.Called(ctx, userId, itemId, patch, updatedAt)
	return args.Get(0).(models.Item), args.Error(1)
}

func (m *MockStore) DeleteItem(ctx context.Context, userId string, itemId string) error {
	args := m.Called(ctx, userId, itemId)
	return args.Error(0)
}

func (m *MockStore) SetItemOrders(ctx context.Context, userId string, orders []models.ItemOrder, updatedAt int64) (int, error) {
	args := m.Called(ctx, userId, orders, updatedAt)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) DeleteUserItems(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
