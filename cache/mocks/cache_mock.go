package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) OutlineVersion(ctx context.Context, userId string) (int64, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) BumpOutlineVersion(ctx context.Context, userId string) (int64, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) GetOutline(ctx context.Context, userId string, version int64) ([]byte, bool, error) {
	args := m.Called(ctx, userId, version)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Bool(1), args.Error(2)
}

func (m *MockCache) SetOutline(ctx context.Context, userId string, version int64, data []byte) error {
	args := m.Called(ctx, userId, version, data)
	return args.Error(0)
}

func (m *MockCache) RevokeToken(ctx context.Context, tokenId string, ttl time.Duration) error {
	args := m.Called(ctx, tokenId, ttl)
	return args.Error(0)
}

func (m *MockCache) IsTokenRevoked(ctx context.Context, tokenId string) (bool, error) {
	args := m.Called(ctx, tokenId)
	return args.Bool(0), args.Error(1)
}
