package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	cachemocks "github.com/zlnvch/flashlist/cache/mocks"
	mqmocks "github.com/zlnvch/flashlist/mq/mocks"
	"github.com/zlnvch/flashlist/service"
	storemocks "github.com/zlnvch/flashlist/store/mocks"
	"github.com/zlnvch/flashlist/worker"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Helper to setup the service with mocks
func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *mqmocks.MockMQ, *worker.ActivityBatcher) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockMQ := new(mqmocks.MockMQ)

	// Real batcher is used; tests read pushed updates from its channel
	activityBatcher := worker.NewActivityBatcher(mockStore, 1000)

	svc, err := service.NewService(
		mockStore,
		mockCache,
		mockMQ,
		activityBatcher,
		[]byte("secret"),
		0,
	)
	assert.NoError(t, err)

	svc.PasswordCost = bcrypt.MinCost
	svc.Now = func() time.Time { return fixedNow }

	return svc, mockStore, mockCache, mockMQ, activityBatcher
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	call.Run(func(args mock.Arguments) {
		close(done)
	})
	return done
}

func waitFor(t *testing.T, done chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		assert.Fail(t, "timed out waiting for "+what)
	}
}

// expectChange registers the side effects of a successful mutation and
// returns a channel closed once the change event is published.
func expectChange(mockCache *cachemocks.MockCache, userId string) chan struct{} {
	mockCache.On("BumpOutlineVersion", mock.Anything, userId).Return(int64(2), nil).Once()
	return wrapMockWithSignal(mockCache.On("Publish", mock.Anything, "outline:"+userId, mock.Anything).Return(nil).Once())
}

func TestNewService_EmptySecret(t *testing.T) {
	_, err := service.NewService(nil, nil, nil, nil, nil, 0)
	assert.Error(t, err)
}

func TestNewService_DefaultTokenTTL(t *testing.T) {
	svc, err := service.NewService(nil, nil, nil, nil, []byte("s"), 0)
	assert.NoError(t, err)
	assert.Equal(t, service.DefaultTokenTTL, svc.TokenTTL)
}
