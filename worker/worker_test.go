package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	cachemocks "github.com/zlnvch/flashlist/cache/mocks"
	"github.com/zlnvch/flashlist/mq"
	mqmocks "github.com/zlnvch/flashlist/mq/mocks"
	storemocks "github.com/zlnvch/flashlist/store/mocks"
	"github.com/zlnvch/flashlist/worker"
)

func waitDone(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "timed out waiting for "+what)
	}
}

func TestActivityBatcher_KeepsLatestPerUser(t *testing.T) {
	mockStore := new(storemocks.MockStore)
	mockStore.On("TouchUserActivity", mock.Anything, "u1", int64(300)).Return(nil).Once()
	mockStore.On("TouchUserActivity", mock.Anything, "u2", int64(50)).Return(nil).Once()

	// A long tick so only the shutdown flush writes
	batcher := worker.NewActivityBatcher(mockStore, 60000)
	ctx, cancel := context.WithCancel(context.Background())
	go batcher.Run(ctx)

	batcher.Push(worker.ActivityUpdate{UserId: "u1", At: 100})
	batcher.Push(worker.ActivityUpdate{UserId: "u1", At: 300})
	batcher.Push(worker.ActivityUpdate{UserId: "u1", At: 200})
	batcher.Push(worker.ActivityUpdate{UserId: "u2", At: 50})
	batcher.Push(worker.ActivityUpdate{At: 999})

	cancel()
	waitDone(t, batcher.Done(), "batcher shutdown")

	mockStore.AssertExpectations(t)
	mockStore.AssertNumberOfCalls(t, "TouchUserActivity", 2)
}

func TestActivityBatcher_FlushesOnTick(t *testing.T) {
	mockStore := new(storemocks.MockStore)
	flushed := make(chan struct{})
	mockStore.On("TouchUserActivity", mock.Anything, "u1", int64(100)).
		Run(func(mock.Arguments) { close(flushed) }).
		Return(nil).Once()

	batcher := worker.NewActivityBatcher(mockStore, 10)
	ctx, cancel := context.WithCancel(context.Background())
	go batcher.Run(ctx)

	batcher.Push(worker.ActivityUpdate{UserId: "u1", At: 100})
	waitDone(t, flushed, "tick flush")

	cancel()
	waitDone(t, batcher.Done(), "batcher shutdown")
	mockStore.AssertNumberOfCalls(t, "TouchUserActivity", 1)
}

func setupConsumer() (*worker.MQConsumer, *mqmocks.MockMQ, *storemocks.MockStore, *cachemocks.MockCache) {
	mockMQ := new(mqmocks.MockMQ)
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	return worker.NewMQConsumer(mockMQ, mockStore, mockCache), mockMQ, mockStore, mockCache
}

func purgeMessage(t *testing.T, userId string) *mq.Message {
	t.Helper()
	body, err := mq.EncodeJob(mq.Job{Type: mq.PurgeUserItems, UserId: userId, RequestedAt: 1})
	assert.NoError(t, err)
	return &mq.Message{Id: "receipt-" + userId, Body: body}
}

func TestMQConsumer_PurgesUserItems(t *testing.T) {
	consumer, mockMQ, mockStore, mockCache := setupConsumer()
	msg := purgeMessage(t, "u1")

	mockStore.On("DeleteUserItems", mock.Anything, "u1").Return(nil).Once()
	mockCache.On("BumpOutlineVersion", mock.Anything, "u1").Return(int64(2), nil).Once()
	mockMQ.On("Delete", mock.Anything, msg).Return(nil).Once()

	assert.NoError(t, consumer.Handle(msg))

	mockStore.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockMQ.AssertExpectations(t)
}

func TestMQConsumer_FailedPurgeStaysQueued(t *testing.T) {
	consumer, mockMQ, mockStore, _ := setupConsumer()
	msg := purgeMessage(t, "u1")

	mockStore.On("DeleteUserItems", mock.Anything, "u1").Return(errors.New("throttled")).Once()

	assert.Error(t, consumer.Handle(msg))
	mockMQ.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestMQConsumer_DropsMalformedAndUnknown(t *testing.T) {
	consumer, mockMQ, mockStore, _ := setupConsumer()

	malformed := &mq.Message{Id: "r1", Body: "{"}
	unknown := &mq.Message{Id: "r2", Body: `{"type":"reindex","userId":"u1"}`}
	mockMQ.On("Delete", mock.Anything, malformed).Return(nil).Once()
	mockMQ.On("Delete", mock.Anything, unknown).Return(nil).Once()

	assert.NoError(t, consumer.Handle(malformed))
	assert.NoError(t, consumer.Handle(unknown))

	mockMQ.AssertExpectations(t)
	mockStore.AssertNotCalled(t, "DeleteUserItems", mock.Anything, mock.Anything)
}

func TestMQConsumer_RunStopsOnShutdown(t *testing.T) {
	consumer, mockMQ, mockStore, mockCache := setupConsumer()
	msg := purgeMessage(t, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	mockMQ.On("Receive", mock.Anything, int32(300)).Return(msg, nil).Once()
	mockMQ.On("Receive", mock.Anything, int32(300)).Return(nil, nil).Once()
	mockMQ.On("Receive", mock.Anything, int32(300)).
		Run(func(args mock.Arguments) {
			cancel()
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled)
	mockStore.On("DeleteUserItems", mock.Anything, "u1").Return(nil).Once()
	mockCache.On("BumpOutlineVersion", mock.Anything, "u1").Return(int64(1), nil).Once()
	mockMQ.On("Delete", mock.Anything, msg).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()
	waitDone(t, done, "consumer shutdown")

	mockStore.AssertExpectations(t)
	mockMQ.AssertExpectations(t)
}
