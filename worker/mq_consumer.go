package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/zlnvch/flashlist/cache"
	"github.com/zlnvch/flashlist/mq"
	"github.com/zlnvch/flashlist/store"
)

type MQConsumer struct {
	purgeQueue   mq.MessageQueue
	outlineStore store.OutlineStore
	outlineCache cache.OutlineCache
}

func NewMQConsumer(purgeQueue mq.MessageQueue, outlineStore store.OutlineStore, outlineCache cache.OutlineCache) *MQConsumer {
	return &MQConsumer{
		purgeQueue:   purgeQueue,
		outlineStore: outlineStore,
		outlineCache: outlineCache,
	}
}

// Allow up to 5 minutes for the throttled deletion of a large outline
const visibilityTimeout = 300

func (mqConsumer *MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.purgeQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			if shutdownCtx.Err() != nil {
				return
			}
			continue
		}

		if err := mqConsumer.Handle(msg); err != nil {
			log.Printf("mqConsumer handle error: %v", err)
		}
	}
}

// Handle processes one message. Malformed and unknown messages are
// deleted; a failed purge is left on the queue to be retried.
func (mqConsumer *MQConsumer) Handle(msg *mq.Message) error {
	job, err := mq.DecodeJob(msg.Body)
	if err != nil {
		log.Printf("Dropping message: %v", err)
		return mqConsumer.purgeQueue.Delete(context.Background(), msg)
	}

	switch job.Type {
	case mq.PurgeUserItems:
		// timeout should be a little less than queue visibility timeout
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
		defer cancel()

		if err := mqConsumer.outlineStore.DeleteUserItems(ctx, job.UserId); err != nil {
			return err
		}
		if _, err := mqConsumer.outlineCache.BumpOutlineVersion(ctx, job.UserId); err != nil {
			log.Printf("Failed to bump outline version for user %s: %v", job.UserId, err)
		}
		log.Printf("Purged items for user %s", job.UserId)
	default:
		log.Printf("Dropping message of unknown type %q", job.Type)
	}

	return mqConsumer.purgeQueue.Delete(context.Background(), msg)
}
