package worker

import (
	"context"
	"log"
	"time"

	"github.com/zlnvch/flashlist/store"
)

type ActivityUpdate struct {
	UserId string
	At     int64
}

// flush as soon as this many users are pending
const activityBatchSize = 100

// ActivityBatcher coalesces last-active timestamps so each user costs at
// most one store write per tick.
type ActivityBatcher struct {
	UpdateCh           chan ActivityUpdate
	outlineStore       store.OutlineStore
	tickerMilliseconds int
	done               chan struct{}
}

func NewActivityBatcher(outlineStore store.OutlineStore, tickerMilliseconds int) *ActivityBatcher {
	return &ActivityBatcher{
		UpdateCh:           make(chan ActivityUpdate, 1024),
		outlineStore:       outlineStore,
		tickerMilliseconds: tickerMilliseconds,
		done:               make(chan struct{}),
	}
}

// Push queues an update without blocking; updates are dropped when the
// buffer is full.
func (b *ActivityBatcher) Push(update ActivityUpdate) {
	select {
	case b.UpdateCh <- update:
	default:
		log.Printf("Activity buffer full, dropping update for user %s", update.UserId)
	}
}

// Done is closed once Run has flushed on shutdown.
func (b *ActivityBatcher) Done() <-chan struct{} {
	return b.done
}

func (b *ActivityBatcher) Run(shutdownCtx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	// userId -> latest timestamp
	latest := make(map[string]int64)

	flush := func() {
		if len(latest) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for userId, at := range latest {
			if err := b.outlineStore.TouchUserActivity(ctx, userId, at); err != nil {
				log.Printf("Failed to update activity for user %s: %v", userId, err)
			}
		}
		latest = make(map[string]int64)
	}

	for {
		select {
		case update := <-b.UpdateCh:
			if update.UserId != "" && update.At > latest[update.UserId] {
				latest[update.UserId] = update.At
			}

			if len(latest) >= activityBatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			// Drain what is already buffered
			for {
				select {
				case update := <-b.UpdateCh:
					if update.UserId != "" && update.At > latest[update.UserId] {
						latest[update.UserId] = update.At
					}
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}
