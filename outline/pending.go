package outline

import (
	"context"
	"errors"
	"sync"

	"github.com/zlnvch/flashlist/models"
)

var ErrRolledBack = errors.New("operation rolled back")

// Pending is the second phase of an optimistic mutation. The local change
// has already been applied; exactly one of Confirm or Rollback takes
// effect, whichever comes first.
type Pending struct {
	once       sync.Once
	done       chan struct{}
	confirmed  bool
	err        error
	onConfirm  func(models.Item)
	onRollback func(error)
}

func newPending(onConfirm func(models.Item), onRollback func(error)) *Pending {
	return &Pending{
		done:       make(chan struct{}),
		onConfirm:  onConfirm,
		onRollback: onRollback,
	}
}

// Confirm reconciles the local state with the service's result.
func (p *Pending) Confirm(item models.Item) {
	p.resolve(item, nil)
}

// Rollback undoes or resynchronises the local change.
func (p *Pending) Rollback() {
	p.resolve(models.Item{}, ErrRolledBack)
}

func (p *Pending) resolve(item models.Item, err error) {
	p.once.Do(func() {
		if err == nil {
			p.confirmed = true
			if p.onConfirm != nil {
				p.onConfirm(item)
			}
		} else {
			p.err = err
			if p.onRollback != nil {
				p.onRollback(err)
			}
		}
		close(p.done)
	})
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation is resolved and returns its error.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error the operation was rolled back with, or nil while
// it is unresolved or after it was confirmed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Confirmed reports whether the operation resolved successfully. It is
// only meaningful after Done is closed.
func (p *Pending) Confirmed() bool {
	select {
	case <-p.done:
		return p.confirmed
	default:
		return false
	}
}
