// Package outline holds the in-memory outline of one signed-in user and
// keeps it in step with the list service. Every mutation is applied
// locally first; the matching request runs in the background and its
// result either reconciles server-assigned fields or resynchronises the
// outline.
package outline

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zlnvch/flashlist/client"
	"github.com/zlnvch/flashlist/clock"
	"github.com/zlnvch/flashlist/models"
)

const (
	DefaultDebounceDelay  = 800 * time.Millisecond
	DefaultRequestTimeout = client.DefaultTimeout

	tempPrefix = "tmp-"
)

// Remote is the part of the list service the store needs.
type Remote interface {
	ListItems(ctx context.Context) ([]models.Item, error)
	CreateItem(ctx context.Context, item models.NewItem) (models.Item, error)
	UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (models.Item, error)
	DeleteItem(ctx context.Context, id string) error
	Reorder(ctx context.Context, orders []models.ItemOrder) (int, error)
}

// Legacy is a locally kept outline from before the account existed.
type Legacy interface {
	Load() ([]models.Item, error)
	Remove() error
}

// Feed delivers change events for the signed-in user.
type Feed interface {
	Watch(ctx context.Context, onChange func(client.ChangeEvent)) error
}

type Options struct {
	Clock          clock.Clock
	DebounceDelay  time.Duration
	RequestTimeout time.Duration
	// Legacy is migrated into an empty account and used as the fallback
	// when the first load fails.
	Legacy Legacy
	// Starter is shown when the first load fails and there is no legacy
	// outline. Defaults to DefaultStarter.
	Starter []models.Item
	// OnUnauthorized runs whenever the service rejects the session.
	OnUnauthorized func()
	// OnLoad receives the outline after every successful load.
	OnLoad func(items []models.Item)
}

type debounced struct {
	timer clock.Timer
	text  string
}

type tempState struct {
	deleted bool
}

type Store struct {
	remote Remote
	opts   Options
	clock  clock.Clock

	mu       sync.Mutex
	items    []models.Item
	focus    string
	dragging string
	loaded   bool
	loadGen  int
	closed   bool

	// item id -> pending text write
	timers map[string]*debounced
	// temporary id -> state while its create is in flight
	temps map[string]*tempState
	// the local sequence must be sent as a full reorder once no
	// temporary ids remain
	needsReorder bool

	inflight sync.WaitGroup
}

func New(remote Remote, opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = DefaultDebounceDelay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Store{
		remote: remote,
		opts:   opts,
		clock:  opts.Clock,
		timers: make(map[string]*debounced),
		temps:  make(map[string]*tempState),
	}
}

// Items returns a copy of the outline in display order.
func (s *Store) Items() []models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Store) Item(id string) (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	return models.Item{}, false
}

func (s *Store) Focus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

func (s *Store) Dragging() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// PendingWrites is the number of debounced writes not yet sent.
func (s *Store) PendingWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Wait blocks until every request started so far has completed.
func (s *Store) Wait() {
	s.inflight.Wait()
}

func isTemp(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.items, func(item models.Item) bool { return item.Id == id })
}

func (s *Store) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opts.RequestTimeout)
}

// send runs fn in the background and resolves the returned Pending with
// its result. Must be called with mu held; returns nil once closed.
func (s *Store) send(fn func(ctx context.Context) (models.Item, error), onConfirm func(models.Item), onRollback func(error)) *Pending {
	if s.closed {
		return nil
	}

	p := newPending(onConfirm, onRollback)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := s.requestContext()
		defer cancel()

		item, err := fn(ctx)
		if err != nil {
			p.resolve(models.Item{}, err)
			return
		}
		p.Confirm(item)
	}()
	return p
}

// failed handles a rejected write: an unauthorized session is reported,
// anything else resynchronises the outline from the service.
func (s *Store) failed(op string, id string, err error) {
	if isUnauthorized(err) {
		s.unauthorized()
		return
	}

	log.Printf("%s failed: %v", op, err)
	s.mu.Lock()
	if id != "" {
		s.cancelTimerLocked(id)
	}
	s.mu.Unlock()
	s.reloadAsync()
}

func (s *Store) unauthorized() {
	if s.opts.OnUnauthorized != nil {
		s.opts.OnUnauthorized()
	}
}

func (s *Store) reloadAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startReloadLocked()
}

func (s *Store) startReloadLocked() {
	if s.closed {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := s.requestContext()
		defer cancel()
		if err := s.Load(ctx); err != nil {
			log.Printf("Reload failed: %v", err)
		}
	}()
}

func isUnauthorized(err error) bool {
	return errors.Is(err, client.ErrUnauthorized)
}

// Load replaces the outline with the service's copy. An empty account is
// first seeded from the legacy outline. When the very first load fails
// the legacy outline or the starter is shown instead; later failures
// keep the current outline.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	items, err := s.remote.ListItems(ctx)
	if err == nil && len(items) == 0 {
		items, err = s.migrate(ctx, items)
	}

	s.mu.Lock()
	if gen != s.loadGen {
		// A later load owns the outline
		s.mu.Unlock()
		return err
	}

	if err != nil {
		if isUnauthorized(err) {
			s.mu.Unlock()
			s.unauthorized()
			return err
		}
		if !s.loaded {
			s.replaceLocked(s.fallbackLocked())
		}
		s.mu.Unlock()
		return err
	}

	s.replaceLocked(items)
	s.loaded = true
	loaded := slices.Clone(s.items)
	s.mu.Unlock()

	if s.opts.OnLoad != nil {
		s.opts.OnLoad(loaded)
	}
	return nil
}

// migrate replays the legacy outline into an empty account and returns
// the reloaded outline. Failures leave the account empty and the legacy
// outline in place.
func (s *Store) migrate(ctx context.Context, empty []models.Item) ([]models.Item, error) {
	if s.opts.Legacy == nil {
		return empty, nil
	}
	legacy, err := s.opts.Legacy.Load()
	if err != nil {
		log.Printf("Failed to read legacy outline: %v", err)
		return empty, nil
	}
	if len(legacy) == 0 {
		return empty, nil
	}

	for _, item := range legacy {
		itemType := item.Type
		if !itemType.Valid() {
			itemType = models.ItemTask
		}
		_, err := s.remote.CreateItem(ctx, models.NewItem{
			Text:  item.Text,
			Level: clampLevel(item.Level),
			Type:  itemType,
		})
		if err != nil {
			if isUnauthorized(err) {
				return nil, err
			}
			log.Printf("Migration failed: %v", err)
			return empty, nil
		}
	}

	if err := s.opts.Legacy.Remove(); err != nil {
		log.Printf("Failed to remove legacy outline: %v", err)
	}
	return s.remote.ListItems(ctx)
}

func (s *Store) fallbackLocked() []models.Item {
	if s.opts.Legacy != nil {
		if items, err := s.opts.Legacy.Load(); err == nil && len(items) > 0 {
			return items
		} else if err != nil {
			log.Printf("Failed to read legacy outline: %v", err)
		}
	}
	if s.opts.Starter != nil {
		return slices.Clone(s.opts.Starter)
	}
	return DefaultStarter(s.clock.Now().UnixMilli())
}

// replaceLocked installs items, keeping text edits that are still waiting
// to be sent and items whose create is still in flight.
func (s *Store) replaceLocked(items []models.Item) {
	next := slices.Clone(items)
	for i := range next {
		if entry, ok := s.timers[next[i].Id]; ok {
			next[i].Text = entry.text
		}
	}
	s.items = s.withPendingCreatesLocked(next)

	if s.indexLocked(s.focus) < 0 {
		s.focus = ""
	}
	if s.indexLocked(s.dragging) < 0 {
		s.dragging = ""
	}
}

// withPendingCreatesLocked places every unconfirmed item of the current
// outline into next, right after the confirmed item it followed. Items
// whose anchor is gone go to the end.
func (s *Store) withPendingCreatesLocked(next []models.Item) []models.Item {
	if len(s.temps) == 0 {
		return next
	}

	anchor := ""
	for _, item := range s.items {
		if !isTemp(item.Id) {
			anchor = item.Id
			continue
		}
		if _, ok := s.temps[item.Id]; !ok {
			continue
		}

		at := 0
		if anchor != "" {
			at = len(next)
			if i := slices.IndexFunc(next, func(n models.Item) bool { return n.Id == anchor }); i >= 0 {
				at = i + 1
			}
		}
		// Keep the order of consecutive unconfirmed items
		for at < len(next) && isTemp(next[at].Id) {
			at++
		}
		next = slices.Insert(next, at, item)
	}
	return next
}

func (s *Store) cancelTimerLocked(id string) {
	if entry, ok := s.timers[id]; ok {
		entry.timer.Stop()
		delete(s.timers, id)
	}
}

// Flush sends every pending debounced write now and waits for them.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	var pendings []*Pending
	for id, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, id)
		if p := s.sendTextLocked(id, entry.text); p != nil {
			pendings = append(pendings, p)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, p := range pendings {
		if err := p.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close cancels every pending debounced write and waits for requests
// already in flight. Nothing is sent after Close returns.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	for id, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.inflight.Wait()
}

// Watch reloads the outline whenever another session changes it, until
// ctx ends or the feed fails.
func (s *Store) Watch(ctx context.Context, feed Feed) error {
	return feed.Watch(ctx, func(event client.ChangeEvent) {
		if event.Own {
			return
		}
		if err := s.Load(ctx); err != nil {
			log.Printf("Reload after remote change failed: %v", err)
		}
	})
}
