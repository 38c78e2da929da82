package outline

import (
	"context"
	"log"
	"slices"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/flashlist/models"
)

type Direction int

const (
	In Direction = iota
	Out
)

func clampLevel(level int) int {
	return max(models.LevelMin, min(level, models.LevelMax))
}

// nextLevel is the level after indenting item one step. Headers never
// move left of where they are.
func nextLevel(item models.Item, dir Direction) int {
	if dir == In {
		return min(item.Level+1, models.LevelMax)
	}
	step := 1
	if item.Type == models.ItemHeader {
		step = 0
	}
	return max(item.Level-step, models.LevelMin)
}

func newTempId() string {
	id, err := uuid.NewV4()
	if err != nil {
		// crypto/rand failing is not recoverable here
		panic(err)
	}
	return tempPrefix + id.String()
}

// AddItem inserts an empty item after afterId (at the end when afterId is
// unknown) and focuses it. The returned Pending swaps the temporary id for
// the server's on success and removes the item on failure.
func (s *Store) AddItem(afterId string, level int, itemType models.ItemType) *Pending {
	if !itemType.Valid() {
		itemType = models.ItemTask
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	tempId := newTempId()
	item := models.Item{
		Id:        tempId,
		Level:     clampLevel(level),
		Type:      itemType,
		CreatedAt: s.clock.Now().UnixMilli(),
	}

	at := len(s.items)
	if i := s.indexLocked(afterId); i >= 0 {
		at = i + 1
	}
	s.items = slices.Insert(s.items, at, item)
	s.focus = tempId
	s.temps[tempId] = &tempState{}

	// The service only knows confirmed ids
	serverAfterId := ""
	for j := at - 1; j >= 0; j-- {
		if !isTemp(s.items[j].Id) {
			serverAfterId = s.items[j].Id
			break
		}
	}

	req := models.NewItem{Text: item.Text, Level: item.Level, Type: item.Type, AfterId: serverAfterId}
	return s.send(
		func(ctx context.Context) (models.Item, error) {
			return s.remote.CreateItem(ctx, req)
		},
		func(created models.Item) { s.confirmCreate(tempId, created) },
		func(err error) { s.rollbackCreate(tempId, err) },
	)
}

func (s *Store) confirmCreate(tempId string, created models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.temps[tempId]
	delete(s.temps, tempId)

	if state != nil && state.deleted {
		// Removed locally while the create was in flight
		s.send(
			func(ctx context.Context) (models.Item, error) {
				return models.Item{}, s.remote.DeleteItem(ctx, created.Id)
			},
			nil,
			func(err error) { s.failed("Delete item", created.Id, err) },
		)
		s.reorderIfSettledLocked()
		return
	}

	i := s.indexLocked(tempId)
	if i < 0 {
		// The temporary item is gone locally; fetch the created one
		s.reorderIfSettledLocked()
		s.startReloadLocked()
		return
	}

	// A reload may already have brought in the server copy
	if j := s.indexLocked(created.Id); j >= 0 {
		s.items = slices.Delete(s.items, j, j+1)
		if j < i {
			i--
		}
	}

	local := s.items[i]
	confirmed := created
	confirmed.Text = local.Text
	confirmed.Completed = local.Completed
	confirmed.Level = local.Level
	confirmed.Type = local.Type
	s.items[i] = confirmed

	if s.focus == tempId {
		s.focus = created.Id
	}
	if s.dragging == tempId {
		s.dragging = created.Id
	}

	// Edits made before confirmation go out as one patch
	if patch := diff(created, local); !patch.IsEmpty() {
		id := created.Id
		s.send(
			func(ctx context.Context) (models.Item, error) {
				return s.remote.UpdateItem(ctx, id, patch)
			},
			nil,
			func(err error) { s.failed("Update item", id, err) },
		)
	}

	if !s.inOrderLocked(i) {
		s.needsReorder = true
	}
	s.reorderIfSettledLocked()
}

func (s *Store) rollbackCreate(tempId string, err error) {
	s.mu.Lock()
	delete(s.temps, tempId)
	if i := s.indexLocked(tempId); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
		if s.focus == tempId {
			s.focus = ""
			if len(s.items) > 0 {
				s.focus = s.items[max(i-1, 0)].Id
			}
		}
		if s.dragging == tempId {
			s.dragging = ""
		}
	}
	s.reorderIfSettledLocked()
	s.mu.Unlock()

	log.Printf("Create item failed: %v", err)
	if isUnauthorized(err) {
		s.unauthorized()
	}
}

// diff returns the fields of local that differ from server.
func diff(server models.Item, local models.Item) models.ItemPatch {
	var patch models.ItemPatch
	if local.Text != server.Text {
		patch.Text = models.Ptr(local.Text)
	}
	if local.Completed != server.Completed {
		patch.Completed = models.Ptr(local.Completed)
	}
	if local.Level != server.Level {
		patch.Level = models.Ptr(local.Level)
	}
	if local.Type != server.Type {
		patch.Type = models.Ptr(local.Type)
	}
	return patch
}

// inOrderLocked reports whether the confirmed item at i has an order key
// between its nearest confirmed neighbours.
func (s *Store) inOrderLocked(i int) bool {
	order := s.items[i].Order
	for j := i - 1; j >= 0; j-- {
		if !isTemp(s.items[j].Id) {
			if s.items[j].Order >= order {
				return false
			}
			break
		}
	}
	for j := i + 1; j < len(s.items); j++ {
		if !isTemp(s.items[j].Id) {
			if s.items[j].Order <= order {
				return false
			}
			break
		}
	}
	return true
}

func (s *Store) reorderIfSettledLocked() {
	if s.needsReorder && len(s.temps) == 0 {
		s.sendReorderLocked()
	}
}

// sendReorderLocked renumbers the whole local sequence 0..n-1 and sends it.
func (s *Store) sendReorderLocked() *Pending {
	s.needsReorder = false
	ids := make([]string, len(s.items))
	for i := range s.items {
		ids[i] = s.items[i].Id
		s.items[i].Order = float64(i)
	}
	orders := models.Sequential(ids)

	return s.send(
		func(ctx context.Context) (models.Item, error) {
			_, err := s.remote.Reorder(ctx, orders)
			return models.Item{}, err
		},
		nil,
		func(err error) { s.failed("Reorder", "", err) },
	)
}

// UpdateItem merges patch into the item. A text-only change is sent after
// the debounce delay, replacing any text write still waiting for the same
// item; other changes are sent at once. Returns nil when nothing is sent
// immediately.
func (s *Store) UpdateItem(id string, patch models.ItemPatch) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, patch)
}

func (s *Store) updateLocked(id string, patch models.ItemPatch) *Pending {
	if s.closed || patch.IsEmpty() {
		return nil
	}
	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	if patch.Level != nil {
		patch.Level = models.Ptr(clampLevel(*patch.Level))
	}
	if patch.Type != nil && !patch.Type.Valid() {
		patch.Type = nil
		if patch.IsEmpty() {
			return nil
		}
	}

	s.items[i] = patch.Apply(s.items[i])

	if isTemp(id) {
		// Sent as a diff once the create is confirmed
		return nil
	}

	if patch.TextOnly() {
		s.debounceTextLocked(id, *patch.Text)
		return nil
	}

	if patch.Text != nil {
		// This write carries the newest text
		s.cancelTimerLocked(id)
	}
	return s.send(
		func(ctx context.Context) (models.Item, error) {
			return s.remote.UpdateItem(ctx, id, patch)
		},
		nil,
		func(err error) { s.failed("Update item", id, err) },
	)
}

func (s *Store) debounceTextLocked(id string, text string) {
	s.cancelTimerLocked(id)
	entry := &debounced{text: text}
	entry.timer = s.clock.AfterFunc(s.opts.DebounceDelay, func() {
		s.fireDebounced(id, entry)
	})
	s.timers[id] = entry
}

func (s *Store) fireDebounced(id string, entry *debounced) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Replaced or cancelled after the timer had already started firing
	if s.closed || s.timers[id] != entry {
		return
	}
	delete(s.timers, id)
	s.sendTextLocked(id, entry.text)
}

func (s *Store) sendTextLocked(id string, text string) *Pending {
	patch := models.ItemPatch{Text: models.Ptr(text)}
	return s.send(
		func(ctx context.Context) (models.Item, error) {
			return s.remote.UpdateItem(ctx, id, patch)
		},
		nil,
		func(err error) { s.failed("Update item", id, err) },
	)
}

// DeleteItem removes the item unless it is the only one left. Focus moves
// to the previous item, or the next one when there is none before it.
func (s *Store) DeleteItem(id string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) *Pending {
	if s.closed || len(s.items) <= 1 {
		return nil
	}
	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}

	next := 1
	if i > 0 {
		next = i - 1
	}
	s.focus = s.items[next].Id
	if s.dragging == id {
		s.dragging = ""
	}

	s.items = slices.Delete(s.items, i, i+1)
	s.cancelTimerLocked(id)

	if state, ok := s.temps[id]; ok {
		state.deleted = true
		return nil
	}

	return s.send(
		func(ctx context.Context) (models.Item, error) {
			return models.Item{}, s.remote.DeleteItem(ctx, id)
		},
		nil,
		func(err error) { s.failed("Delete item", id, err) },
	)
}

// IndentItem moves the item one level in or out within 0..4.
func (s *Store) IndentItem(id string, dir Direction) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	level := nextLevel(s.items[i], dir)
	if level == s.items[i].Level {
		return nil
	}
	return s.updateLocked(id, models.ItemPatch{Level: models.Ptr(level)})
}

// Reorder installs a new sequence of the same ids and sends positions
// 0..n-1 for all of them. While creates are in flight the sequence is
// sent once they have all settled.
func (s *Store) Reorder(ids []string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reorderLocked(ids)
}

func (s *Store) reorderLocked(ids []string) *Pending {
	if s.closed || len(ids) != len(s.items) {
		return nil
	}

	byId := make(map[string]models.Item, len(s.items))
	for _, item := range s.items {
		byId[item.Id] = item
	}
	next := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		item, ok := byId[id]
		if !ok {
			log.Printf("Ignoring reorder: unknown or repeated id %s", id)
			return nil
		}
		delete(byId, id)
		next = append(next, item)
	}
	s.items = next

	if len(s.temps) > 0 {
		s.needsReorder = true
		return nil
	}
	return s.sendReorderLocked()
}

func (s *Store) idsLocked() []string {
	ids := make([]string, len(s.items))
	for i, item := range s.items {
		ids[i] = item.Id
	}
	return ids
}

// MoveCompletedToBottom moves a completed task below the tasks that follow
// it, stopping at the next header.
func (s *Store) MoveCompletedToBottom(id string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveCompletedLocked(id)
}

func (s *Store) moveCompletedLocked(id string) *Pending {
	i := s.indexLocked(id)
	if i < 0 || !s.items[i].Completed {
		return nil
	}

	boundary := i
	for j := i + 1; j < len(s.items); j++ {
		if s.items[j].Type == models.ItemHeader {
			break
		}
		boundary = j
	}
	if boundary == i {
		return nil
	}

	ids := s.idsLocked()
	moved := ids[i]
	ids = slices.Delete(ids, i, i+1)
	ids = slices.Insert(ids, boundary, moved)
	return s.reorderLocked(ids)
}
