package outline

import (
	"slices"
	"strings"

	"github.com/zlnvch/flashlist/models"
)

const headerCommand = "/h"

// Enter handles the return key on an item. "/h" and "/h text" turn the
// line into a header; anything else opens a new item of the same kind
// below it.
func (s *Store) Enter(id string) *Pending {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	item := s.items[i]

	switch {
	case strings.TrimSpace(item.Text) == headerCommand:
		defer s.mu.Unlock()
		return s.updateLocked(id, models.ItemPatch{Text: models.Ptr(""), Type: models.Ptr(models.ItemHeader)})
	case strings.HasPrefix(item.Text, headerCommand+" "):
		defer s.mu.Unlock()
		text := strings.Replace(item.Text, headerCommand+" ", "", 1)
		return s.updateLocked(id, models.ItemPatch{Text: models.Ptr(text), Type: models.Ptr(models.ItemHeader)})
	}

	s.mu.Unlock()
	return s.AddItem(id, item.Level, item.Type)
}

// Backspace deletes the item when its text is already empty.
func (s *Store) Backspace(id string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.items[i].Text != "" {
		return nil
	}
	return s.deleteLocked(id)
}

// ToggleComplete flips a task's completion. A task that becomes complete
// also sinks below the open tasks of its section. Headers cannot be
// completed.
func (s *Store) ToggleComplete(id string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.items[i].Type == models.ItemHeader {
		return nil
	}
	completed := !s.items[i].Completed
	p := s.updateLocked(id, models.ItemPatch{Completed: models.Ptr(completed)})
	if completed {
		s.moveCompletedLocked(id)
	}
	return p
}

func (s *Store) BeginDrag(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(id) >= 0 {
		s.dragging = id
	}
}

// EndDrag drops the dragged item onto overId's position. Dropping onto
// itself or nowhere only ends the drag.
func (s *Store) EndDrag(overId string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.dragging
	s.dragging = ""
	if active == "" || overId == "" || overId == active {
		return nil
	}

	from := s.indexLocked(active)
	to := s.indexLocked(overId)
	if from < 0 || to < 0 {
		return nil
	}

	ids := s.idsLocked()
	ids = slices.Delete(ids, from, from+1)
	ids = slices.Insert(ids, to, active)
	return s.reorderLocked(ids)
}

// Move places the item at position to (0-based), like a drag would.
func (s *Store) Move(id string, to int) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.indexLocked(id)
	if from < 0 || to < 0 || to >= len(s.items) || from == to {
		return nil
	}

	ids := s.idsLocked()
	ids = slices.Delete(ids, from, from+1)
	ids = slices.Insert(ids, to, id)
	return s.reorderLocked(ids)
}
