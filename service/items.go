package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/gofrs/uuid/v5"
	"github.com/zlnvch/flashlist/cache"
	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/store"
	"github.com/zlnvch/flashlist/worker"
)

// ListItems returns the outline in key order, served from the versioned
// cache when possible.
func (s *Service) ListItems(ctx context.Context, userId string) ([]models.Item, error) {
	version, versionErr := s.Cache.OutlineVersion(ctx, userId)
	if versionErr == nil {
		data, ok, err := s.Cache.GetOutline(ctx, userId, version)
		if err == nil && ok {
			var items []models.Item
			if err := json.Unmarshal(data, &items); err == nil {
				for i := range items {
					items[i].UserId = userId
				}
				return items, nil
			}
		}
	}

	items, err := s.Store.ListItems(ctx, userId)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Item{}
	}

	// Only fill when the version read succeeded, otherwise the fill could
	// land under a version a writer has already bumped past
	if versionErr == nil {
		if data, err := json.Marshal(items); err == nil {
			if err := s.Cache.SetOutline(ctx, userId, version, data); err != nil {
				log.Printf("Failed to cache outline for user %s: %v", userId, err)
			}
		}
	}

	return items, nil
}

type CreateItemParams struct {
	User      models.User
	SessionId string
	Item      models.NewItem
}

func (s *Service) CreateItem(ctx context.Context, params CreateItemParams) (models.Item, error) {
	// 1. Defaults and validation
	newItem := params.Item
	if newItem.Type == "" {
		newItem.Type = models.ItemTask
	}
	if err := ValidateText(newItem.Text); err != nil {
		return models.Item{}, err
	}
	if err := ValidateLevel(newItem.Level); err != nil {
		return models.Item{}, err
	}
	if err := ValidateType(newItem.Type); err != nil {
		return models.Item{}, err
	}

	// 2. Position
	order, err := s.nextOrder(ctx, params.User.Id, newItem.AfterId)
	if err != nil {
		return models.Item{}, err
	}

	// 3. ID Generation
	itemId, err := uuid.NewV7()
	if err != nil {
		return models.Item{}, err
	}

	now := s.nowMillis()
	item, err := s.Store.CreateItem(ctx, models.Item{
		Id:        itemId.String(),
		UserId:    params.User.Id,
		Text:      newItem.Text,
		Level:     newItem.Level,
		Type:      newItem.Type,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return models.Item{}, err
	}

	s.outlineChanged(ctx, params.User.Id, params.SessionId)
	return item, nil
}

type UpdateItemParams struct {
	User      models.User
	SessionId string
	ItemId    string
	Patch     models.ItemPatch
}

func (s *Service) UpdateItem(ctx context.Context, params UpdateItemParams) (models.Item, error) {
	if params.ItemId == "" {
		return models.Item{}, invalidParams("item id is required")
	}
	if err := ValidatePatch(params.Patch); err != nil {
		return models.Item{}, err
	}

	item, err := s.Store.UpdateItem(ctx, params.User.Id, params.ItemId, params.Patch, s.nowMillis())
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.Item{}, ErrNotFound
		}
		return models.Item{}, err
	}

	s.outlineChanged(ctx, params.User.Id, params.SessionId)
	return item, nil
}

type DeleteItemParams struct {
	User      models.User
	SessionId string
	ItemId    string
}

func (s *Service) DeleteItem(ctx context.Context, params DeleteItemParams) error {
	if params.ItemId == "" {
		return invalidParams("item id is required")
	}

	err := s.Store.DeleteItem(ctx, params.User.Id, params.ItemId)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrItemNotFound):
			return ErrNotFound
		case errors.Is(err, store.ErrLastItem):
			return fmt.Errorf("%w: cannot delete the last item", ErrConflict)
		}
		return err
	}

	s.outlineChanged(ctx, params.User.Id, params.SessionId)
	return nil
}

type ReorderParams struct {
	User      models.User
	SessionId string
	Items     []models.ItemOrder
}

// ReorderItems overwrites the keys of exactly the listed ids and returns
// how many of them existed.
func (s *Service) ReorderItems(ctx context.Context, params ReorderParams) (int, error) {
	if params.Items == nil {
		return 0, invalidParams("items is required")
	}
	for _, o := range params.Items {
		if o.Id == "" {
			return 0, invalidParams("every entry needs an id")
		}
		if math.IsNaN(o.Order) || math.IsInf(o.Order, 0) {
			return 0, invalidParams("order of %s must be a finite number", o.Id)
		}
	}
	if len(params.Items) == 0 {
		return 0, nil
	}

	updated, err := s.Store.SetItemOrders(ctx, params.User.Id, params.Items, s.nowMillis())
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		s.outlineChanged(ctx, params.User.Id, params.SessionId)
	}
	return updated, nil
}

func (s *Service) bumpVersion(ctx context.Context, userId string) {
	if _, err := s.Cache.BumpOutlineVersion(ctx, userId); err != nil {
		log.Printf("Failed to bump outline version for user %s: %v", userId, err)
	}
}

// outlineChanged runs after every successful mutation. The version bump
// is synchronous so the next read cannot see the old outline.
func (s *Service) outlineChanged(ctx context.Context, userId string, sessionId string) {
	s.bumpVersion(ctx, userId)

	at := s.nowMillis()
	// Async side-effects - the caller already has its result
	go func() {
		msg := models.OutlineChanged{UserId: userId, SessionId: sessionId}
		if msgBytes, err := json.Marshal(msg); err == nil {
			if err := s.Cache.Publish(context.Background(), cache.OutlineChannel(userId), msgBytes); err != nil {
				log.Printf("Failed to publish outline change for user %s: %v", userId, err)
			}
		}

		if s.ActivityBatcher != nil {
			s.ActivityBatcher.Push(worker.ActivityUpdate{UserId: userId, At: at})
		}
	}()
}
