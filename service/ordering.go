package service

import (
	"context"
	"math"

	"github.com/zlnvch/flashlist/models"
)

// Gaps narrower than this trigger renumbering before an insert
const minOrderGap = 1e-6

// orderAfter returns the key for a new item placed right after afterId in
// items (sorted by key). found is false when afterId is empty or unknown.
// needsRebalance is set when the gap to the successor is too narrow to
// split.
func orderAfter(items []models.Item, afterId string) (order float64, found bool, needsRebalance bool) {
	if afterId != "" {
		for i, item := range items {
			if item.Id != afterId {
				continue
			}
			k := item.Order
			// Smallest key strictly greater than k
			successor := math.Inf(1)
			for _, other := range items[i+1:] {
				if other.Order > k {
					successor = other.Order
					break
				}
			}
			if math.IsInf(successor, 1) {
				return k + 0.5, true, false
			}
			gap := successor - k
			if gap < minOrderGap {
				return 0, true, true
			}
			return k + min(0.5, gap/2), true, false
		}
	}

	return orderAtEnd(items), false, false
}

func orderAtEnd(items []models.Item) float64 {
	if len(items) == 0 {
		return 0
	}
	last := items[0].Order
	for _, item := range items[1:] {
		last = max(last, item.Order)
	}
	return last + 1
}

// rebalance renumbers the outline to 0..n-1 in its current order and
// returns the renumbered copy.
func (s *Service) rebalance(ctx context.Context, userId string, items []models.Item) ([]models.Item, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Id
	}
	orders := models.Sequential(ids)
	if _, err := s.Store.SetItemOrders(ctx, userId, orders, s.nowMillis()); err != nil {
		return nil, err
	}

	renumbered := make([]models.Item, len(items))
	for i, item := range items {
		item.Order = orders[i].Order
		renumbered[i] = item
	}
	return renumbered, nil
}

// nextOrder computes the key for an item created after afterId, renumbering
// the outline first when the neighbours are too close together.
func (s *Service) nextOrder(ctx context.Context, userId string, afterId string) (float64, error) {
	items, err := s.Store.ListItems(ctx, userId)
	if err != nil {
		return 0, err
	}

	order, _, needsRebalance := orderAfter(items, afterId)
	if !needsRebalance {
		return order, nil
	}

	items, err = s.rebalance(ctx, userId, items)
	if err != nil {
		return 0, err
	}
	s.bumpVersion(ctx, userId)

	order, _, _ = orderAfter(items, afterId)
	return order, nil
}
