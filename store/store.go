package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/zlnvch/flashlist/models"
)

type OutlineStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userId string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	SetUserLastLogin(ctx context.Context, userId string, at int64) error
	TouchUserActivity(ctx context.Context, userId string, at int64) error
	DeleteUser(ctx context.Context, userId string) error

	// ListItems returns the user's items by ascending order key.
	ListItems(ctx context.Context, userId string) ([]models.Item, error)
	CreateItem(ctx context.Context, item models.Item) (models.Item, error)
	UpdateItem(ctx context.Context, userId string, itemId string, patch models.ItemPatch, updatedAt int64) (models.Item, error)
	// DeleteItem refuses with ErrLastItem when itemId is the user's only item.
	DeleteItem(ctx context.Context, userId string, itemId string) error
	// SetItemOrders overwrites the order key of exactly the listed ids
	// and returns how many existed.
	SetItemOrders(ctx context.Context, userId string, orders []models.ItemOrder, updatedAt int64) (int, error)
	DeleteUserItems(ctx context.Context, userId string) error
}

// Custom error types for clarity
var (
	ErrItemNotFound      = errors.New("item does not exist")
	ErrConditionFailed   = errors.New("condition not met")
	ErrLastItem          = errors.New("cannot delete the last remaining item")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateUsername = errors.New("username already taken")
)

// SortItems orders items by key, then creation time, then id.
func SortItems(items []models.Item) {
	slices.SortStableFunc(items, func(a, b models.Item) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Id, b.Id)
	})
}
