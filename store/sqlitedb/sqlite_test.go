package sqlitedb_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/store"
	"github.com/zlnvch/flashlist/store/sqlitedb"
)

func setupStore(t *testing.T) *sqlitedb.SQLiteOutlineStore {
	t.Helper()
	s, err := sqlitedb.NewSQLiteOutlineStore(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createUser(t *testing.T, s *sqlitedb.SQLiteOutlineStore, id string) models.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), models.User{
		Id:           id,
		Username:     "user-" + id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		Created:      1000,
		Updated:      1000,
	})
	require.NoError(t, err)
	return user
}

func createItem(t *testing.T, s *sqlitedb.SQLiteOutlineStore, userId string, id string, order float64) models.Item {
	t.Helper()
	item, err := s.CreateItem(context.Background(), models.Item{
		Id:        id,
		UserId:    userId,
		Text:      id,
		Type:      models.ItemTask,
		Order:     order,
		CreatedAt: 1000,
		UpdatedAt: 1000,
	})
	require.NoError(t, err)
	return item
}

func itemIds(items []models.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.Id
	}
	return ids
}

func TestUsers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	createUser(t, s, "u1")

	_, err := s.CreateUser(ctx, models.User{Id: "u2", Username: "USER-u1", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)

	_, err = s.CreateUser(ctx, models.User{Id: "u2", Username: "other", Email: "U1@Example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	byEmail, err := s.GetUserByEmail(ctx, "U1@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.Id)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	require.NoError(t, s.SetUserLastLogin(ctx, "u1", 2000))
	require.NoError(t, s.TouchUserActivity(ctx, "u1", 3000))
	// Activity never moves backwards
	require.NoError(t, s.TouchUserActivity(ctx, "u1", 2500))

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), user.LastLogin)
	assert.Equal(t, int64(3000), user.LastActive)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrItemNotFound)

	require.NoError(t, s.DeleteUser(ctx, "u1"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "u1"), store.ErrItemNotFound)
}

func TestListItems_OrderedAndScoped(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createUser(t, s, "u1")
	createUser(t, s, "u2")

	createItem(t, s, "u1", "c", 2)
	createItem(t, s, "u1", "a", 0)
	createItem(t, s, "u1", "b", 1)
	createItem(t, s, "u2", "x", 0)

	items, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, itemIds(items))

	empty, err := s.ListItems(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	user, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, user.ItemCount)
}

func TestUpdateItem(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createUser(t, s, "u1")
	createItem(t, s, "u1", "a", 0)

	updated, err := s.UpdateItem(ctx, "u1", "a", models.ItemPatch{Completed: models.Ptr(true), Level: models.Ptr(2)}, 5000)
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, 2, updated.Level)
	assert.Equal(t, "a", updated.Text)
	assert.Equal(t, int64(5000), updated.UpdatedAt)

	items, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, updated, items[0])

	// Another user's item is invisible
	_, err = s.UpdateItem(ctx, "u2", "a", models.ItemPatch{Text: models.Ptr("x")}, 6000)
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestDeleteItem(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createUser(t, s, "u1")
	createItem(t, s, "u1", "a", 0)
	createItem(t, s, "u1", "b", 1)

	assert.ErrorIs(t, s.DeleteItem(ctx, "u1", "missing"), store.ErrItemNotFound)
	require.NoError(t, s.DeleteItem(ctx, "u1", "a"))
	assert.ErrorIs(t, s.DeleteItem(ctx, "u1", "b"), store.ErrLastItem)

	items, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, itemIds(items))
}

func TestSetItemOrders(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createUser(t, s, "u1")
	createItem(t, s, "u1", "a", 0)
	createItem(t, s, "u1", "b", 1)
	createItem(t, s, "u1", "c", 2)

	orders := models.Sequential([]string{"c", "a", "b", "ghost"})
	updated, err := s.SetItemOrders(ctx, "u1", orders, 7000)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	items, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, itemIds(items))
}

func TestDeleteUserItems(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createUser(t, s, "u1")
	createItem(t, s, "u1", "a", 0)
	createItem(t, s, "u1", "b", 1)

	require.NoError(t, s.DeleteUserItems(ctx, "u1"))
	items, err := s.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashlist.db")
	ctx := context.Background()

	s, err := sqlitedb.NewSQLiteOutlineStore(path, 2)
	require.NoError(t, err)
	createUser(t, s, "u1")
	createItem(t, s, "u1", "a", 0)
	require.NoError(t, s.Close())

	reopened, err := sqlitedb.NewSQLiteOutlineStore(path, 2)
	require.NoError(t, err)
	defer reopened.Close()

	items, err := reopened.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, itemIds(items))
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := sqlitedb.NewSQLiteOutlineStore("", 1)
	assert.Error(t, err)
}

func TestMemoryDatabase_SharedAcrossConnections(t *testing.T) {
	s, err := sqlitedb.NewSQLiteOutlineStore(":memory:", 4)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	createUser(t, s, "u1")
	createItem(t, s, "u1", "a", 0)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := s.ListItems(ctx, "u1")
			if err == nil && len(items) != 1 {
				err = fmt.Errorf("got %d items", len(items))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	// Separate stores never share a database
	other := setupStore(t)
	_, err = other.GetUser(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}
