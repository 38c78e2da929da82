package sqlitedb

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/store"
)

// SQLiteOutlineStore is the single-node OutlineStore backend.
type SQLiteOutlineStore struct {
	pool *pool
}

// NewSQLiteOutlineStore opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database private to this store.
func NewSQLiteOutlineStore(path string, poolSize int) (*SQLiteOutlineStore, error) {
	p, err := openPool(path, poolSize)
	if err != nil {
		return nil, err
	}
	return &SQLiteOutlineStore{pool: p}, nil
}

func (s *SQLiteOutlineStore) Close() error {
	return s.pool.close()
}

const userColumns = "id, username, email, password_hash, created_at, updated_at, last_login_at, last_active_at"

func scanUser(stmt *sqlite.Stmt) models.User {
	return models.User{
		Id:           stmt.ColumnText(0),
		Username:     stmt.ColumnText(1),
		Email:        stmt.ColumnText(2),
		PasswordHash: stmt.ColumnText(3),
		Created:      stmt.ColumnInt64(4),
		Updated:      stmt.ColumnInt64(5),
		LastLogin:    stmt.ColumnInt64(6),
		LastActive:   stmt.ColumnInt64(7),
	}
}

const itemColumns = "id, user_id, text, completed, level, type, order_key, created_at, updated_at"

func scanItem(stmt *sqlite.Stmt) models.Item {
	return models.Item{
		Id:        stmt.ColumnText(0),
		UserId:    stmt.ColumnText(1),
		Text:      stmt.ColumnText(2),
		Completed: stmt.ColumnInt(3) != 0,
		Level:     stmt.ColumnInt(4),
		Type:      models.ItemType(stmt.ColumnText(5)),
		Order:     stmt.ColumnFloat(6),
		CreatedAt: stmt.ColumnInt64(7),
		UpdatedAt: stmt.ColumnInt64(8),
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// exists reports whether query returns at least one row.
func exists(conn *sqlite.Conn, query string, args ...any) (bool, error) {
	found := false
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	return found, err
}

func (s *SQLiteOutlineStore) CreateUser(ctx context.Context, user models.User) (_ models.User, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer s.pool.put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return models.User{}, err
	}
	defer endFn(&err)

	// Username is checked before email
	taken, err := exists(conn, "SELECT 1 FROM users WHERE username = ? COLLATE NOCASE", user.Username)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, store.ErrDuplicateUsername
	}
	taken, err = exists(conn, "SELECT 1 FROM users WHERE email = ? COLLATE NOCASE", user.Email)
	if err != nil {
		return models.User{}, err
	}
	if taken {
		return models.User{}, store.ErrDuplicateEmail
	}

	err = sqlitex.Execute(conn, "INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)", &sqlitex.ExecOptions{
		Args: []any{user.Id, user.Username, user.Email, user.PasswordHash, user.Created, user.Updated, user.LastLogin, user.LastActive},
	})
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (s *SQLiteOutlineStore) getUserWhere(ctx context.Context, where string, arg string) (models.User, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer s.pool.put(conn)

	var user models.User
	found := false
	err = sqlitex.Execute(conn, "SELECT "+userColumns+", (SELECT COUNT(*) FROM items WHERE items.user_id = users.id) FROM users WHERE "+where, &sqlitex.ExecOptions{
		Args: []any{arg},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			user = scanUser(stmt)
			user.ItemCount = stmt.ColumnInt(8)
			found = true
			return nil
		},
	})
	if err != nil {
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	if !found {
		return models.User{}, store.ErrItemNotFound
	}
	return user, nil
}

func (s *SQLiteOutlineStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	return s.getUserWhere(ctx, "id = ?", userId)
}

func (s *SQLiteOutlineStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUserWhere(ctx, "email = ? COLLATE NOCASE", email)
}

// execChanged runs a single statement and returns ErrItemNotFound when it
// touched no rows.
func (s *SQLiteOutlineStore) execChanged(ctx context.Context, query string, args ...any) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.put(conn)

	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		return err
	}
	if conn.Changes() == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

func (s *SQLiteOutlineStore) SetUserLastLogin(ctx context.Context, userId string, at int64) error {
	return s.execChanged(ctx, "UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?", at, at, userId)
}

func (s *SQLiteOutlineStore) TouchUserActivity(ctx context.Context, userId string, at int64) error {
	return s.execChanged(ctx, "UPDATE users SET last_active_at = MAX(last_active_at, ?) WHERE id = ?", at, userId)
}

func (s *SQLiteOutlineStore) DeleteUser(ctx context.Context, userId string) error {
	return s.execChanged(ctx, "DELETE FROM users WHERE id = ?", userId)
}

func (s *SQLiteOutlineStore) ListItems(ctx context.Context, userId string) ([]models.Item, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.put(conn)

	items := []models.Item{}
	err = sqlitex.Execute(conn, "SELECT "+itemColumns+" FROM items WHERE user_id = ? ORDER BY order_key, created_at, id", &sqlitex.ExecOptions{
		Args: []any{userId},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			items = append(items, scanItem(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

func (s *SQLiteOutlineStore) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return models.Item{}, err
	}
	defer s.pool.put(conn)

	err = sqlitex.Execute(conn, "INSERT INTO items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", &sqlitex.ExecOptions{
		Args: []any{item.Id, item.UserId, item.Text, boolInt(item.Completed), item.Level, string(item.Type), item.Order, item.CreatedAt, item.UpdatedAt},
	})
	if err != nil {
		return models.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (s *SQLiteOutlineStore) UpdateItem(ctx context.Context, userId string, itemId string, patch models.ItemPatch, updatedAt int64) (_ models.Item, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return models.Item{}, err
	}
	defer s.pool.put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return models.Item{}, err
	}
	defer endFn(&err)

	var item models.Item
	found := false
	err = sqlitex.Execute(conn, "SELECT "+itemColumns+" FROM items WHERE id = ? AND user_id = ?", &sqlitex.ExecOptions{
		Args: []any{itemId, userId},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			item = scanItem(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return models.Item{}, fmt.Errorf("select item: %w", err)
	}
	if !found {
		return models.Item{}, store.ErrItemNotFound
	}

	item = patch.Apply(item)
	item.UpdatedAt = updatedAt

	err = sqlitex.Execute(conn, "UPDATE items SET text = ?, completed = ?, level = ?, type = ?, updated_at = ? WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{item.Text, boolInt(item.Completed), item.Level, string(item.Type), item.UpdatedAt, item.Id},
	})
	if err != nil {
		return models.Item{}, fmt.Errorf("update item: %w", err)
	}
	return item, nil
}

func (s *SQLiteOutlineStore) DeleteItem(ctx context.Context, userId string, itemId string) (err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return err
	}
	defer endFn(&err)

	found, err := exists(conn, "SELECT 1 FROM items WHERE id = ? AND user_id = ?", itemId, userId)
	if err != nil {
		return err
	}
	if !found {
		return store.ErrItemNotFound
	}

	count := 0
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM items WHERE user_id = ?", &sqlitex.ExecOptions{
		Args: []any{userId},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return err
	}
	if count <= 1 {
		return store.ErrLastItem
	}

	return sqlitex.Execute(conn, "DELETE FROM items WHERE id = ? AND user_id = ?", &sqlitex.ExecOptions{
		Args: []any{itemId, userId},
	})
}

func (s *SQLiteOutlineStore) SetItemOrders(ctx context.Context, userId string, orders []models.ItemOrder, updatedAt int64) (_ int, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, err
	}
	defer endFn(&err)

	updated := 0
	for _, o := range orders {
		err = sqlitex.Execute(conn, "UPDATE items SET order_key = ?, updated_at = ? WHERE id = ? AND user_id = ?", &sqlitex.ExecOptions{
			Args: []any{o.Order, updatedAt, o.Id, userId},
		})
		if err != nil {
			return 0, fmt.Errorf("set order of %s: %w", o.Id, err)
		}
		updated += conn.Changes()
	}
	return updated, nil
}

func (s *SQLiteOutlineStore) DeleteUserItems(ctx context.Context, userId string) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.put(conn)

	return sqlitex.Execute(conn, "DELETE FROM items WHERE user_id = ?", &sqlitex.ExecOptions{
		Args: []any{userId},
	})
}

var _ store.OutlineStore = (*SQLiteOutlineStore)(nil)
