package models

type User struct {
	Id           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Created      int64  `json:"createdAt"`
	Updated      int64  `json:"updatedAt"`
	LastLogin    int64  `json:"lastLoginAt,omitempty"`
	LastActive   int64  `json:"-"`
	ItemCount    int    `json:"-"`
}

type ItemType string

const (
	ItemTask   ItemType = "task"
	ItemHeader ItemType = "header"
)

func (t ItemType) Valid() bool {
	return t == ItemTask || t == ItemHeader
}

// Indentation bounds for Item.Level
const (
	LevelMin = 0
	LevelMax = 4
)

type Item struct {
	Id        string   `json:"id"`
	UserId    string   `json:"-"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Level     int      `json:"level"`
	Type      ItemType `json:"type"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"-"`
	Order     float64  `json:"order"`
}

// ItemPatch carries a partial update. Nil fields are left untouched.
type ItemPatch struct {
	Text      *string   `json:"text,omitempty"`
	Completed *bool     `json:"completed,omitempty"`
	Level     *int      `json:"level,omitempty"`
	Type      *ItemType `json:"type,omitempty"`
}

func (p ItemPatch) IsEmpty() bool {
	return p.Text == nil && p.Completed == nil && p.Level == nil && p.Type == nil
}

// TextOnly reports whether text is the only field being changed.
func (p ItemPatch) TextOnly() bool {
	return p.Text != nil && p.Completed == nil && p.Level == nil && p.Type == nil
}

// Apply merges the patch into item and returns the result.
func (p ItemPatch) Apply(item Item) Item {
	if p.Text != nil {
		item.Text = *p.Text
	}
	if p.Completed != nil {
		item.Completed = *p.Completed
	}
	if p.Level != nil {
		item.Level = *p.Level
	}
	if p.Type != nil {
		item.Type = *p.Type
	}
	return item
}

// NewItem is the create request body.
type NewItem struct {
	Text    string   `json:"text"`
	Level   int      `json:"level"`
	Type    ItemType `json:"type"`
	AfterId string   `json:"afterId,omitempty"`
}

type ItemOrder struct {
	Id    string  `json:"id"`
	Order float64 `json:"order"`
}

// Sequential returns orders 0..n-1 for ids, in the given sequence.
func Sequential(ids []string) []ItemOrder {
	orders := make([]ItemOrder, len(ids))
	for i, id := range ids {
		orders[i] = ItemOrder{Id: id, Order: float64(i)}
	}
	return orders
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}
