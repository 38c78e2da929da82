package dynamo

import (
	"strings"

	"github.com/zlnvch/flashlist/models"
)

const (
	userPrefix     = "USER#"
	emailPrefix    = "EMAIL#"
	usernamePrefix = "USERNAME#"
	outlinePrefix  = "OUTLINE#"
	itemPrefix     = "ITEM#"

	profileSK = "PROFILE"
	claimSK   = "CLAIM"
)

func userPK(userId string) string {
	return userPrefix + userId
}

// Emails and usernames are unique case-insensitively
func emailPK(email string) string {
	return emailPrefix + strings.ToLower(email)
}

func usernamePK(username string) string {
	return usernamePrefix + strings.ToLower(username)
}

func outlinePK(userId string) string {
	return outlinePrefix + userId
}

func itemSK(itemId string) string {
	return itemPrefix + itemId
}

type dynamoUser struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	Id           string `dynamodbav:"Id"`
	Username     string `dynamodbav:"Username"`
	Email        string `dynamodbav:"Email"`
	PasswordHash string `dynamodbav:"PasswordHash"`
	Created      int64  `dynamodbav:"Created"`
	Updated      int64  `dynamodbav:"Updated"`
	LastLogin    int64  `dynamodbav:"LastLogin"`
	LastActive   int64  `dynamodbav:"LastActive"`
	ItemCount    int    `dynamodbav:"ItemCount"`
}

// Map domain User -> Dynamo
func userToDynamo(u models.User) dynamoUser {
	return dynamoUser{
		PK:           userPK(u.Id),
		SK:           profileSK,
		Id:           u.Id,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Created:      u.Created,
		Updated:      u.Updated,
		LastLogin:    u.LastLogin,
		LastActive:   u.LastActive,
		ItemCount:    u.ItemCount,
	}
}

// Map Dynamo -> domain User
func userFromDynamo(du dynamoUser) models.User {
	return models.User{
		Id:           du.Id,
		Username:     du.Username,
		Email:        du.Email,
		PasswordHash: du.PasswordHash,
		Created:      du.Created,
		Updated:      du.Updated,
		LastLogin:    du.LastLogin,
		LastActive:   du.LastActive,
		ItemCount:    du.ItemCount,
	}
}

// dynamoClaim reserves a unique attribute (email or username) for a user
type dynamoClaim struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	UserId string `dynamodbav:"UserId"`
}

type dynamoItem struct {
	PK        string  `dynamodbav:"PK"`
	SK        string  `dynamodbav:"SK"`
	Id        string  `dynamodbav:"Id"`
	UserId    string  `dynamodbav:"UserId"`
	Text      string  `dynamodbav:"Text"`
	Completed bool    `dynamodbav:"Completed"`
	Level     int     `dynamodbav:"Level"`
	Type      string  `dynamodbav:"Type"`
	CreatedAt int64   `dynamodbav:"CreatedAt"`
	UpdatedAt int64   `dynamodbav:"UpdatedAt"`
	Order     float64 `dynamodbav:"OrderKey"`
}

// Map domain Item -> Dynamo
func itemToDynamo(item models.Item) dynamoItem {
	return dynamoItem{
		PK:        outlinePK(item.UserId),
		SK:        itemSK(item.Id),
		Id:        item.Id,
		UserId:    item.UserId,
		Text:      item.Text,
		Completed: item.Completed,
		Level:     item.Level,
		Type:      string(item.Type),
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		Order:     item.Order,
	}
}

// Map Dynamo -> domain Item
func itemFromDynamo(di dynamoItem) models.Item {
	return models.Item{
		Id:        di.Id,
		UserId:    di.UserId,
		Text:      di.Text,
		Completed: di.Completed,
		Level:     di.Level,
		Type:      models.ItemType(di.Type),
		CreatedAt: di.CreatedAt,
		UpdatedAt: di.UpdatedAt,
		Order:     di.Order,
	}
}

// patchFields lists the attribute names a patch touches, always
// including UpdatedAt, and applies the patch onto di.
func patchFields(di *dynamoItem, patch models.ItemPatch, updatedAt int64) []string {
	fields := []string{"UpdatedAt"}
	di.UpdatedAt = updatedAt
	if patch.Text != nil {
		di.Text = *patch.Text
		fields = append(fields, "Text")
	}
	if patch.Completed != nil {
		di.Completed = *patch.Completed
		fields = append(fields, "Completed")
	}
	if patch.Level != nil {
		di.Level = *patch.Level
		fields = append(fields, "Level")
	}
	if patch.Type != nil {
		di.Type = string(*patch.Type)
		fields = append(fields, "Type")
	}
	return fields
}
