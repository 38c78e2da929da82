package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zlnvch/flashlist/models"
	"github.com/zlnvch/flashlist/store"
)

type DynamoOutlineStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoOutlineStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoOutlineStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(tables, tableName) {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoOutlineStore{client: client, tableName: tableName}, nil
}

// CreateUser writes the profile together with email and username claims
// so that both stay unique.
func (dynamoStore *DynamoOutlineStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	profile, err := attributevalue.MarshalMap(userToDynamo(user))
	if err != nil {
		return models.User{}, fmt.Errorf("marshal error: %w", err)
	}
	usernameClaim, err := attributevalue.MarshalMap(dynamoClaim{PK: usernamePK(user.Username), SK: claimSK, UserId: user.Id})
	if err != nil {
		return models.User{}, fmt.Errorf("marshal error: %w", err)
	}
	emailClaim, err := attributevalue.MarshalMap(dynamoClaim{PK: emailPK(user.Email), SK: claimSK, UserId: user.Id})
	if err != nil {
		return models.User{}, fmt.Errorf("marshal error: %w", err)
	}

	notExists := aws.String("attribute_not_exists(PK)")
	table := aws.String(dynamoStore.tableName)

	// Username claim comes first so it is reported first
	failed, err := transactWrite(dynamoStore, ctx, []types.TransactWriteItem{
		{Put: &types.Put{TableName: table, Item: usernameClaim, ConditionExpression: notExists}},
		{Put: &types.Put{TableName: table, Item: emailClaim, ConditionExpression: notExists}},
		{Put: &types.Put{TableName: table, Item: profile, ConditionExpression: notExists}},
	})
	if err != nil {
		switch failed {
		case 0:
			return models.User{}, store.ErrDuplicateUsername
		case 1:
			return models.User{}, store.ErrDuplicateEmail
		}
		return models.User{}, err
	}

	return user, nil
}

func (dynamoStore *DynamoOutlineStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, userPK(userId), profileSK, false)
	if err != nil {
		return models.User{}, err
	}

	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoOutlineStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	claim, err := getItem[dynamoClaim](dynamoStore, ctx, emailPK(email), claimSK, true)
	if err != nil {
		return models.User{}, err
	}

	return dynamoStore.GetUser(ctx, claim.UserId)
}

func (dynamoStore *DynamoOutlineStore) SetUserLastLogin(ctx context.Context, userId string, at int64) error {
	return setNumber(dynamoStore, ctx, userPK(userId), profileSK, "LastLogin", numberValue(at))
}

func (dynamoStore *DynamoOutlineStore) TouchUserActivity(ctx context.Context, userId string, at int64) error {
	return setNumber(dynamoStore, ctx, userPK(userId), profileSK, "LastActive", numberValue(at))
}

// DeleteUser removes the profile and releases its claims. Items are purged
// separately through DeleteUserItems.
func (dynamoStore *DynamoOutlineStore) DeleteUser(ctx context.Context, userId string) error {
	user, err := dynamoStore.GetUser(ctx, userId)
	if err != nil {
		return err
	}

	table := aws.String(dynamoStore.tableName)
	_, err = transactWrite(dynamoStore, ctx, []types.TransactWriteItem{
		{Delete: &types.Delete{TableName: table, Key: keyOf(userPK(userId), profileSK), ConditionExpression: aws.String("attribute_exists(PK)")}},
		{Delete: &types.Delete{TableName: table, Key: keyOf(emailPK(user.Email), claimSK)}},
		{Delete: &types.Delete{TableName: table, Key: keyOf(usernamePK(user.Username), claimSK)}},
	})
	if errors.Is(err, store.ErrConditionFailed) {
		return store.ErrItemNotFound
	}
	return err
}

func (dynamoStore *DynamoOutlineStore) ListItems(ctx context.Context, userId string) ([]models.Item, error) {
	dynamoItems, err := queryAllByPK[dynamoItem](dynamoStore, ctx, outlinePK(userId), true)
	if err != nil {
		return nil, err
	}

	items := make([]models.Item, 0, len(dynamoItems))
	for _, di := range dynamoItems {
		items = append(items, itemFromDynamo(di))
	}
	store.SortItems(items)

	return items, nil
}

// CreateItem puts the item and bumps the owner's item count atomically.
func (dynamoStore *DynamoOutlineStore) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	avMap, err := attributevalue.MarshalMap(itemToDynamo(item))
	if err != nil {
		return models.Item{}, fmt.Errorf("marshal error: %w", err)
	}

	table := aws.String(dynamoStore.tableName)
	failed, err := transactWrite(dynamoStore, ctx, []types.TransactWriteItem{
		{Put: &types.Put{TableName: table, Item: avMap, ConditionExpression: aws.String("attribute_not_exists(PK)")}},
		{Update: &types.Update{
			TableName:           table,
			Key:                 keyOf(userPK(item.UserId), profileSK),
			UpdateExpression:    aws.String("SET ItemCount = if_not_exists(ItemCount, :zero) + :one"),
			ConditionExpression: aws.String("attribute_exists(PK)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":zero": &types.AttributeValueMemberN{Value: "0"},
				":one":  &types.AttributeValueMemberN{Value: "1"},
			},
		}},
	})
	if err != nil {
		if failed == 1 {
			return models.Item{}, fmt.Errorf("owner %s: %w", item.UserId, store.ErrItemNotFound)
		}
		return models.Item{}, err
	}

	return item, nil
}

func (dynamoStore *DynamoOutlineStore) UpdateItem(ctx context.Context, userId string, itemId string, patch models.ItemPatch, updatedAt int64) (models.Item, error) {
	di := dynamoItem{PK: outlinePK(userId), SK: itemSK(itemId)}
	fields := patchFields(&di, patch, updatedAt)

	updated, err := updateItem(dynamoStore, ctx, di, fields)
	if err != nil {
		return models.Item{}, err
	}

	return itemFromDynamo(updated), nil
}

// DeleteItem removes the item and decrements the item count, refusing when
// the count would reach zero.
func (dynamoStore *DynamoOutlineStore) DeleteItem(ctx context.Context, userId string, itemId string) error {
	table := aws.String(dynamoStore.tableName)
	failed, err := transactWrite(dynamoStore, ctx, []types.TransactWriteItem{
		{Delete: &types.Delete{
			TableName:           table,
			Key:                 keyOf(outlinePK(userId), itemSK(itemId)),
			ConditionExpression: aws.String("attribute_exists(PK)"),
		}},
		{Update: &types.Update{
			TableName:           table,
			Key:                 keyOf(userPK(userId), profileSK),
			UpdateExpression:    aws.String("SET ItemCount = ItemCount - :one"),
			ConditionExpression: aws.String("ItemCount > :one"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": &types.AttributeValueMemberN{Value: "1"},
			},
		}},
	})
	if err != nil {
		switch failed {
		case 0:
			return store.ErrItemNotFound
		case 1:
			return store.ErrLastItem
		}
		return err
	}

	return nil
}

func (dynamoStore *DynamoOutlineStore) SetItemOrders(ctx context.Context, userId string, orders []models.ItemOrder, updatedAt int64) (int, error) {
	updated := 0
	for _, o := range orders {
		_, err := dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:        aws.String(dynamoStore.tableName),
			Key:              keyOf(outlinePK(userId), itemSK(o.Id)),
			UpdateExpression: aws.String("SET OrderKey = :order, UpdatedAt = :at"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":order": &types.AttributeValueMemberN{Value: floatValue(o.Order)},
				":at":    &types.AttributeValueMemberN{Value: numberValue(updatedAt)},
			},
			ConditionExpression: aws.String("attribute_exists(PK)"),
		})
		if err != nil {
			var cce *types.ConditionalCheckFailedException
			if errors.As(err, &cce) {
				// Unknown ids are skipped
				continue
			}
			return updated, fmt.Errorf("set order of %s: %w", o.Id, err)
		}
		updated++
	}

	return updated, nil
}

func (dynamoStore *DynamoOutlineStore) DeleteUserItems(ctx context.Context, userId string) error {
	_, err := batchDeleteByPKThrottled(dynamoStore, ctx, outlinePK(userId), 50*time.Millisecond)
	if err != nil {
		return err
	}

	// The profile may already be gone
	err = setNumber(dynamoStore, ctx, userPK(userId), profileSK, "ItemCount", "0")
	if errors.Is(err, store.ErrItemNotFound) {
		return nil
	}
	return err
}

var _ store.OutlineStore = (*DynamoOutlineStore)(nil)
