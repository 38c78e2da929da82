package cache

import (
	"context"
	"time"
)

// Pub/sub channels
const (
	UserDeletedChannel = "user-deleted"
	outlinePrefix      = "outline:"
)

// OutlineChannel is where change events for a user's outline are published.
func OutlineChannel(userId string) string {
	return outlinePrefix + userId
}

type OutlineCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	// Outlines are cached under (userId, version). Writers bump the version
	// after the store write so stale fills land under a superseded version.
	OutlineVersion(ctx context.Context, userId string) (int64, error)
	BumpOutlineVersion(ctx context.Context, userId string) (int64, error)
	GetOutline(ctx context.Context, userId string, version int64) ([]byte, bool, error)
	SetOutline(ctx context.Context, userId string, version int64, data []byte) error

	RevokeToken(ctx context.Context, tokenId string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenId string) (bool, error)
}
