package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zlnvch/flashlist/cache"
)

type RedisOutlineCache struct {
	client redis.UniversalClient
}

func NewRedisOutlineCache(ctx context.Context, devMode bool, redis_endpoint string) (*RedisOutlineCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redis_endpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redis_endpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisOutlineCache{client: client}, nil
}

func (redisCache *RedisOutlineCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisOutlineCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Keys share the user's hash tag so they land in one cluster slot
func buildVersionKey(userId string) string {
	return "outline:{" + userId + "}:version"
}

func buildOutlineKey(userId string, version int64) string {
	return "outline:{" + userId + "}:v" + strconv.FormatInt(version, 10)
}

func buildRevokedKey(tokenId string) string {
	return "token:" + tokenId + ":revoked"
}

const cacheTTL = 10 * time.Minute

// Versions outlive cached outlines so a fill never lands on a reset counter
const versionTTL = 24 * time.Hour

func (redisCache *RedisOutlineCache) OutlineVersion(ctx context.Context, userId string) (int64, error) {
	version, err := redisCache.client.Get(ctx, buildVersionKey(userId)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

func (redisCache *RedisOutlineCache) BumpOutlineVersion(ctx context.Context, userId string) (int64, error) {
	key := buildVersionKey(userId)

	pipe := redisCache.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, versionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (redisCache *RedisOutlineCache) GetOutline(ctx context.Context, userId string, version int64) ([]byte, bool, error) {
	data, err := redisCache.client.Get(ctx, buildOutlineKey(userId, version)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (redisCache *RedisOutlineCache) SetOutline(ctx context.Context, userId string, version int64, data []byte) error {
	return redisCache.client.Set(ctx, buildOutlineKey(userId, version), data, cacheTTL).Err()
}

func (redisCache *RedisOutlineCache) RevokeToken(ctx context.Context, tokenId string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return redisCache.client.Set(ctx, buildRevokedKey(tokenId), "1", ttl).Err()
}

func (redisCache *RedisOutlineCache) IsTokenRevoked(ctx context.Context, tokenId string) (bool, error) {
	n, err := redisCache.client.Exists(ctx, buildRevokedKey(tokenId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ cache.OutlineCache = (*RedisOutlineCache)(nil)
