package repository

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// UnreadIndexRepository 商戶總未讀的快取索引。
// 數值靠各會話未讀的增減差額維護，不做全量重算；
// key 丟失時由會話表求和重建（RebuildFrom）。
type UnreadIndexRepository interface {
	// IncrShopUnread 商戶總未讀 += delta（delta 可為負）
	IncrShopUnread(ctx context.Context, shopID string, delta int64) (int64, error)
	// GetShopUnread 讀取商戶總未讀，key 不存在回 0 與 redis.Nil
	GetShopUnread(ctx context.Context, shopID string) (int64, error)
	// RebuildFrom 以會話表求和的值覆寫索引
	RebuildFrom(ctx context.Context, shopID string, total int64) error
}

type unreadIndexRepository struct {
	client *redis.Client
}

// NewUnreadIndexRepository create a UnreadIndexRepository
func NewUnreadIndexRepository(client *redis.Client) UnreadIndexRepository {
	return &unreadIndexRepository{client: client}
}

func unreadKey(shopID string) string { return "unread:shop:" + shopID }

func (r *unreadIndexRepository) IncrShopUnread(ctx context.Context, shopID string, delta int64) (int64, error) {
	return r.client.IncrBy(ctx, unreadKey(shopID), delta).Result()
}

func (r *unreadIndexRepository) GetShopUnread(ctx context.Context, shopID string) (int64, error) {
	n, err := r.client.Get(ctx, unreadKey(shopID)).Int64()
	if err == redis.Nil {
		return 0, redis.Nil
	}
	return n, err
}

func (r *unreadIndexRepository) RebuildFrom(ctx context.Context, shopID string, total int64) error {
	return r.client.Set(ctx, unreadKey(shopID), total, 0).Err()
}
