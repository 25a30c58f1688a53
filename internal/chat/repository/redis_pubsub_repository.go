package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ConvChannel 會話範圍的推送頻道（顧客端訂閱）
func ConvChannel(conversationID string) string {
	return "chat:conv:" + conversationID
}

// ShopChannel 商戶範圍的推送頻道（客服端訂閱）
func ShopChannel(shopID string) string {
	return "chat:shop:" + shopID
}

// PubSub definition pub/sub boundary（usecase 依賴這個介面）
type PubSub interface {
	Publish(channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string, handler func(msg domain.Message)) error
}

// RedisPubSub definition redis pub/sub
// 跨實例的即時推送：訊息落庫後發布到會話頻道與商戶頻道，
// 任一實例上掛著的 websocket 都收得到。
type RedisPubSub struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
		ctx:    context.Background(),
	}
}

// Publish 將 message 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(r.ctx, channel, data).Err()
}

// Subscribe 訂閱 channel，收到訊息後呼叫 handler 處理；ctx 取消時關閉訂閱
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(msg domain.Message)) error {
	sub := r.client.Subscribe(r.ctx, channel)
	go func() {
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var result domain.Message
				if err := json.Unmarshal([]byte(m.Payload), &result); err != nil {
					logger.Log.Error("pubsub err :", zap.String("err", fmt.Sprintf("failed to unmarshal message: %v", err)))
					continue
				}

				handler(result)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				// 當 ctx 被取消時，退出循環並關閉訂閱
				sub.Close()
			}
		}
	}()
	return nil
}
