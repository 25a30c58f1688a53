package app

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/pkg/database"
	"live_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
)

const unreadLockStripes = 64

// BadgeEvent 商戶總未讀變動事件，發往 RabbitMQ 供外部通知系統消費
type BadgeEvent struct {
	ShopID         string    `json:"shopId"`
	ConversationID string    `json:"conversationId,omitempty"`
	ShopUnread     int64     `json:"shopUnread"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// UnreadUseCase 客服側未讀的唯一寫入方。
// 會話未讀存 mongo，商戶總未讀存 redis 索引，兩者都按差額增減；
// 同一會話的讀寫走分段鎖序列化，歸零與併發新訊息不會互相吃掉。
type UnreadUseCase struct {
	convRepo  repository.ConversationRepository
	unreadIdx repository.UnreadIndexRepository
	rabbit    database.RabbitRepo
	badgeExch string
	convLocks [unreadLockStripes]sync.Mutex
	rebuildMu sync.Mutex
}

// NewUnreadUseCase init unread use case
// rabbit 可為 nil（不發 badge 事件）
func NewUnreadUseCase(
	convRepo repository.ConversationRepository,
	unreadIdx repository.UnreadIndexRepository,
	rabbit database.RabbitRepo,
	badgeExchange string,
) *UnreadUseCase {
	return &UnreadUseCase{
		convRepo:  convRepo,
		unreadIdx: unreadIdx,
		rabbit:    rabbit,
		badgeExch: badgeExchange,
	}
}

func (uc *UnreadUseCase) lockFor(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &uc.convLocks[h.Sum32()%unreadLockStripes]
}

// OnCustomerMessage 顧客新訊息：商戶總未讀 +1（會話未讀由 Touch 的 $inc 處理）
func (uc *UnreadUseCase) OnCustomerMessage(ctx context.Context, msg *domain.Message) {
	mu := uc.lockFor(msg.ConversationID)
	mu.Lock()
	defer mu.Unlock()

	total, err := uc.unreadIdx.IncrShopUnread(ctx, msg.ShopID, 1)
	if err != nil {
		logger.Log.Errorf("unread index incr error:", err)
		return
	}
	uc.publishBadge(msg.ShopID, msg.ConversationID, total)
}

// MarkRead 客服讀完會話：會話未讀歸零，商戶總未讀按歸零前的值遞減。
// 差額制：歸零與遞減之間落庫的新訊息各自 +1，不會被這次歸零吃掉。
func (uc *UnreadUseCase) MarkRead(ctx context.Context, shopID, conversationID string) (int64, error) {
	mu := uc.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	prev, err := uc.convRepo.ResetUnread(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if prev == 0 {
		return 0, nil
	}

	total, err := uc.unreadIdx.IncrShopUnread(ctx, shopID, -prev)
	if err != nil {
		logger.Log.Errorf("unread index decr error:", err)
		return prev, nil
	}
	uc.publishBadge(shopID, conversationID, total)
	return prev, nil
}

// GetShopUnread 商戶總未讀。索引 key 丟失時由會話表求和重建。
func (uc *UnreadUseCase) GetShopUnread(ctx context.Context, shopID string) (int64, error) {
	total, err := uc.unreadIdx.GetShopUnread(ctx, shopID)
	if err == nil {
		return total, nil
	}
	if err != redis.Nil {
		return 0, err
	}

	// 重建只允許一個 goroutine 做，其餘等完再讀
	uc.rebuildMu.Lock()
	defer uc.rebuildMu.Unlock()

	if total, err := uc.unreadIdx.GetShopUnread(ctx, shopID); err == nil {
		return total, nil
	}

	convs, err := uc.convRepo.ListByShop(ctx, shopID, 0)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, c := range convs {
		sum += c.UnreadCount
	}
	if err := uc.unreadIdx.RebuildFrom(ctx, shopID, sum); err != nil {
		logger.Log.Errorf("unread index rebuild error:", err)
	}
	return sum, nil
}

func (uc *UnreadUseCase) publishBadge(shopID, conversationID string, total int64) {
	if uc.rabbit == nil {
		return
	}
	ev := BadgeEvent{
		ShopID:         shopID,
		ConversationID: conversationID,
		ShopUnread:     total,
		OccurredAt:     time.Now(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := uc.rabbit.Publish(uc.badgeExch, shopID, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	}); err != nil {
		logger.Log.Errorf("badge publish error:", err)
	}
}
