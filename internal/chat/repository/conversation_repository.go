package repository

import (
	"context"
	"time"

	"live_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository 會話與客服側未讀狀態
type ConversationRepository interface {
	// Touch 訊息落庫後更新會話的預覽與時間；incrUnread 為 true 時未讀 +1。
	// 會話不存在則建立（upsert）。
	Touch(ctx context.Context, msg *domain.Message, incrUnread bool) error
	// ResetUnread 未讀歸零，回傳歸零前的值（商戶總未讀按差額遞減用）
	ResetUnread(ctx context.Context, conversationID string) (int64, error)
	// Find 查單一會話
	Find(ctx context.Context, conversationID string) (*domain.Conversation, error)
	// ListByShop 商戶下的會話列表，按最後訊息時間降冪
	ListByShop(ctx context.Context, shopID string, limit int64) ([]domain.Conversation, error)
}

type conversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository create a ConversationRepository
func NewMongoConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{
		coll: db.Collection("conversations"),
	}
}

func (r *conversationRepository) Touch(ctx context.Context, msg *domain.Message, incrUnread bool) error {
	now := time.Now()
	shopID, userID, _ := domain.SplitConversationID(msg.ConversationID)
	if shopID == "" {
		shopID = msg.ShopID
	}

	update := bson.M{
		"$set": bson.M{
			"last_message_time":    msg.CreatedAt,
			"last_message_preview": msg.PreviewText(),
		},
		"$setOnInsert": bson.M{
			"shop_id":    shopID,
			"user_id":    userID,
			"created_at": now,
		},
	}
	if incrUnread {
		update["$inc"] = bson.M{"unread_count": int64(1)}
	}

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"conversation_id": msg.ConversationID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

// ResetUnread 用 FindOneAndUpdate 一次拿到歸零前的值，
// 併發的 Touch 遞增不會被吃掉（差額制）
func (r *conversationRepository) ResetUnread(ctx context.Context, conversationID string) (int64, error) {
	var before struct {
		UnreadCount int64 `bson:"unread_count"`
	}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"unread_count": int64(0)}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err == mongo.ErrNoDocuments {
		return 0, domain.ErrConversationNotFound
	}
	if err != nil {
		return 0, err
	}
	return before.UnreadCount, nil
}

func (r *conversationRepository) Find(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListByShop(ctx context.Context, shopID string, limit int64) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.M{"last_message_time": -1})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, bson.M{"shop_id": shopID}, opts)
	if err != nil {
		return nil, err
	}
	convs := []domain.Conversation{}
	if err := cur.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}
