package repository

import (
	"context"

	"live_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository 訊息日誌（append-only，seq 升冪讀取）
type MessageRepository interface {
	// EnsureIndexes 建立 (shop_id, seq) 唯一索引，重複發號直接被擋下
	EnsureIndexes(ctx context.Context) error
	// Insert 寫入一則已發號的訊息
	Insert(ctx context.Context, msg *domain.Message) error
	// FetchSince 取 shopID 範圍內 seq > afterSeq 的訊息，升冪，最多 limit 筆。
	// conversationID 非空時只取該會話；MaxSequenceID 一律是商戶範圍的真實高水位。
	FetchSince(ctx context.Context, shopID, conversationID string, afterSeq int64, limit int64) (*domain.MessageBatch, error)
	// MaxSequence 商戶範圍目前最大的 sequenceId，無訊息時為 0
	MaxSequence(ctx context.Context, shopID string) (int64, error)
}

type messageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll: db.Collection("chat_messages"),
	}
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "shop_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}},
		},
	})
	return err
}

func (r *messageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, msg)
	return err
}

// FetchSince 兩種傳輸通道共用的唯一讀取路徑
func (r *messageRepository) FetchSince(ctx context.Context, shopID, conversationID string, afterSeq int64, limit int64) (*domain.MessageBatch, error) {
	maxSeq, err := r.MaxSequence(ctx, shopID)
	if err != nil {
		return nil, err
	}

	// 游標已到（或超過）高水位：空結果不是錯誤
	if afterSeq >= maxSeq {
		return &domain.MessageBatch{Messages: []domain.Message{}, MaxSequenceID: maxSeq}, nil
	}

	filter := bson.M{
		"shop_id": shopID,
		"seq":     bson.M{"$gt": afterSeq},
	}
	if conversationID != "" {
		filter["conversation_id"] = conversationID
	}

	opts := options.Find().SetSort(bson.M{"seq": 1})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	messages := []domain.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}

	return &domain.MessageBatch{Messages: messages, MaxSequenceID: maxSeq}, nil
}

func (r *messageRepository) MaxSequence(ctx context.Context, shopID string) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.M{"seq": -1}).
		SetProjection(bson.M{"seq": 1})

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.coll.FindOne(ctx, bson.M{"shop_id": shopID}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
