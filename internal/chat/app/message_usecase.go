package app

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// AppendMessageUseCase 負責訊息寫入：發號 -> 落庫 -> 扇出。
// 發號失敗該次寫入直接失敗，不會產生沒有 sequenceId 的訊息。
type AppendMessageUseCase struct {
	seqRepo       repository.SequenceRepository
	msgRepo       repository.MessageRepository
	convRepo      repository.ConversationRepository
	pubSub        repository.PubSub
	unreadUC      *UnreadUseCase
	archiveWriter *kafka.Writer
}

// NewAppendMessageUseCase init create message use case
// archiveWriter 可為 nil（不啟用歸檔匯出）
func NewAppendMessageUseCase(
	seqRepo repository.SequenceRepository,
	msgRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	pubSub repository.PubSub,
	unreadUC *UnreadUseCase,
	archiveWriter *kafka.Writer,
) *AppendMessageUseCase {
	return &AppendMessageUseCase{
		seqRepo:       seqRepo,
		msgRepo:       msgRepo,
		convRepo:      convRepo,
		pubSub:        pubSub,
		unreadUC:      unreadUC,
		archiveWriter: archiveWriter,
	}
}

// Execute append message
func (uc *AppendMessageUseCase) Execute(
	ctx context.Context,
	shopID, conversationID string,
	senderType domain.SenderType,
	senderID string,
	messageType domain.MessageType,
	content string,
) (*domain.Message, error) {
	// 1. 驗證內容
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}
	if messageType == "" {
		messageType = domain.TextMessage
	}
	if !domain.ValidMessageType(messageType) {
		return nil, domain.ErrInvalidMessageType
	}

	// 2. 向 Sequence Authority 發號（商戶範圍單調遞增）
	//    發號狀態不確定時這裡會回錯誤，整次寫入失敗
	seq, err := uc.seqRepo.Next(ctx, shopID)
	if err != nil {
		return nil, err
	}

	// 3. 建立訊息並落庫
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ShopID:         shopID,
		ConversationID: conversationID,
		SequenceID:     seq,
		SenderType:     senderType,
		SenderID:       senderID,
		MessageType:    messageType,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := uc.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	// 4. 更新會話（預覽/時間，顧客訊息累加客服側未讀）
	incrUnread := senderType == domain.SenderCustomer
	if err := uc.convRepo.Touch(ctx, msg, incrUnread); err != nil {
		logger.Log.Errorf("conversation touch error:", err)
	}
	if incrUnread && uc.unreadUC != nil {
		uc.unreadUC.OnCustomerMessage(ctx, msg)
	}

	// 5. pubSub 扇出：會話頻道（顧客端）與商戶頻道（客服端）
	if uc.pubSub != nil {
		if err := uc.pubSub.Publish(repository.ConvChannel(conversationID), msg); err != nil {
			logger.Log.Errorf("publish conv channel error:", err)
		}
		if err := uc.pubSub.Publish(repository.ShopChannel(shopID), msg); err != nil {
			logger.Log.Errorf("publish shop channel error:", err)
		}
	}

	// 6. 歸檔匯出（best-effort，失敗不影響本次寫入）
	if uc.archiveWriter != nil {
		go uc.exportArchive(msg)
	}

	return msg, nil
}

func (uc *AppendMessageUseCase) exportArchive(msg *domain.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Errorf("archive marshal error:", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.archiveWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ShopID),
		Value: data,
	}); err != nil {
		logger.Log.Errorf("archive export error:", err)
	}
}
