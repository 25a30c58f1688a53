package app

import (
	"context"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
)

// FetchMessagesUseCase 增量讀取。輪詢與 websocket 積壓回放都走這一條路徑，
// 兩種傳輸通道看到的永遠是同一份日誌。
type FetchMessagesUseCase struct {
	msgRepo repository.MessageRepository
}

// NewFetchMessagesUseCase init fetch use case
func NewFetchMessagesUseCase(msgRepo repository.MessageRepository) *FetchMessagesUseCase {
	return &FetchMessagesUseCase{msgRepo: msgRepo}
}

// FetchSince 取 afterSeq 之後的訊息。conversationID 非空時限定會話（顧客端），
// 空值表示商戶全量（客服端）。MaxSequenceID 是商戶範圍的真實高水位，
// 即使這一頁被 limit 截斷也一樣，客戶端據此判斷要不要立刻補拉。
func (uc *FetchMessagesUseCase) FetchSince(ctx context.Context, shopID, conversationID string, afterSeq, limit int64) (*domain.MessageBatch, error) {
	return uc.msgRepo.FetchSince(ctx, shopID, conversationID, afterSeq, limit)
}

// MaxSequence 商戶高水位（健康檢查 / 診斷用）
func (uc *FetchMessagesUseCase) MaxSequence(ctx context.Context, shopID string) (int64, error) {
	return uc.msgRepo.MaxSequence(ctx, shopID)
}
