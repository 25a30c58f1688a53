package app

import (
	"context"
	"errors"
	"testing"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	logger.SetNewNop()
}

// 測試 AppendMessageUseCase.Execute：發號、落庫、雙頻道扇出、未讀遞增
func TestAppendMessageUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	shopID := "shop_1"
	userID := "user_1"
	conversationID := domain.NewConversationID(shopID, userID)

	mockSeq := new(MockSequenceRepository)
	mockMsg := new(MockMessageRepository)
	mockConv := new(MockConversationRepository)
	mockIdx := new(MockUnreadIndexRepository)
	mockPub := new(MockPubSub)

	mockSeq.On("Next", ctx, shopID).Return(int64(7), nil)
	mockMsg.On("Insert", ctx, mock.Anything).Return(nil)
	mockConv.On("Touch", ctx, mock.Anything, true).Return(nil)
	mockIdx.On("IncrShopUnread", ctx, shopID, int64(1)).Return(int64(1), nil)
	mockPub.On("Publish", repository.ConvChannel(conversationID), mock.Anything).Return(nil)
	mockPub.On("Publish", repository.ShopChannel(shopID), mock.Anything).Return(nil)

	unreadUC := NewUnreadUseCase(mockConv, mockIdx, nil, "")
	uc := NewAppendMessageUseCase(mockSeq, mockMsg, mockConv, mockPub, unreadUC, nil)

	msg, err := uc.Execute(ctx, shopID, conversationID, domain.SenderCustomer, userID, "", "hello")

	assert.NoError(t, err)
	assert.Equal(t, int64(7), msg.SequenceID)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.TextMessage, msg.MessageType)

	mockSeq.AssertExpectations(t)
	mockMsg.AssertExpectations(t)
	mockConv.AssertExpectations(t)
	mockIdx.AssertExpectations(t)
	mockPub.AssertExpectations(t)
}

// 發號失敗時整次寫入失敗，不會產生沒有 sequenceId 的訊息
func TestAppendMessageUseCase_SequenceFailureFailsWrite(t *testing.T) {
	ctx := context.Background()

	mockSeq := new(MockSequenceRepository)
	mockMsg := new(MockMessageRepository)
	mockConv := new(MockConversationRepository)
	mockPub := new(MockPubSub)

	mockSeq.On("Next", ctx, "shop_1").Return(int64(0), errors.New("redis unreachable"))

	uc := NewAppendMessageUseCase(mockSeq, mockMsg, mockConv, mockPub, nil, nil)
	msg, err := uc.Execute(ctx, "shop_1", "shop_1_user_1", domain.SenderCustomer, "user_1", "", "hello")

	assert.Error(t, err)
	assert.Nil(t, msg)
	// 落庫與扇出都不應該發生
	mockMsg.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	mockPub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

// 空內容與非法類型直接拒絕，不消耗序號
func TestAppendMessageUseCase_Validation(t *testing.T) {
	ctx := context.Background()
	mockSeq := new(MockSequenceRepository)
	uc := NewAppendMessageUseCase(mockSeq, nil, nil, nil, nil, nil)

	_, err := uc.Execute(ctx, "shop_1", "shop_1_user_1", domain.SenderCustomer, "user_1", "", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	_, err = uc.Execute(ctx, "shop_1", "shop_1_user_1", domain.SenderCustomer, "user_1", "video", "hi")
	assert.ErrorIs(t, err, domain.ErrInvalidMessageType)

	mockSeq.AssertNotCalled(t, "Next", mock.Anything, mock.Anything)
}

// 客服訊息不累計客服側未讀
func TestAppendMessageUseCase_StaffMessageNoUnread(t *testing.T) {
	ctx := context.Background()
	shopID := "shop_1"
	conversationID := "shop_1_user_1"

	mockSeq := new(MockSequenceRepository)
	mockMsg := new(MockMessageRepository)
	mockConv := new(MockConversationRepository)
	mockIdx := new(MockUnreadIndexRepository)
	mockPub := new(MockPubSub)

	mockSeq.On("Next", ctx, shopID).Return(int64(3), nil)
	mockMsg.On("Insert", ctx, mock.Anything).Return(nil)
	mockConv.On("Touch", ctx, mock.Anything, false).Return(nil)
	mockPub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	unreadUC := NewUnreadUseCase(mockConv, mockIdx, nil, "")
	uc := NewAppendMessageUseCase(mockSeq, mockMsg, mockConv, mockPub, unreadUC, nil)

	_, err := uc.Execute(ctx, shopID, conversationID, domain.SenderStaff, "staff_1", "", "reply")

	assert.NoError(t, err)
	mockIdx.AssertNotCalled(t, "IncrShopUnread", mock.Anything, mock.Anything, mock.Anything)
}

// 測試 FetchMessagesUseCase：透傳 repository，maxSequenceId 與分頁無關
func TestFetchMessagesUseCase_FetchSince(t *testing.T) {
	ctx := context.Background()
	mockMsg := new(MockMessageRepository)

	batch := &domain.MessageBatch{
		Messages: []domain.Message{
			{ID: "a", SequenceID: 5},
			{ID: "b", SequenceID: 6},
		},
		MaxSequenceID: 9,
	}
	mockMsg.On("FetchSince", ctx, "shop_1", "", int64(4), int64(2)).Return(batch, nil)

	uc := NewFetchMessagesUseCase(mockMsg)
	got, err := uc.FetchSince(ctx, "shop_1", "", 4, 2)

	assert.NoError(t, err)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, int64(9), got.MaxSequenceID)
	assert.True(t, got.Truncated())
}
