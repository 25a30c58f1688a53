package unit

import (
	"strings"
	"testing"

	"live_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

func TestConversationIDRoundTrip(t *testing.T) {
	id := domain.NewConversationID("shop_1700000000_1", "user_abc_123")
	assert.Equal(t, "shop_1700000000_1_user_abc_123", id)

	shopID, userID, ok := domain.SplitConversationID(id)
	assert.True(t, ok, "should split generated id")
	assert.Equal(t, "shop_1700000000_1", shopID)
	assert.Equal(t, "user_abc_123", userID)
}

func TestSplitConversationIDPlainShop(t *testing.T) {
	shopID, userID, ok := domain.SplitConversationID("acme_user42")
	assert.True(t, ok)
	assert.Equal(t, "acme", shopID)
	assert.Equal(t, "user42", userID)

	_, _, ok = domain.SplitConversationID("noseparator")
	assert.False(t, ok, "id without separator is invalid")

	_, _, ok = domain.SplitConversationID("shop_")
	assert.False(t, ok, "id without user part is invalid")
}

func TestMessagePreviewText(t *testing.T) {
	long := strings.Repeat("a", 80)

	assert.Equal(t, "hello", domain.Message{MessageType: domain.TextMessage, Content: "hello"}.PreviewText())
	assert.Equal(t, strings.Repeat("a", 60), domain.Message{MessageType: domain.TextMessage, Content: long}.PreviewText())
	assert.Equal(t, "[圖片]", domain.Message{MessageType: domain.ImageMessage, Content: "http://x/img.png"}.PreviewText())
	assert.Equal(t, "[檔案]", domain.Message{MessageType: domain.FileMessage, Content: "http://x/f.pdf"}.PreviewText())
	assert.Equal(t, "[系統] closed", domain.Message{MessageType: domain.SystemMessage, Content: "closed"}.PreviewText())
}

func TestMessageBatchTruncated(t *testing.T) {
	full := domain.MessageBatch{
		Messages:      []domain.Message{{SequenceID: 4}, {SequenceID: 5}},
		MaxSequenceID: 5,
	}
	assert.False(t, full.Truncated(), "page reaching high water is complete")

	cut := domain.MessageBatch{
		Messages:      []domain.Message{{SequenceID: 4}, {SequenceID: 5}},
		MaxSequenceID: 9,
	}
	assert.True(t, cut.Truncated(), "page below high water needs a follow-up fetch")

	empty := domain.MessageBatch{MaxSequenceID: 9}
	assert.False(t, empty.Truncated(), "empty page means nothing left in range")
}
