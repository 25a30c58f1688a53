package domain

import "time"

// SenderType 訊息發送方角色
type SenderType string

const (
	//SenderCustomer 顧客（掛件端）
	SenderCustomer SenderType = "customer"
	//SenderStaff 客服（後台端）
	SenderStaff SenderType = "staff"
	//SenderSystem 系統訊息
	SenderSystem SenderType = "system"
)

// MessageType 訊息內容類型（封閉集合，渲染統一走 PreviewText 分派）
type MessageType string

const (
	//TextMessage 純文字
	TextMessage MessageType = "text"
	//ImageMessage 圖片（內容為 URL，上傳由外部協作者處理）
	ImageMessage MessageType = "image"
	//FileMessage 檔案（內容為 URL）
	FileMessage MessageType = "file"
	//SystemMessage 系統通知
	SystemMessage MessageType = "system"
)

// Message 一則聊天訊息。append 之後不可變。
// SequenceID 由 Sequence Authority 以商戶為範圍遞增發號，
// ID 為全局唯一，跨傳輸通道去重用。
type Message struct {
	ID             string      `bson:"id" json:"id"`
	ShopID         string      `bson:"shop_id" json:"shopId"`
	ConversationID string      `bson:"conversation_id" json:"conversationId"`
	SequenceID     int64       `bson:"seq" json:"sequenceId"`
	SenderType     SenderType  `bson:"sender_type" json:"senderType"`
	SenderID       string      `bson:"sender_id,omitempty" json:"senderId,omitempty"`
	MessageType    MessageType `bson:"message_type" json:"messageType"`
	Content        string      `bson:"content" json:"content"`
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
}

// PreviewText 會話列表的預覽文字，依 MessageType 統一分派
func (m Message) PreviewText() string {
	switch m.MessageType {
	case ImageMessage:
		return "[圖片]"
	case FileMessage:
		return "[檔案]"
	case SystemMessage:
		return "[系統] " + m.Content
	default:
		if len(m.Content) > 60 {
			return m.Content[:60]
		}
		return m.Content
	}
}

// MessageBatch fetchSince 的回傳形狀，兩種傳輸通道共用。
// MaxSequenceID 是該範圍在日誌裡的真實高水位，與分頁截斷無關。
type MessageBatch struct {
	Messages      []Message `json:"messages"`
	MaxSequenceID int64     `json:"maxSequenceId"`
}

// Truncated 回傳的頁是否未含到高水位（客戶端需立刻補拉）
func (b MessageBatch) Truncated() bool {
	if len(b.Messages) == 0 {
		return false
	}
	return b.Messages[len(b.Messages)-1].SequenceID < b.MaxSequenceID
}
