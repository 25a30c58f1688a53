package domain

import (
	"strings"
	"time"
)

// Conversation 一位顧客在一個商戶下的會話與客服側未讀狀態
type Conversation struct {
	ConversationID     string    `bson:"conversation_id" json:"conversationId"`
	ShopID             string    `bson:"shop_id" json:"shopId"`
	UserID             string    `bson:"user_id" json:"userId"`
	UnreadCount        int64     `bson:"unread_count" json:"unreadCount"`
	LastMessageTime    time.Time `bson:"last_message_time" json:"lastMessageTime"`
	LastMessagePreview string    `bson:"last_message_preview" json:"lastMessagePreview"`
	CreatedAt          time.Time `bson:"created_at" json:"createdAt"`
}

// ShopUnreadInfo 商戶未讀總數（由各會話未讀增量維護，不做全量重算）
type ShopUnreadInfo struct {
	ShopID      string `json:"shopId"`
	UnreadCount int64  `json:"unreadCount"`
}

// NewConversationID 會話 ID 規則：<shopId>_<userId>
func NewConversationID(shopID, userID string) string {
	return shopID + "_" + userID
}

// SplitConversationID 解出 shopId 與 userId；userId 本身可含底線，
// 以第一段為 shopId 的前綴規則解析
func SplitConversationID(conversationID string) (shopID, userID string, ok bool) {
	i := strings.Index(conversationID, "_")
	if i <= 0 || i == len(conversationID)-1 {
		return "", "", false
	}
	// shopId 格式為 shop_<ts>_<n>，需取第三個底線之前
	parts := strings.SplitN(conversationID, "_", 4)
	if len(parts) == 4 && parts[0] == "shop" {
		return strings.Join(parts[:3], "_"), parts[3], true
	}
	return conversationID[:i], conversationID[i+1:], true
}
