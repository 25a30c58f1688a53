package domain

import "errors"

var (
	// ErrSequenceExhausted 發號多次重試仍失敗，該次寫入必須失敗
	ErrSequenceExhausted = errors.New("sequence allocation retry exceeded")
	// ErrInvalidMessageType 訊息類型不在封閉集合內
	ErrInvalidMessageType = errors.New("invalid message type")
	// ErrEmptyContent 訊息內容為空
	ErrEmptyContent = errors.New("message content is empty")
	// ErrConversationNotFound 會話不存在
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrSessionNotFound 連線階段不存在或已過期
	ErrSessionNotFound = errors.New("session not found or expired")
)

// ValidMessageType 是否屬於封閉集合
func ValidMessageType(t MessageType) bool {
	switch t {
	case TextMessage, ImageMessage, FileMessage, SystemMessage:
		return true
	}
	return false
}
