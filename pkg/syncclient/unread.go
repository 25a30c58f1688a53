package syncclient

import (
	"sync"

	"live_chat_service/internal/chat/domain"
)

// UnreadTracker 客戶端未讀計數。
// 對方發的訊息且會話不在前景時 +1；MarkRead 按歸零前的值遞減總數，
// 所有操作走同一把鎖，總數恆等於各會話計數之和。
type UnreadTracker struct {
	mu sync.Mutex

	// counterpart 哪一方的訊息算未讀（掛件端填 staff，後台填 customer）
	counterpart domain.SenderType
	focused     string
	counts      map[string]int64
	total       int64
}

// NewUnreadTracker create UnreadTracker
func NewUnreadTracker(counterpart domain.SenderType) *UnreadTracker {
	return &UnreadTracker{
		counterpart: counterpart,
		counts:      make(map[string]int64),
	}
}

// OnMessage 掛在 Session 的訊息回呼後面（去重已由 Session 做完）
func (t *UnreadTracker) OnMessage(msg domain.Message) {
	if msg.SenderType != t.counterpart {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.ConversationID == t.focused {
		return
	}
	t.counts[msg.ConversationID]++
	t.total++
}

// Focus 會話進入前景：未讀歸零且之後的訊息不再累計
func (t *UnreadTracker) Focus(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = conversationID
	t.resetLocked(conversationID)
}

// Blur 離開前景
func (t *UnreadTracker) Blur() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.focused = ""
}

// MarkRead 會話未讀歸零，回傳歸零前的值
func (t *UnreadTracker) MarkRead(conversationID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resetLocked(conversationID)
}

func (t *UnreadTracker) resetLocked(conversationID string) int64 {
	prev := t.counts[conversationID]
	if prev > 0 {
		t.total -= prev
		delete(t.counts, conversationID)
	}
	return prev
}

// Count 單一會話未讀
func (t *UnreadTracker) Count(conversationID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[conversationID]
}

// Total 總未讀（恆等於各會話之和）
func (t *UnreadTracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
