package syncclient

import (
	"sync"

	"live_chat_service/internal/chat/domain"
)

// State 同步階段狀態機。
// 斷線只會退回 Syncing/Connecting，游標永遠保留，不會歸零重來。
type State string

const (
	//StateDisconnected 初始或放棄重連
	StateDisconnected State = "disconnected"
	//StateConnecting 傳輸通道建立中
	StateConnecting State = "connecting"
	//StateSyncing 已連上，正在補積壓
	StateSyncing State = "syncing"
	//StateLive 已追上高水位，走即時推送
	StateLive State = "live"
)

// MessageHandler 每則新訊息回呼一次（去重後）
type MessageHandler func(msg domain.Message)

// StateHandler 狀態變化回呼（UI 連線指示用）
type StateHandler func(s State)

// Session 一個邏輯掛件實例的同步會話。
// 同一 userId 開兩個分頁就是兩個 Session，各自有游標與未讀，互不共享。
type Session struct {
	mu sync.Mutex

	shopID string
	userID string
	// shopScope 為 true 時訂閱整個商戶（客服端）。商戶範圍的 seq 連續，
	// 即時推送缺號代表漏訊息；會話範圍本來就有洞，不做缺號判定。
	shopScope bool

	state  State
	cursor int64
	// seen 記 id -> sequenceId，擋兩條傳輸通道重疊送達的同一則訊息。
	// 游標之下的項目已由序號規則擋掉，定期剪掉以免長連線下無限成長
	seen map[string]int64

	store     CursorStore
	onMessage MessageHandler
	onState   StateHandler

	// 上一頁被截斷，需要立刻補拉（不等下一個輪詢 tick）
	needCatchUp bool
}

// SessionOption session 可選設定
type SessionOption func(*Session)

// WithCursorStore 游標持久化（跨重啟續傳）
func WithCursorStore(store CursorStore) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithMessageHandler 新訊息回呼
func WithMessageHandler(h MessageHandler) SessionOption {
	return func(s *Session) { s.onMessage = h }
}

// WithStateHandler 狀態回呼
func WithStateHandler(h StateHandler) SessionOption {
	return func(s *Session) { s.onState = h }
}

// WithShopScope 客服端：訂閱整個商戶
func WithShopScope() SessionOption {
	return func(s *Session) { s.shopScope = true }
}

// NewSession create a Session，游標從 store 還原（沒有就從 0 開始）
func NewSession(shopID, userID string, opts ...SessionOption) *Session {
	s := &Session{
		shopID: shopID,
		userID: userID,
		state:  StateDisconnected,
		seen:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store != nil {
		if cur, err := s.store.Load(shopID, userID); err == nil && cur > 0 {
			s.cursor = cur
		}
	}
	return s
}

// State current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor 已消費到的 sequenceId
func (s *Session) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// ShopID session shop
func (s *Session) ShopID() string { return s.shopID }

// UserID session user
func (s *Session) UserID() string { return s.userID }

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	h := s.onState
	s.mu.Unlock()
	if h != nil {
		h(next)
	}
}

// ApplyBatch 套用一頁 fetchSince 結果。
// 訊息以 id 去重後逐一回呼；游標推進規則：
//   - 空頁，或最後一筆已到 maxSequenceId：游標推到 maxSequenceId
//   - 頁被截斷：游標只推到實際套用的最後一筆，並回報需要立刻補拉
//
// 游標單調遞增，任何方向的倒退都被忽略。
func (s *Session) ApplyBatch(messages []domain.Message, maxSequenceID int64) (applied int, catchUp bool) {
	s.mu.Lock()

	var handlers []domain.Message
	lastApplied := int64(0)
	for _, m := range messages {
		if _, dup := s.seen[m.ID]; dup || m.SequenceID <= s.cursor {
			continue
		}
		s.seen[m.ID] = m.SequenceID
		handlers = append(handlers, m)
		if m.SequenceID > lastApplied {
			lastApplied = m.SequenceID
		}
	}
	applied = len(handlers)

	truncated := len(messages) > 0 && messages[len(messages)-1].SequenceID < maxSequenceID
	target := maxSequenceID
	if truncated {
		target = messages[len(messages)-1].SequenceID
		s.needCatchUp = true
		catchUp = true
	}
	if target > s.cursor {
		s.cursor = target
	}
	s.pruneSeenLocked()
	s.persistCursorLocked()

	onMessage := s.onMessage
	s.mu.Unlock()

	if onMessage != nil {
		for _, m := range handlers {
			onMessage(m)
		}
	}
	return applied, catchUp
}

// ApplyLive 套用一則即時推送。
// 回傳 resync=true 代表偵測到缺號（只在商戶範圍判定），
// 呼叫端應以現有游標做一次 fetchSince 而不是直接套用。
func (s *Session) ApplyLive(msg domain.Message) (applied bool, resync bool) {
	s.mu.Lock()

	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return false, false
	}
	if msg.SequenceID <= s.cursor {
		// 已經從其他路徑拿過這個號
		s.mu.Unlock()
		return false, false
	}
	if s.shopScope && msg.SequenceID > s.cursor+1 {
		s.mu.Unlock()
		return false, true
	}

	s.seen[msg.ID] = msg.SequenceID
	s.cursor = msg.SequenceID
	s.pruneSeenLocked()
	s.persistCursorLocked()
	onMessage := s.onMessage
	s.mu.Unlock()

	if onMessage != nil {
		onMessage(msg)
	}
	return true, false
}

// TakeCatchUp 取走「需要立刻補拉」的標記
func (s *Session) TakeCatchUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	need := s.needCatchUp
	s.needCatchUp = false
	return need
}

const seenPruneThreshold = 1024

// pruneSeenLocked 剪掉游標之下的去重項目。
// 這些序號再出現會被 ApplyLive/ApplyBatch 的游標規則擋掉，不需要留 id
func (s *Session) pruneSeenLocked() {
	if len(s.seen) < seenPruneThreshold {
		return
	}
	for id, seq := range s.seen {
		if seq <= s.cursor {
			delete(s.seen, id)
		}
	}
}

func (s *Session) persistCursorLocked() {
	if s.store == nil {
		return
	}
	// 持久化失敗不致命，重啟後最多多拉幾筆（id 去重擋住重複）
	_ = s.store.Save(s.shopID, s.userID, s.cursor)
}
