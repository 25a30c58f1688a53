package domain

// WSType websocket 訊息類型
type WSType string

const (
	// WSAuth 顧客端訂閱自己的會話（client → server）
	WSAuth WSType = "auth"
	// WSSubscribe 客服端訂閱整個商戶（client → server）
	WSSubscribe WSType = "subscribe"

	// WSBacklog 連線建立後先回放游標之後的積壓訊息（server → client）
	WSBacklog WSType = "backlog"
	// WSCaughtUp 積壓回放完畢，之後轉為即時推送（server → client）
	WSCaughtUp WSType = "caught_up"
	// WSNewMessage 即時推送單則新訊息（server → client）
	WSNewMessage WSType = "new_message"
	// WSError 協議錯誤（server → client）
	WSError WSType = "error"
)

// WSRequest websocket client → server
// LastSequenceID 是該邏輯會話已消費到的游標，重連時帶上，
// 伺服器先 fetchSince 回放再轉即時，消除「連上了但還沒在聽」的空窗。
type WSRequest struct {
	Type           WSType `json:"type"`
	ShopID         string `json:"shopId"`
	UserID         string `json:"userId,omitempty"`
	StaffID        string `json:"staffId,omitempty"`
	ShopKey        string `json:"shopKey,omitempty"`
	LastSequenceID int64  `json:"lastSequenceId"`
}

// WSResponse websocket server → client
type WSResponse struct {
	Type          WSType    `json:"type"`
	Message       *Message  `json:"message,omitempty"`
	Messages      []Message `json:"messages,omitempty"`
	MaxSequenceID int64     `json:"maxSequenceId,omitempty"`
	Error         string    `json:"error,omitempty"`
}
