package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/pkg/logger"
	"live_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// SyncWebsocketHandler 推送傳輸通道。
// 連上後先回放游標之後的積壓（fetchSince，與輪詢同一條讀取路徑），
// 回放完送 caught_up 再轉即時，消除「連上了但還沒在聽」的空窗。
type SyncWebsocketHandler struct {
	fetchUC   *FetchMessagesUseCase
	pubSub    repository.PubSub
	pageLimit int64
}

// NewSyncWebsocketHandler create SyncWebsocketHandler
func NewSyncWebsocketHandler(
	fetchUC *FetchMessagesUseCase,
	pubSub repository.PubSub,
	pageLimit int64,
) *SyncWebsocketHandler {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &SyncWebsocketHandler{
		fetchUC:   fetchUC,
		pubSub:    pubSub,
		pageLimit: pageLimit,
	}
}

// wsSender 同一條連線的寫入端。
// 訂閱先於積壓回放，pub/sub 回呼跟回放會同時寫同一條連線，
// 而連線只容許單一寫入者，所以資料 frame 一律走這把鎖。
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsSender) send(resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	w.mu.Lock()
	err := w.conn.WriteMessage(websocket.TextMessage, b)
	w.mu.Unlock()
	if err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (w *wsSender) sendError(errorMsg string) {
	w.send(domain.WSResponse{
		Type:  domain.WSError,
		Error: errorMsg,
	})
}

// HandleCustomer 掛件端連線進入點（shop key 已在升級前驗過）
func (h *SyncWebsocketHandler) HandleCustomer(ctx context.Context, conn *websocket.Conn) {
	shopID, _ := conn.Locals(middlewares.LocalShopID).(string)
	w := &wsSender{conn: conn}

	req, ok := h.readSubscribe(w, domain.WSAuth)
	if !ok {
		return
	}
	if req.UserID == "" {
		w.sendError("missing userId")
		return
	}

	conversationID := domain.NewConversationID(shopID, req.UserID)
	channel := repository.ConvChannel(conversationID)
	h.serve(ctx, w, shopID, conversationID, channel, req.LastSequenceID)
}

// HandleStaff 後台客服連線進入點（JWT 已在升級前驗過），訂閱整個商戶
func (h *SyncWebsocketHandler) HandleStaff(ctx context.Context, conn *websocket.Conn) {
	shopID, _ := conn.Locals(middlewares.TokenShopID).(string)
	w := &wsSender{conn: conn}

	req, ok := h.readSubscribe(w, domain.WSSubscribe)
	if !ok {
		return
	}

	channel := repository.ShopChannel(shopID)
	h.serve(ctx, w, shopID, "", channel, req.LastSequenceID)
}

// readSubscribe 讀第一則訂閱訊息並檢查類型
func (h *SyncWebsocketHandler) readSubscribe(w *wsSender, want domain.WSType) (*domain.WSRequest, bool) {
	_, raw, err := w.conn.ReadMessage()
	if err != nil {
		logger.Log.Errorf("websocket subscribe read error:", err)
		return nil, false
	}
	var req domain.WSRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		w.sendError("invalid subscribe message")
		return nil, false
	}
	if req.Type != want {
		w.sendError("unexpected message type")
		return nil, false
	}
	if req.LastSequenceID < 0 {
		req.LastSequenceID = 0
	}
	return &req, true
}

func (h *SyncWebsocketHandler) serve(ctx context.Context, w *wsSender, shopID, conversationID, channel string, lastSeq int64) {
	conn := w.conn
	ticker := time.NewTicker(10 * time.Minute)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close", zap.String("channel", channel))
		conn.Close()
		cancel()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// 1. 先訂閱即時頻道，再回放積壓；重疊的訊息由客戶端以 id 去重，
	//    順序反過來會在訂閱前漏掉剛發布的訊息
	if err := h.pubSub.Subscribe(ctxClose, channel, func(msg domain.Message) {
		w.send(domain.WSResponse{
			Type:    domain.WSNewMessage,
			Message: &msg,
		})
	}); err != nil {
		logger.Log.Errorf("websocket subscribe error:", err)
		w.sendError("subscribe failed")
		return
	}

	// 2. 回放游標之後的積壓，直到追上高水位
	maxSeq, ok := h.replayBacklog(ctx, w, shopID, conversationID, lastSeq)
	if !ok {
		return
	}

	// 3. 告知已追上，之後的訊息走即時推送
	w.send(domain.WSResponse{
		Type:          domain.WSCaughtUp,
		MaxSequenceID: maxSeq,
	})

	// 定期發送 Ping（control frame 可與資料寫入並行，不用搶 w 的鎖）
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping message"), time.Now().Add(10*time.Second)); err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	// 之後只等 close；訂閱已經掛在 ctxClose 上
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("Connection closed:", err)
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
	}
}

// replayBacklog 分頁回放到高水位，回傳最後看到的 maxSequenceId
func (h *SyncWebsocketHandler) replayBacklog(ctx context.Context, w *wsSender, shopID, conversationID string, lastSeq int64) (int64, bool) {
	cursor := lastSeq
	for {
		batch, err := h.fetchUC.FetchSince(ctx, shopID, conversationID, cursor, h.pageLimit)
		if err != nil {
			logger.Log.Errorf("backlog fetch error:", err)
			w.sendError("backlog fetch failed")
			return 0, false
		}
		if len(batch.Messages) > 0 {
			w.send(domain.WSResponse{
				Type:          domain.WSBacklog,
				Messages:      batch.Messages,
				MaxSequenceID: batch.MaxSequenceID,
			})
			cursor = batch.Messages[len(batch.Messages)-1].SequenceID
		}
		if !batch.Truncated() {
			return batch.MaxSequenceID, true
		}
	}
}
