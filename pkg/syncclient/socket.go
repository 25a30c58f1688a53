package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/logger"

	"github.com/gorilla/websocket"
)

// ErrAuthRejected 憑證被拒且已達重試上限，呼叫端應停止並要求重新驗證
var ErrAuthRejected = errors.New("authentication rejected by server")

const maxAuthFailures = 3

// Socket 推送傳輸通道。
// 斷線指數退避重連（1s 起跳、30s 封頂），重連帶著保留的游標重新訂閱，
// 伺服器會先回放積壓再轉即時。驗證被拒（升級握手 401/403）另計上限，
// 不會無限重試壞憑證；伺服器的 error frame 是暫時性失敗，照常退避重連。
type Socket struct {
	session *Session
	dialURL string
	// fetch 用於缺號補拉（商戶範圍的即時推送跳號時走這裡）
	fetch FetchFunc

	subscribe domain.WSRequest
}

// NewCustomerSocket 掛件端：訂閱自己的會話
func NewCustomerSocket(session *Session, baseWS, shopKey string, fetch FetchFunc) *Socket {
	q := url.Values{}
	q.Set("shopId", session.ShopID())
	q.Set("shopKey", shopKey)
	return &Socket{
		session: session,
		dialURL: baseWS + "/ws/customer?" + q.Encode(),
		fetch:   fetch,
		subscribe: domain.WSRequest{
			Type:   domain.WSAuth,
			ShopID: session.ShopID(),
			UserID: session.UserID(),
		},
	}
}

// NewStaffSocket 後台客服：訂閱整個商戶
func NewStaffSocket(session *Session, baseWS, jwt string, fetch FetchFunc) *Socket {
	q := url.Values{}
	q.Set("auth", jwt)
	return &Socket{
		session: session,
		dialURL: baseWS + "/ws/staff?" + q.Encode(),
		fetch:   fetch,
		subscribe: domain.WSRequest{
			Type:    domain.WSSubscribe,
			ShopID:  session.ShopID(),
			StaffID: session.UserID(),
		},
	}
}

// Run 阻塞執行，斷線自動重連；回傳非 nil 只有兩種情況：
// ctx 取消（回 ctx.Err()）或驗證被拒達上限（回 ErrAuthRejected）
func (s *Socket) Run(ctx context.Context) error {
	bo := newBackoff()
	authFailures := 0

	for {
		if ctx.Err() != nil {
			s.session.setState(StateDisconnected)
			return ctx.Err()
		}

		s.session.setState(StateConnecting)
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.dialURL, nil)
		if err != nil {
			// 升級被拒 401/403 是憑證問題，另計上限
			if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
				authFailures++
				if authFailures >= maxAuthFailures {
					s.session.setState(StateDisconnected)
					return ErrAuthRejected
				}
			}
			logger.Log.Debug("websocket dial failed: " + err.Error())
			if !s.wait(ctx, bo.Next()) {
				s.session.setState(StateDisconnected)
				return ctx.Err()
			}
			continue
		}

		// 撥通代表憑證有效：退避與驗證失敗計數都歸零
		bo.Reset()
		authFailures = 0
		err = s.serve(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			s.session.setState(StateDisconnected)
			return ctx.Err()
		}
		logger.Log.Debug("websocket disconnected, will retry: " + errString(err))
		if !s.wait(ctx, bo.Next()) {
			s.session.setState(StateDisconnected)
			return ctx.Err()
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "closed"
	}
	return err.Error()
}

// serve 一次連線的生命週期：訂閱（帶游標）→ 積壓 → caught_up → 即時
func (s *Socket) serve(ctx context.Context, conn *websocket.Conn) error {
	sub := s.subscribe
	sub.LastSequenceID = s.session.Cursor()
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	s.session.setState(StateSyncing)

	// ctx 取消時把連線關掉讓 ReadMessage 返回
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var resp domain.WSResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			logger.Log.Debug("websocket bad frame: " + err.Error())
			continue
		}

		switch resp.Type {
		case domain.WSBacklog:
			s.session.ApplyBatch(resp.Messages, resp.MaxSequenceID)

		case domain.WSCaughtUp:
			// 空頁推進到高水位
			s.session.ApplyBatch(nil, resp.MaxSequenceID)
			s.session.setState(StateLive)

		case domain.WSNewMessage:
			if resp.Message == nil {
				continue
			}
			if _, resync := s.session.ApplyLive(*resp.Message); resync {
				s.resync(ctx)
			}

		case domain.WSError:
			// 伺服器端失敗（積壓拉取、訂閱）是暫時性的，斷線重連即可；
			// 憑證問題只會在升級握手以 401/403 拒絕，不會走 error frame
			logger.Log.Debug("websocket server error: " + resp.Error)
			return errors.New(resp.Error)
		}
	}
}

// resync 缺號補拉：從現有游標 fetchSince，批次路徑保證連續
func (s *Socket) resync(ctx context.Context) {
	if s.fetch == nil {
		return
	}
	s.session.setState(StateSyncing)
	for {
		batch, err := s.fetch(ctx, s.session.Cursor())
		if err != nil {
			logger.Log.Debug("resync fetch failed: " + err.Error())
			return
		}
		if _, catchUp := s.session.ApplyBatch(batch.Messages, batch.MaxSequenceID); !catchUp {
			s.session.setState(StateLive)
			return
		}
	}
}

func (s *Socket) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
