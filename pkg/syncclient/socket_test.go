package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"live_chat_service/internal/chat/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsBase(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// 伺服器端暫時性失敗（error frame）只觸發重連，不算憑證被拒：
// 連續多次失敗也不會以 ErrAuthRejected 終止，取消時回 ctx.Err()
func TestSocket_ServerErrorFrameIsTransient(t *testing.T) {
	var dials int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&dials, 1)
		_, _, _ = conn.ReadMessage() // 收訂閱
		_ = conn.WriteJSON(domain.WSResponse{Type: domain.WSError, Error: "backlog fetch failed"})
		conn.Close()
	}))
	defer srv.Close()

	s := NewSession("shop_1", "user_1")
	sock := NewCustomerSocket(s, wsBase(srv), "key", nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sock.Run(ctx) }()

	// 超過驗證上限次數仍在重連
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&dials) > maxAuthFailures
	}, 15*time.Second, 50*time.Millisecond)

	select {
	case err := <-errCh:
		t.Fatalf("Run 不該在重連期間返回: %v", err)
	default:
	}

	cancel()
	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, StateDisconnected, s.State())
}

// 升級握手 401 是憑證問題，達上限後以 ErrAuthRejected 終止
func TestSocket_HandshakeUnauthorizedHitsCap(t *testing.T) {
	var dials int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSession("shop_1", "user_1")
	sock := NewCustomerSocket(s, wsBase(srv), "bad-key", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := sock.Run(ctx)

	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, int32(maxAuthFailures), atomic.LoadInt32(&dials))
	assert.Equal(t, StateDisconnected, s.State())
}

// 正常生命週期：訂閱（帶游標）→ 積壓 → caught_up → 即時
func TestSocket_BacklogThenLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub domain.WSRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		_ = conn.WriteJSON(domain.WSResponse{
			Type:          domain.WSBacklog,
			Messages:      []domain.Message{msg("a", 1), msg("b", 2)},
			MaxSequenceID: 2,
		})
		_ = conn.WriteJSON(domain.WSResponse{Type: domain.WSCaughtUp, MaxSequenceID: 2})
		live := msg("c", 3)
		_ = conn.WriteJSON(domain.WSResponse{Type: domain.WSNewMessage, Message: &live})
		// 留著連線等客戶端取消
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	var got []string
	s := NewSession("shop_1", "user_1", WithMessageHandler(func(m domain.Message) {
		got = append(got, m.ID)
	}))
	sock := NewCustomerSocket(s, wsBase(srv), "key", nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sock.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Cursor() == 3 && s.State() == StateLive
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-errCh
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
