package syncclient

import (
	"context"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/logger"
)

// FetchFunc 一次增量拉取（由 APIClient 或測試樁提供）
type FetchFunc func(ctx context.Context, afterSeq int64) (*domain.MessageBatch, error)

// Poller 輪詢傳輸通道。
// 固定間隔拉增量；單次失敗吞掉等下一個 tick，游標不動所以不會漏。
// 頁被截斷時立刻補拉，不等下一個 tick。
type Poller struct {
	session  *Session
	fetch    FetchFunc
	interval time.Duration
}

// NewPoller create Poller
func NewPoller(session *Session, fetch FetchFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		session:  session,
		fetch:    fetch,
		interval: interval,
	}
}

// Run 阻塞執行，ctx 取消即停（明確可取消的任務，不是裸 goroutine）
func (p *Poller) Run(ctx context.Context) {
	p.session.setState(StateSyncing)
	defer p.session.setState(StateDisconnected)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// 先拉一次，不等第一個 tick
	p.pollOnce(ctx)

	for {
		select {
		case <-ticker.C:
			// tick 醒來先確認還活著，ctx 已取消就不再發請求
			if ctx.Err() != nil {
				return
			}
			p.pollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	for {
		batch, err := p.fetch(ctx, p.session.Cursor())
		if err != nil {
			// 失敗退回 Syncing，游標保留，下個 tick 重試
			logger.Log.Debug("poll fetch failed: " + err.Error())
			p.session.setState(StateSyncing)
			return
		}

		_, catchUp := p.session.ApplyBatch(batch.Messages, batch.MaxSequenceID)
		if !catchUp {
			p.session.setState(StateLive)
			return
		}
		// 頁被截斷：游標只推進到已套用的最後一筆，立刻補拉
		p.session.setState(StateSyncing)
		if ctx.Err() != nil {
			return
		}
	}
}
