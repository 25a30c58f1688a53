package syncclient

import (
	"sync"
	"testing"

	"live_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
)

func staffMsg(conv string) domain.Message {
	return domain.Message{ConversationID: conv, SenderType: domain.SenderStaff}
}

// 對方訊息累計，自己的訊息不算
func TestUnreadTracker_CountsCounterpartOnly(t *testing.T) {
	tr := NewUnreadTracker(domain.SenderStaff)

	tr.OnMessage(staffMsg("c1"))
	tr.OnMessage(domain.Message{ConversationID: "c1", SenderType: domain.SenderCustomer})

	assert.Equal(t, int64(1), tr.Count("c1"))
	assert.Equal(t, int64(1), tr.Total())
}

// 前景會話不累計
func TestUnreadTracker_FocusedConversationSkipped(t *testing.T) {
	tr := NewUnreadTracker(domain.SenderStaff)
	tr.Focus("c1")

	tr.OnMessage(staffMsg("c1"))
	tr.OnMessage(staffMsg("c2"))

	assert.Equal(t, int64(0), tr.Count("c1"))
	assert.Equal(t, int64(1), tr.Count("c2"))

	tr.Blur()
	tr.OnMessage(staffMsg("c1"))
	assert.Equal(t, int64(1), tr.Count("c1"))
}

// MarkRead 回歸零前的值，總數按差額下降
func TestUnreadTracker_MarkReadDelta(t *testing.T) {
	tr := NewUnreadTracker(domain.SenderStaff)

	tr.OnMessage(staffMsg("c1"))
	tr.OnMessage(staffMsg("c1"))
	tr.OnMessage(staffMsg("c2"))

	prev := tr.MarkRead("c1")

	assert.Equal(t, int64(2), prev)
	assert.Equal(t, int64(0), tr.Count("c1"))
	assert.Equal(t, int64(1), tr.Total())
}

// 守恆：併發增減下總數恆等於各會話之和
func TestUnreadTracker_Conservation(t *testing.T) {
	tr := NewUnreadTracker(domain.SenderStaff)
	convs := []string{"c1", "c2", "c3"}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tr.OnMessage(staffMsg(convs[n%len(convs)]))
			if n%5 == 0 {
				tr.MarkRead(convs[n%len(convs)])
			}
		}(i)
	}
	wg.Wait()

	var sum int64
	for _, c := range convs {
		sum += tr.Count(c)
	}
	assert.Equal(t, sum, tr.Total())
}
