package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg"
	"live_chat_service/pkg/syncclient"

	"github.com/google/uuid"
)

// sync_probe 針對運行中的服務跑一輪完整的同步流程：
// 顧客送訊息 → 輪詢(lastId=0) → 客服回覆 → 以 maxSequenceId 續拉，
// 印出觀察到的 sequenceId 與游標行為，驗證增量拉取不重不漏。
func main() {
	var (
		serverURL = flag.String("url", "http://localhost:8080", "chat sync service base url")
		shopID    = flag.String("shop", "", "shop id")
		shopKey   = flag.String("key", "", "shop api key")
		email     = flag.String("staff-email", "", "staff console email")
		password  = flag.String("staff-password", "", "staff console password")
	)
	flag.Parse()

	if *shopID == "" || *shopKey == "" {
		log.Fatal("both -shop and -key are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	userID := fmt.Sprintf("user_probe_%s", uuid.New().String()[:8])
	log.Printf("probe user: %s", userID)

	api := syncclient.NewAPIClient(*serverURL, *shopID, *shopKey)

	// 1. 建立階段並送出顧客訊息
	info, err := api.Connect(ctx, userID)
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	log.Printf("session=%s conversation=%s", info.SessionID, info.ConversationID)

	if _, err := api.Send(ctx, info.SessionID, "probe: customer message", ""); err != nil {
		log.Fatalf("send failed: %v", err)
	}
	log.Print("customer message sent")

	// 2. 輪詢 lastId=0
	batch, err := api.FetchSince(ctx, userID, 0)
	if err != nil {
		log.Fatalf("poll failed: %v", err)
	}
	printBatch("poll(lastId=0)", batch)
	assertAscending(batch.Messages)

	if *email == "" {
		log.Print("no staff credentials, skipping reply phase")
		return
	}

	// 3. 客服登入並回覆
	token, err := staffLogin(ctx, *serverURL, *email, *password)
	if err != nil {
		log.Fatalf("staff login failed: %v", err)
	}
	log.Print("staff login ok")

	if err := staffReply(ctx, *serverURL, token, info.ConversationID, "probe: first staff reply"); err != nil {
		log.Fatalf("staff reply failed: %v", err)
	}
	log.Print("staff reply 1 sent")

	// 4. 顧客端應看到回覆
	batch2, err := api.FetchSince(ctx, userID, 0)
	if err != nil {
		log.Fatalf("poll failed: %v", err)
	}
	printBatch("poll(lastId=0)", batch2)
	assertAscending(batch2.Messages)
	cursor := batch2.MaxSequenceID

	// 5. 第二則回覆後用游標續拉，只該看到新訊息
	if err := staffReply(ctx, *serverURL, token, info.ConversationID, "probe: second staff reply"); err != nil {
		log.Fatalf("staff reply failed: %v", err)
	}
	log.Print("staff reply 2 sent")

	batch3, err := api.FetchSince(ctx, userID, cursor)
	if err != nil {
		log.Fatalf("poll failed: %v", err)
	}
	printBatch(fmt.Sprintf("poll(lastId=%d)", cursor), batch3)
	assertAscending(batch3.Messages)
	for _, m := range batch3.Messages {
		if m.SequenceID <= cursor {
			log.Fatalf("FAIL: got seq %d at or below cursor %d", m.SequenceID, cursor)
		}
	}

	log.Print("probe finished: incremental fetch returned only new messages")
}

func printBatch(label string, b *domain.MessageBatch) {
	log.Printf("%s: %d messages, maxSequenceId=%d", label, len(b.Messages), b.MaxSequenceID)
	for _, m := range b.Messages {
		log.Printf("  seq=%d %s: %s", m.SequenceID, m.SenderType, m.Content)
	}
}

func assertAscending(messages []domain.Message) {
	var seen []string
	for i, m := range messages {
		if i > 0 && m.SequenceID <= messages[i-1].SequenceID {
			log.Fatalf("FAIL: sequence not strictly ascending at index %d", i)
		}
		if pkg.Contains(seen, m.ID) {
			log.Fatalf("FAIL: duplicate message id %s in one page", m.ID)
		}
		seen = append(seen, m.ID)
	}
}

func staffLogin(ctx context.Context, baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/staff/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("login rejected (status %d)", resp.StatusCode)
	}
	return out.Data.Token, nil
}

func staffReply(ctx context.Context, baseURL, token, conversationID, content string) error {
	body, _ := json.Marshal(map[string]string{"content": content})
	url := fmt.Sprintf("%s/staff/conversations/%s/messages?auth=%s", baseURL, conversationID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reply rejected (status %d)", resp.StatusCode)
	}
	return nil
}
