package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"live_chat_service/internal/chat/domain"
)

// ConnectInfo /api/connect 的回應
type ConnectInfo struct {
	SessionID      string `json:"sessionId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	PollIntervalMs int64  `json:"pollIntervalMs"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// APIClient 掛件端 REST 客戶端（輪詢傳輸通道與 sync_probe 共用）
type APIClient struct {
	BaseURL    string
	ShopID     string
	ShopKey    string
	HTTPClient *http.Client
}

// NewAPIClient create APIClient
func NewAPIClient(baseURL, shopID, shopKey string) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		ShopID:  shopID,
		ShopKey: shopKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shop-Id", c.ShopID)
	req.Header.Set("X-Shop-Key", c.ShopKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, string(raw))
	}
	if !env.Success {
		if env.Error != nil {
			return env.Error
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// Connect 建立掛件階段；userID 可空（由伺服器配發訪客 id）
func (c *APIClient) Connect(ctx context.Context, userID string) (*ConnectInfo, error) {
	var info ConnectInfo
	err := c.do(ctx, http.MethodPost, "/api/connect", map[string]string{"userId": userID}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Send 送出顧客訊息
func (c *APIClient) Send(ctx context.Context, sessionID, message, messageType string) (*domain.Message, error) {
	var msg domain.Message
	err := c.do(ctx, http.MethodPost, "/api/send", map[string]string{
		"sessionId":   sessionID,
		"message":     message,
		"messageType": messageType,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FetchSince 輪詢增量（兩種傳輸通道在伺服器端走同一條讀取路徑）
func (c *APIClient) FetchSince(ctx context.Context, userID string, afterSeq int64) (*domain.MessageBatch, error) {
	var data struct {
		Messages      []domain.Message `json:"messages"`
		MaxSequenceID int64            `json:"maxSequenceId"`
	}
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("lastSequenceId", strconv.FormatInt(afterSeq, 10))
	if err := c.do(ctx, http.MethodGet, "/api/messages?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return &domain.MessageBatch{Messages: data.Messages, MaxSequenceID: data.MaxSequenceID}, nil
}
