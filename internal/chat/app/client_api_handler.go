package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/database"
	"live_chat_service/pkg/logger"
	"live_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientSession 掛件端的連線階段（單一分頁一個，互不共享游標）
type ClientSession struct {
	SessionID      string    `json:"sessionId"`
	ShopID         string    `json:"shopId"`
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActiveAt   time.Time `json:"lastActiveAt"`
}

// ClientAPIHandler 掛件端 REST：建立階段、送訊息、輪詢增量。
// 階段存本地 map 並 write-through 到 redis，換實例或重啟後仍可續用。
type ClientAPIHandler struct {
	appendUC     *AppendMessageUseCase
	fetchUC      *FetchMessagesUseCase
	sessionStore database.RedisRepository[ClientSession]
	sessionTTL   time.Duration
	pollInterval time.Duration
	pageLimit    int64

	mu       sync.RWMutex
	sessions map[string]*ClientSession
}

// NewClientAPIHandler create ClientAPIHandler，並啟動過期階段清掃
// sessionStore 可為 nil（純本地階段）
func NewClientAPIHandler(
	ctx context.Context,
	appendUC *AppendMessageUseCase,
	fetchUC *FetchMessagesUseCase,
	sessionStore database.RedisRepository[ClientSession],
	sessionTTL time.Duration,
	pollInterval time.Duration,
	pageLimit int64,
) *ClientAPIHandler {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	if pageLimit <= 0 {
		pageLimit = 100
	}
	h := &ClientAPIHandler{
		appendUC:     appendUC,
		fetchUC:      fetchUC,
		sessionStore: sessionStore,
		sessionTTL:   sessionTTL,
		pollInterval: pollInterval,
		pageLimit:    pageLimit,
		sessions:     make(map[string]*ClientSession),
	}
	go h.sweepLoop(ctx)
	return h
}

func sessionKey(sessionID string) string { return "chat:session:" + sessionID }

// sweepLoop 定期清掉過期階段
func (h *ClientAPIHandler) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			h.mu.Lock()
			for id, s := range h.sessions {
				if now.Sub(s.LastActiveAt) > h.sessionTTL {
					delete(h.sessions, id)
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (h *ClientAPIHandler) getSession(ctx context.Context, sessionID string) (*ClientSession, bool) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if ok && time.Since(s.LastActiveAt) > h.sessionTTL {
		delete(h.sessions, sessionID)
		ok = false
		s = nil
	}
	if ok {
		s.LastActiveAt = time.Now()
	}
	h.mu.Unlock()
	if ok {
		return s, true
	}

	// 本地沒有（重啟或換了實例）則回源 redis
	if h.sessionStore == nil {
		return nil, false
	}
	stored, err := h.sessionStore.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, false
	}
	stored.LastActiveAt = time.Now()
	h.mu.Lock()
	h.sessions[sessionID] = &stored
	h.mu.Unlock()
	if err := h.sessionStore.ExtendTTL(ctx, sessionKey(sessionID), h.sessionTTL); err != nil {
		logger.Log.Errorf("session ttl extend error:", err)
	}
	return &stored, true
}

type connectReq struct {
	UserID string `json:"userId"`
}

// Connect godoc
// @Summary Establish a widget session
// @Description Issues a session for the widget. userId is optional; a new visitor id is generated when absent.
// @Tags Client
// @Accept json
// @Produce json
// @Param X-Shop-Key header string true "Shop API key"
// @Param X-Shop-Id header string true "Shop id"
// @Param body body connectReq false "optional existing userId"
// @Success 200 {object} map[string]interface{} "session info"
// @Failure 401 {object} map[string]interface{} "invalid shop key"
// @Router /api/connect [post]
func (h *ClientAPIHandler) Connect(c *fiber.Ctx) error {
	shopID, _ := c.Locals(middlewares.LocalShopID).(string)

	var req connectReq
	// body 可省略
	_ = c.BodyParser(&req)

	userID := req.UserID
	if userID == "" {
		userID = "user_" + uuid.New().String()
	}

	sess := &ClientSession{
		SessionID:      uuid.New().String(),
		ShopID:         shopID,
		UserID:         userID,
		ConversationID: domain.NewConversationID(shopID, userID),
		CreatedAt:      time.Now(),
		LastActiveAt:   time.Now(),
	}
	h.mu.Lock()
	h.sessions[sess.SessionID] = sess
	h.mu.Unlock()
	if h.sessionStore != nil {
		if err := h.sessionStore.Set(c.UserContext(), sessionKey(sess.SessionID), *sess, h.sessionTTL); err != nil {
			logger.Log.Errorf("session store error:", err)
		}
	}

	logger.Log.Info("client connect", zap.String("shopID", shopID), zap.String("userID", userID))

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"sessionId":      sess.SessionID,
			"userId":         sess.UserID,
			"conversationId": sess.ConversationID,
			"pollIntervalMs": h.pollInterval.Milliseconds(),
		},
	})
}

// SecureConnect godoc
// @Summary Establish a widget session (alias kept for older widget builds)
// @Tags Client
// @Accept json
// @Produce json
// @Param X-Shop-Key header string true "Shop API key"
// @Param X-Shop-Id header string true "Shop id"
// @Success 200 {object} map[string]interface{} "session info"
// @Router /api/secure-connect [post]
func (h *ClientAPIHandler) SecureConnect(c *fiber.Ctx) error {
	return h.Connect(c)
}

type sendReq struct {
	SessionID   string `json:"sessionId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
}

// Send godoc
// @Summary Append a customer message
// @Description Sequences and stores the message, then fans out to both transports.
// @Tags Client
// @Accept json
// @Produce json
// @Param X-Shop-Key header string true "Shop API key"
// @Param X-Shop-Id header string true "Shop id"
// @Param body body sendReq true "message"
// @Success 200 {object} map[string]interface{} "stored message with sequenceId"
// @Failure 400 {object} map[string]interface{} "bad request"
// @Failure 500 {object} map[string]interface{} "sequencing or storage failure"
// @Router /api/send [post]
func (h *ClientAPIHandler) Send(c *fiber.Ctx) error {
	var req sendReq
	if err := c.BodyParser(&req); err != nil {
		return clientError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	sess, ok := h.getSession(c.UserContext(), req.SessionID)
	if !ok {
		return clientError(c, fiber.StatusUnauthorized, "SESSION_EXPIRED", domain.ErrSessionNotFound.Error())
	}

	msg, err := h.appendUC.Execute(
		c.UserContext(),
		sess.ShopID,
		sess.ConversationID,
		domain.SenderCustomer,
		sess.UserID,
		domain.MessageType(req.MessageType),
		req.Message,
	)
	if err != nil {
		if err == domain.ErrEmptyContent || err == domain.ErrInvalidMessageType {
			return clientError(c, fiber.StatusBadRequest, "INVALID_MESSAGE", err.Error())
		}
		logger.Log.Error("client send err", zap.String("shopID", sess.ShopID), zap.String("err", err.Error()))
		return clientError(c, fiber.StatusInternalServerError, "SEND_FAILED", "message could not be stored")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    msg,
	})
}

// Messages godoc
// @Summary Poll incremental messages
// @Description Returns messages with sequenceId > lastSequenceId in ascending order, plus the true high-water maxSequenceId.
// @Tags Client
// @Produce json
// @Param X-Shop-Key header string true "Shop API key"
// @Param X-Shop-Id header string true "Shop id"
// @Param userId query string true "visitor id"
// @Param lastSequenceId query int false "cursor, default 0"
// @Success 200 {object} map[string]interface{} "messages + maxSequenceId"
// @Router /api/messages [get]
func (h *ClientAPIHandler) Messages(c *fiber.Ctx) error {
	shopID, _ := c.Locals(middlewares.LocalShopID).(string)
	userID := c.Query("userId")
	if userID == "" {
		return clientError(c, fiber.StatusBadRequest, "MISSING_PARAMETERS", "missing userId")
	}

	lastSeq, err := strconv.ParseInt(c.Query("lastSequenceId", "0"), 10, 64)
	if err != nil || lastSeq < 0 {
		return clientError(c, fiber.StatusBadRequest, "INVALID_CURSOR", "lastSequenceId must be a non-negative integer")
	}

	batch, err := h.fetchUC.FetchSince(c.UserContext(), shopID, domain.NewConversationID(shopID, userID), lastSeq, h.pageLimit)
	if err != nil {
		logger.Log.Error("client poll err", zap.String("shopID", shopID), zap.String("err", err.Error()))
		return clientError(c, fiber.StatusInternalServerError, "FETCH_FAILED", "could not fetch messages")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"messages":      batch.Messages,
			"maxSequenceId": batch.MaxSequenceID,
		},
	})
}

// Health godoc
// @Summary Service liveness
// @Tags Client
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/health [get]
func (h *ClientAPIHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "status": "ok"})
}

// Stats godoc
// @Summary Connection stats
// @Tags Client
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/stats [get]
func (h *ClientAPIHandler) Stats(c *fiber.Ctx) error {
	h.mu.RLock()
	active := len(h.sessions)
	h.mu.RUnlock()
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"activeSessions": active,
		},
	})
}

// clientError 掛件端統一錯誤格式
func clientError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}
