package app

import (
	"strconv"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	"live_chat_service/pkg/encrypt"
	"live_chat_service/pkg/logger"
	"live_chat_service/pkg/middlewares"
	"live_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StaffAPIHandler 後台客服 REST：登入、會話列表、歷史輪詢、回覆、已讀
type StaffAPIHandler struct {
	staffRepo repository.StaffRepository
	convRepo  repository.ConversationRepository
	appendUC  *AppendMessageUseCase
	fetchUC   *FetchMessagesUseCase
	unreadUC  *UnreadUseCase
	pageLimit int64
}

// NewStaffAPIHandler create StaffAPIHandler
func NewStaffAPIHandler(
	staffRepo repository.StaffRepository,
	convRepo repository.ConversationRepository,
	appendUC *AppendMessageUseCase,
	fetchUC *FetchMessagesUseCase,
	unreadUC *UnreadUseCase,
	pageLimit int64,
) *StaffAPIHandler {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &StaffAPIHandler{
		staffRepo: staffRepo,
		convRepo:  convRepo,
		appendUC:  appendUC,
		fetchUC:   fetchUC,
		unreadUC:  unreadUC,
		pageLimit: pageLimit,
	}
}

type staffLoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login godoc
// @Summary Staff console login
// @Description Verifies credentials and issues a JWT; also set as auth_token cookie.
// @Tags Staff
// @Accept json
// @Produce json
// @Param body body staffLoginReq true "credentials"
// @Success 200 {object} map[string]interface{} "token"
// @Failure 401 {object} map[string]interface{} "invalid credentials"
// @Router /staff/login [post]
func (h *StaffAPIHandler) Login(c *fiber.Ctx) error {
	var req staffLoginReq
	if err := c.BodyParser(&req); err != nil {
		return clientError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	staff, err := h.staffRepo.FindByStaff(c.UserContext(), &domain.StaffQuery{Email: &req.Email})
	if err != nil {
		return clientError(c, fiber.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "invalid credentials")
	}
	if err := encrypt.CheckPassword(staff.Password, req.Password); err != nil {
		return clientError(c, fiber.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "invalid credentials")
	}

	jwt, err := token.GenerateJWT(staff.StaffID, staff.ShopID, staff.Role, "chat_sync_service")
	if err != nil {
		logger.Log.Error("staff login err", zap.String("email", req.Email), zap.String("err", err.Error()))
		return clientError(c, fiber.StatusInternalServerError, "TOKEN_FAILED", "could not issue token")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middlewares.CookieToken,
		Value:    jwt,
		HTTPOnly: true,
		Expires:  time.Now().Add(24 * time.Hour),
	})

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token":   jwt,
			"staffId": staff.StaffID,
			"shopId":  staff.ShopID,
		},
	})
}

// Conversations godoc
// @Summary Conversation list for the console
// @Description Conversations of the staff's shop with unread counts, newest first.
// @Tags Staff
// @Produce json
// @Param auth query string true "JWT"
// @Success 200 {object} map[string]interface{}
// @Router /staff/conversations [get]
func (h *StaffAPIHandler) Conversations(c *fiber.Ctx) error {
	shopID, _ := c.Locals(middlewares.TokenShopID).(string)

	convs, err := h.convRepo.ListByShop(c.UserContext(), shopID, h.pageLimit)
	if err != nil {
		logger.Log.Error("list conversations err", zap.String("shopID", shopID), zap.String("err", err.Error()))
		return clientError(c, fiber.StatusInternalServerError, "FETCH_FAILED", "could not list conversations")
	}
	return c.JSON(fiber.Map{"success": true, "data": convs})
}

// Messages godoc
// @Summary Staff incremental poll
// @Description Shop-wide when conversationId is absent, single conversation otherwise.
// @Tags Staff
// @Produce json
// @Param auth query string true "JWT"
// @Param conversationId query string false "limit to one conversation"
// @Param lastSequenceId query int false "cursor, default 0"
// @Success 200 {object} map[string]interface{} "messages + maxSequenceId"
// @Router /staff/messages [get]
func (h *StaffAPIHandler) Messages(c *fiber.Ctx) error {
	shopID, _ := c.Locals(middlewares.TokenShopID).(string)

	lastSeq, err := strconv.ParseInt(c.Query("lastSequenceId", "0"), 10, 64)
	if err != nil || lastSeq < 0 {
		return clientError(c, fiber.StatusBadRequest, "INVALID_CURSOR", "lastSequenceId must be a non-negative integer")
	}

	batch, err := h.fetchUC.FetchSince(c.UserContext(), shopID, c.Query("conversationId"), lastSeq, h.pageLimit)
	if err != nil {
		logger.Log.Error("staff poll err", zap.String("shopID", shopID), zap.String("err", err.Error()))
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

type staffReplyReq struct {
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

// Reply godoc
// @Summary Staff reply into a conversation
// @Tags Staff
// @Accept json
// @Produce json
// @Param auth query string true "JWT"
// @Param id path string true "conversationId"
// @Param body body staffReplyReq true "reply"
// @Success 200 {object} map[string]interface{} "stored message"
// @Failure 403 {object} map[string]interface{} "conversation belongs to another shop"
// @Router /staff/conversations/{id}/messages [post]
func (h *StaffAPIHandler) Reply(c *fiber.Ctx) error {
	shopID, _ := c.Locals(middlewares.TokenShopID).(string)
	staffID, _ := c.Locals(middlewares.TokenStaffID).(string)
	conversationID := c.Params("id")

	// 會話必須屬於自己的商戶
	convShop, _, ok := domain.SplitConversationID(conversationID)
	if !ok || convShop != shopID {
		return clientError(c, fiber.StatusForbidden, "FORBIDDEN", "conversation does not belong to this shop")
	}

	var req staffReplyReq
	if err := c.BodyParser(&req); err != nil {
		return clientError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}

	msg, err := h.appendUC.Execute(
		c.UserContext(),
		shopID,
		conversationID,
		domain.SenderStaff,
		staffID,
		domain.MessageType(req.MessageType),
		req.Content,
	)
	if err != nil {
		if err == domain.ErrEmptyContent || err == domain.ErrInvalidMessageType {
			return clientError(c, fiber.StatusBadRequest, "INVALID_MESSAGE", err.Error())
		}
		logger.Log.Error("staff reply err", zap.String("shopID", shopID), zap.String("err", err.Error()))
		return clientError(c, fiber.StatusInternalServerError, "SEND_FAILED", "message could not be stored")
	}

	return c.JSON(fiber.Map{"success": true, "data": msg})
}

// MarkRead godoc
// @Summary Mark a conversation read
// @Description Resets the conversation unread count; the shop badge drops by the prior value.
// @Tags Staff
// @Produce json
// @Param auth query string true "JWT"
// @Param id path string true "conversationId"
// @Success 200 {object} map[string]interface{} "prior unread count"
// @Router /staff/conversations/{id}/read [post]
func (h *StaffAPIHandler) MarkRead(c *fiber.Ctx) error {
	shopID, _ := c.Locals(middlewares.TokenShopID).(string)
	conversationID := c.Params("id")

	convShop, _, ok := domain.SplitConversationID(conversationID)
	if !ok || convShop != shopID {
		return clientError(c, fiber.StatusForbidden, "FORBIDDEN", "conversation does not belong to this shop")
	}

	prev, err := h.unreadUC.MarkRead(c.UserContext(), shopID, conversationID)
	if err != nil {
		if err == domain.ErrConversationNotFound {
			return clientError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
		}
		logger.Log.Error("mark read err", zap.String("conversationID", conversationID), zap.String("err", err.Error()))
		return clientError(c, fiber.StatusInternalServerError, "MARK_READ_FAILED", "could not mark read")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"previousUnread": prev},
	})
}

// Unread godoc
// @Summary Shop unread badge
// @Tags Staff
// @Produce json
// @Param auth query string true "JWT"
// @Success 200 {object} map[string]interface{}
// @Router /staff/unread [get]
func (h *StaffAPIHandler) Unread(c *fiber.Ctx) error {
	shopID, _ := c.Locals(middlewares.TokenShopID).(string)

	total, err := h.unreadUC.GetShopUnread(c.UserContext(), shopID)
	if err != nil {
		logger.Log.Error("shop unread err", zap.String("shopID", shopID), zap.String("err", err.Error()))
		return clientError(c, fiber.StatusInternalServerError, "FETCH_FAILED", "could not read unread badge")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    domain.ShopUnreadInfo{ShopID: shopID, UnreadCount: total},
	})
}
