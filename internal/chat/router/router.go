package router

import (
	"context"

	"live_chat_service/internal/chat/app"
	"live_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册同步服務的路由
// @title Live Chat Sync Service API
// @version 1.0
// @description Incremental message synchronization for shop live chat
// @host localhost:8080
// @BasePath /
func RegisterRoutes(
	r *fiber.App,
	shopKeyValidator middlewares.ShopKeyValidator,
	clientAPI *app.ClientAPIHandler,
	staffAPI *app.StaffAPIHandler,
	wsHandler *app.SyncWebsocketHandler,
) {
	r.Get("/swagger/*", swagger.HandlerDefault)

	// 掛件端（shop key 驗證）
	clientRoutes := r.Group("/api")
	clientRoutes.Get("/health", clientAPI.Health)
	clientRoutes.Get("/stats", clientAPI.Stats)

	clientRoutes.Use(middlewares.ShopKeyMiddleware(shopKeyValidator))
	clientRoutes.Post("/connect", clientAPI.Connect)
	clientRoutes.Post("/secure-connect", clientAPI.SecureConnect)
	clientRoutes.Post("/send", clientAPI.Send)
	clientRoutes.Get("/messages", clientAPI.Messages)

	// 後台客服（JWT 驗證）
	staffRoutes := r.Group("/staff")
	staffRoutes.Post("/login", staffAPI.Login)

	staffRoutes.Use(middlewares.JWTMiddleware())
	staffRoutes.Get("/conversations", staffAPI.Conversations)
	staffRoutes.Get("/messages", staffAPI.Messages)
	staffRoutes.Post("/conversations/:id/messages", staffAPI.Reply)
	staffRoutes.Post("/conversations/:id/read", staffAPI.MarkRead)
	staffRoutes.Get("/unread", staffAPI.Unread)

	// websocket 升級路徑（推送傳輸通道）
	r.Get("/ws/customer", middlewares.ShopKeyMiddleware(shopKeyValidator), websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleCustomer(context.Background(), c)
	}))
	r.Get("/ws/staff", middlewares.JWTMiddleware(), websocket.New(func(c *websocket.Conn) {
		wsHandler.HandleStaff(context.Background(), c)
	}))
}
