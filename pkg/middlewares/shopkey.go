package middlewares

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const (
	//HeaderShopKey shop api key header
	HeaderShopKey = "X-Shop-Key"
	//HeaderShopID shop id header
	HeaderShopID = "X-Shop-Id"

	//LocalShopID validated shop id, set c.locals name
	LocalShopID = "ShopID"
)

// ShopKeyValidator 由 shop registry 提供的驗證函式（auth collaborator 邊界）
type ShopKeyValidator func(ctx context.Context, shopID, shopKey, domain string) error

// ShopKeyMiddleware 驗證客戶端掛件帶的商戶金鑰與來源域名
func ShopKeyMiddleware(validate ShopKeyValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		shopKey := c.Get(HeaderShopKey)
		shopID := c.Get(HeaderShopID)

		// 部分嵌入端只能帶 query
		if shopKey == "" {
			shopKey = c.Query("shopKey")
		}
		if shopID == "" {
			shopID = c.Query("shopId")
		}

		if shopKey == "" || shopID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    "MISSING_PARAMETERS",
					"message": "missing shopKey/shopId",
				},
			})
		}

		domain := c.Get(fiber.HeaderOrigin)
		if domain == "" {
			domain = c.Hostname()
		}

		if err := validate(c.Context(), shopID, shopKey, domain); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error": fiber.Map{
					"code":    "AUTHENTICATION_REQUIRED",
					"message": err.Error(),
				},
			})
		}

		c.Locals(LocalShopID, shopID)
		return c.Next()
	}
}
