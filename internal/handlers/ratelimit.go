package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// userBody is used only to extract userId from POST bodies for rate limiting.
type userBody struct {
	UserID int64 `json:"userId"`
}

// BodyUserIDMiddleware runs for POST requests and extracts userId from the
// JSON body, stores it in Locals so the rate limiter can key by user.
// Restores the body for the handler.
func BodyUserIDMiddleware(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.Next()
	}
	body := c.Body()
	if len(body) == 0 {
		return c.Next()
	}
	var req userBody
	if err := json.Unmarshal(body, &req); err != nil {
		return c.Next()
	}
	if req.UserID != 0 {
		c.Locals("rateLimitUserId", req.UserID)
	}
	// Restore body so the handler can parse it again
	c.Request().SetBody(body)
	return c.Next()
}

// RateLimitKeyByUser returns a key for the rate limiter: per-user when
// userId is available, else per-IP.
func RateLimitKeyByUser(c *fiber.Ctx) string {
	if uid, ok := c.Locals("rateLimitUserId").(int64); ok {
		return "user:" + strconv.FormatInt(uid, 10)
	}
	if q := c.Query("userId"); q != "" {
		return "user:" + q
	}
	return c.IP()
}
