package serverutils

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/gofiber/fiber/v2"

	"cubie-assistant-be/internal/pkg/logger"
)

const systemErrorReply = "⚠️ **System Error:** I encountered an unexpected problem while processing your request. Please try again."

// ErrorHandlerMiddleware is the outer boundary: it recovers panics and turns
// unhandled errors into JSON responses. Conversation endpoints always answer
// HTTP 200 with an apologetic reply so the chat widget can render it inline.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server", "Panic recovered", map[string]interface{}{
					"path":  ctx.Path(),
					"panic": fmt.Sprintf("%v", r),
					"stack": string(debug.Stack()),
				})
				err = respondFailure(ctx, fiber.StatusInternalServerError)
			}
		}()

		err = ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		log.Error("server", "Unhandled request error", map[string]interface{}{
			"path":   ctx.Path(),
			"status": status,
			"error":  err.Error(),
		})
		return respondFailure(ctx, status)
	}
}

func respondFailure(ctx *fiber.Ctx, status int) error {
	if isConversationPath(ctx.Path()) {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{"reply": systemErrorReply})
	}
	return ctx.Status(status).JSON(fiber.Map{
		"success": false,
		"code":    status,
		"message": "Internal server error",
	})
}

func isConversationPath(path string) bool {
	return strings.HasPrefix(path, "/api/query") || strings.HasPrefix(path, "/api/approve-email")
}
