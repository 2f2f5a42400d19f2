package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"cubie-assistant-be/internal/dto"
	"cubie-assistant-be/internal/service"
	"cubie-assistant-be/pkg/genai"
)

const quotaReply = "Oops. I am out of fuel! Tell your Developer to refuel me!"

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	ApproveEmail(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
}

func NewChatController(service service.IChatService) IChatController {
	return &chatController{service: service}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Post("/query", c.Query)
	r.Post("/approve-email", c.ApproveEmail)
}

func (c *chatController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if req.Question == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"code":    400,
			"message": "question is required",
		})
	}

	res, err := c.service.Query(ctx.Context(), sessionID(ctx, req.SessionId), &req)
	if err != nil {
		if genai.IsQuotaExhausted(err) {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"reply": quotaReply})
		}
		return err
	}
	return ctx.JSON(res)
}

func (c *chatController) ApproveEmail(ctx *fiber.Ctx) error {
	var req dto.ApproveEmailRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	reply := c.service.ResolveApproval(sessionID(ctx, req.SessionId), req.Approved)
	return ctx.JSON(fiber.Map{"reply": reply})
}

// sessionID prefers the authenticated user id, then the client-supplied
// session id, then a shared default for anonymous widget traffic. JWT claims
// decode numbers as float64, so both representations are accepted.
func sessionID(ctx *fiber.Ctx, requested string) string {
	switch userID := ctx.Locals("user_id").(type) {
	case string:
		if userID != "" {
			return userID
		}
	case float64:
		return strconv.FormatInt(int64(userID), 10)
	}
	if requested != "" {
		return requested
	}
	return "default"
}
