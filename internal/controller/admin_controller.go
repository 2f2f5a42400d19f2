package controller

import (
	"github.com/gofiber/fiber/v2"

	"cubie-assistant-be/internal/dto"
	"cubie-assistant-be/internal/pkg/logger"
	"cubie-assistant-be/internal/pkg/serverutils"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	GetLogs(ctx *fiber.Ctx) error
}

type adminController struct {
	logger logger.ILogger
}

func NewAdminController(log logger.ILogger) IAdminController {
	return &adminController{logger: log}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin", serverutils.JwtMiddleware)
	h.Get("/logs", c.GetLogs)
}

func (c *adminController) GetLogs(ctx *fiber.Ctx) error {
	var q dto.AdminLogQuery
	if err := ctx.QueryParser(&q); err != nil {
		return err
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	entries, err := c.logger.GetLogs(q.Level, q.Limit, q.Offset)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Logs retrieved",
		"data":    entries,
	})
}
