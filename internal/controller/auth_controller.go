package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"cubie-assistant-be/internal/dto"
	"cubie-assistant-be/internal/service"
)

type IAuthController interface {
	RegisterRoutes(r fiber.Router)
	Login(ctx *fiber.Ctx) error
	Logout(ctx *fiber.Ctx) error
}

type authController struct {
	service service.IAuthService
}

func NewAuthController(service service.IAuthService) IAuthController {
	return &authController{service: service}
}

func (c *authController) RegisterRoutes(r fiber.Router) {
	r.Post("/login", c.Login)
	r.Post("/logout", c.Logout)
}

func (c *authController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"code":    400,
			"message": "username and password are required",
		})
	}

	res, err := c.service.Login(ctx.Context(), &req, ctx.IP(), ctx.Get("User-Agent"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"code":    401,
				"message": err.Error(),
			})
		}
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Login successful",
		"data":    res,
	})
}

// Logout is stateless: the JWT simply expires. The endpoint exists so the
// frontend has a uniform place to end a session.
func (c *authController) Logout(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"success": true,
		"code":    200,
		"message": "Logged out successfully",
		"data":    nil,
	})
}
