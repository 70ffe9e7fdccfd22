package controller

import (
	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/pkg/serverutils"
	"devotion-guide-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDebugRunController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Start(ctx *fiber.Ctx) error
	Continue(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
}

type debugRunController struct {
	debugRunService service.IDebugRunService
}

func NewDebugRunController(debugRunService service.IDebugRunService) IDebugRunController {
	return &debugRunController{debugRunService: debugRunService}
}

func (c *debugRunController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/admin/v1/debug-runs")
	h.Use(auth, serverutils.AdminOnly)
	h.Post("", c.Start)
	h.Post(":id/continue", c.Continue)
	h.Get(":id", c.Show)
}

func (c *debugRunController) Start(ctx *fiber.Ctx) error {
	adminId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.StartDebugRunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.debugRunService.Start(ctx.UserContext(), adminId, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Debug run started", res))
}

func (c *debugRunController) Continue(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.ContinueDebugRunRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	res, err := c.debugRunService.Continue(ctx.UserContext(), id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Debug run continued", res))
}

func (c *debugRunController) Show(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.debugRunService.Get(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get debug run", res))
}
