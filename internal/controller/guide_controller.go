package controller

import (
	"bufio"
	"context"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/pkg/serverutils"
	"devotion-guide-be/internal/service"
	internalWS "devotion-guide-be/internal/websocket"
	"devotion-guide-be/pkg/guide/protocol"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const ndjsonContentType = "application/x-ndjson"

type IGuideController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Suggestions(ctx *fiber.Ctx) error
}

type guideController struct {
	guideService service.IGuideService
	logger       logger.ILogger
}

func NewGuideController(guideService service.IGuideService, log logger.ILogger) IGuideController {
	return &guideController{
		guideService: guideService,
		logger:       log,
	}
}

func (c *guideController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/guide/v1")
	h.Use(auth)
	h.Post("suggestions", c.Suggestions)
	h.Get("ws", c.upgradeOnly, websocket.New(c.socket))
}

// Suggestions streams guide events as NDJSON. Errors raised before the model
// stream opens are ordinary JSON error responses.
func (c *guideController) Suggestions(ctx *fiber.Ctx) error {
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}

	var req dto.SuggestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// The body writer runs after this handler returns, so the session gets
	// its own context and is cancelled when the client stops reading.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx.UserContext()))
	stream, err := c.guideService.Start(streamCtx, userId, &req)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set(fiber.HeaderContentType, ndjsonContentType)
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set("X-Trace-Id", stream.TraceId)
	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		c.writeStream(w, stream, stream.TraceId, cancel)
	})
	return nil
}

// eventStream is the part of service.GuideStream the body writer reads.
type eventStream interface {
	Events() <-chan protocol.Event
	Wait() (protocol.Summary, error)
}

// writeStream copies events to w until the stream closes. The first failed
// write marks the client as gone and cancels the session; remaining events
// are drained unwritten so the producer can finish.
func (c *guideController) writeStream(w *bufio.Writer, stream eventStream, traceID string, cancel context.CancelFunc) {
	gone := false
	for ev := range stream.Events() {
		if gone {
			continue
		}
		line, err := protocol.Encode(ev)
		if err != nil {
			c.logger.Error("GUIDE", "Failed to encode event", map[string]interface{}{"error": err.Error()})
			continue
		}
		_, werr := w.Write(line)
		if werr == nil {
			werr = w.Flush()
		}
		if werr != nil {
			gone = true
			cancel()
			c.logger.Info("GUIDE", "Client went away, cancelling stream", map[string]interface{}{
				"trace_id": traceID,
				"error":    werr.Error(),
			})
		}
	}
	if _, err := stream.Wait(); err != nil {
		c.logger.Warn("GUIDE", "Stream ended with error", map[string]interface{}{
			"trace_id": traceID,
			"error":    err.Error(),
		})
	}
}

func (c *guideController) upgradeOnly(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	userId, err := serverutils.UserID(ctx)
	if err != nil {
		return err
	}
	ctx.Locals("guide_user_id", userId)
	return ctx.Next()
}

func (c *guideController) socket(conn *websocket.Conn) {
	userId, _ := conn.Locals("guide_user_id").(uuid.UUID)
	internalWS.ServeWs(conn, userId, c.guideService, c.logger)
}
