package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fixmypidge/case-service/internal/api/dto"
	"github.com/fixmypidge/case-service/internal/service"
	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

// WebhookHandler receives automation events. Authentication happens in the
// route middleware before this handler runs.
type WebhookHandler struct {
	service *service.WebhookService
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: webhookService}
}

// HandleEvent POST /webhooks/automation.
func (h *WebhookHandler) HandleEvent(c *fiber.Ctx) error {
	var req dto.InboundEventRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	event := service.InboundEvent{
		Kind:           service.InboundEventKind(req.Event),
		CaseID:         req.CaseID,
		StatusUpdate:   req.StatusUpdate,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.Message != nil {
		event.Message = &service.InboundMessage{
			Content:  req.Message.Content,
			ExpertID: req.Message.ExpertID,
		}
	}

	result, err := h.service.ApplyEvent(c.UserContext(), event)
	if err != nil {
		return err
	}
	resp := fiber.Map{"success": true}
	if result.Duplicate {
		resp["duplicate"] = true
	}
	return c.JSON(resp)
}
