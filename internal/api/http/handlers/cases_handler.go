package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fixmypidge/case-service/internal/api/dto"
	"github.com/fixmypidge/case-service/internal/auth"
	"github.com/fixmypidge/case-service/internal/domain"
	"github.com/fixmypidge/case-service/internal/service"
	apperrors "github.com/fixmypidge/case-service/pkg/util/errorutil"
)

// CasesHandler manages citizen case endpoints.
type CasesHandler struct {
	service *service.CaseService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService) *CasesHandler {
	return &CasesHandler{service: caseService}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.CaseCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Address:     req.Address,
	}
	if req.Category != nil {
		category := domain.CaseCategory(*req.Category)
		input.Category = &category
	}

	created, err := h.service.CreateCase(c.UserContext(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromCase(created)})
}

// ListCases GET /cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	details, err := h.service.ListCases(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	items := make([]dto.CaseDetailResponse, 0, len(details))
	for i := range details {
		items = append(items, dto.FromCaseDetail(&details[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	detail, err := h.service.GetCase(c.UserContext(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromCaseDetail(detail)})
}

// SendMessage POST /cases/:id/messages.
func (h *CasesHandler) SendMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.SendMessage(c.UserContext(), principal.User.ID, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromMessage(msg)})
}

// UploadPhoto POST /cases/:id/photos (multipart).
func (h *CasesHandler) UploadPhoto(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return apperrors.NewValidationError("photo file required", nil)
	}
	var messageID *string
	if val := c.FormValue("message_id"); val != "" {
		messageID = &val
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable photo file", nil)
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	photo, err := h.service.UploadPhoto(
		c.UserContext(),
		principal.User.ID,
		c.Params("id"),
		messageID,
		file,
		fileHeader.Size,
		contentType,
		fileHeader.Filename,
	)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromPhoto(photo)})
}
