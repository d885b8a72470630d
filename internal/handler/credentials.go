package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tweedhat/api/internal/middleware"
	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/service"
	"github.com/tweedhat/api/pkg/response"
)

type CredentialHandler struct {
	service   *service.CredentialService
	validator *validator.Validate
}

func NewCredentialHandler(svc *service.CredentialService, v *validator.Validate) *CredentialHandler {
	return &CredentialHandler{
		service:   svc,
		validator: v,
	}
}

// Update handles PUT /api/credentials
func (h *CredentialHandler) Update(c *fiber.Ctx) error {
	var req model.CredentialUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.service.Update(c.Context(), middleware.GetUserID(c), req.Credentials); err != nil {
		if errors.Is(err, service.ErrNoRecognizedKeys) {
			return response.ValidationError(c, "At least one recognized credential key is required", nil)
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.NoContent(c)
}

// Status handles GET /api/credentials
func (h *CredentialHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.Status(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}
