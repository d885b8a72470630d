package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tweedhat/api/internal/middleware"
	"github.com/tweedhat/api/internal/service"
	"github.com/tweedhat/api/pkg/response"
)

type VoiceHandler struct {
	service *service.VoiceService
}

func NewVoiceHandler(svc *service.VoiceService) *VoiceHandler {
	return &VoiceHandler{service: svc}
}

// List handles GET /api/voices
func (h *VoiceHandler) List(c *fiber.Ctx) error {
	result, err := h.service.List(c.Context(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrSpeechKeyMissing) {
			return response.ValidationError(c, "Set your ElevenLabs API key first", nil)
		}
		return response.UpstreamError(c, err.Error())
	}
	return response.OK(c, result)
}
