package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tweedhat/api/internal/middleware"
	"github.com/tweedhat/api/internal/model"
	"github.com/tweedhat/api/internal/service"
	"github.com/tweedhat/api/internal/storage"
	"github.com/tweedhat/api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
}

func NewJobHandler(svc *service.JobService, v *validator.Validate) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
	}
}

// Create handles POST /api/jobs
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.JobCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.service.Submit(c.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.JobCreateResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

// List handles GET /api/jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	jobs, err := h.service.List(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"jobs": jobs})
}

// Status handles GET /api/jobs/:jobId/status
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), middleware.GetUserID(c), jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Download handles GET /api/jobs/:jobId/download/:filename
func (h *JobHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	filename := c.Params("filename")
	if jobID == "" || filename == "" {
		return response.ValidationError(c, "Job ID and filename are required", nil)
	}

	path, err := h.service.AudioFilePath(c.Context(), middleware.GetUserID(c), jobID, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "File not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return c.Download(path)
}

// Delete handles DELETE /api/jobs/:jobId
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.service.Delete(c.Context(), middleware.GetUserID(c), jobID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
