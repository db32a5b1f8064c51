package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/vidstitch/api/internal/engine"
	"github.com/vidstitch/api/internal/model"
	"github.com/vidstitch/api/internal/service"
	"github.com/vidstitch/api/pkg/response"
)

type ComposeHandler struct {
	service   *service.ComposeService
	validator *validator.Validate
}

func NewComposeHandler(svc *service.ComposeService, v *validator.Validate) *ComposeHandler {
	return &ComposeHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/compose
// @Summary      Start composition job
// @Description  Compose two previously uploaded files into one output according to the requested layout
// @Tags         Compose
// @Accept       json
// @Produce      json
// @Param        request body model.ComposeRequest true "Composition request"
// @Success      202 {object} model.ComposeStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/compose [post]
func (h *ComposeHandler) Start(c *fiber.Ctx) error {
	var req model.ComposeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartCompose(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingInput):
			return response.ValidationError(c, err.Error(), nil)
		case errors.Is(err, engine.ErrInvalidDimensions):
			return response.ValidationError(c, err.Error(), nil)
		case errors.Is(err, service.ErrInputNotFound):
			return response.NotFound(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/compose/status/:jobId
// @Summary      Get composition job status
// @Description  Get the current status and progress of a composition job
// @Tags         Compose
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ComposeStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/compose/status/{jobId} [get]
func (h *ComposeHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Download handles GET /api/compose/download/:jobId
// @Summary      Download composition result
// @Description  Download the output file of a completed composition job
// @Tags         Compose
// @Produce      video/mp4
// @Param        jobId path string true "Job ID"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/compose/download/{jobId} [get]
func (h *ComposeHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	path, err := h.service.OutputPath(jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return response.NotFound(c, "Job not found")
		case errors.Is(err, service.ErrJobNotCompleted):
			return response.ValidationError(c, "Job not completed yet", nil)
		case errors.Is(err, service.ErrJobFailed):
			return response.JobFailed(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return c.Download(path, "composition-"+jobID+".mp4")
}
