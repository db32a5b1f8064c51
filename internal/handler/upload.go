package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/vidstitch/api/internal/service"
	"github.com/vidstitch/api/pkg/response"
)

type UploadHandler struct {
	service  *service.UploadService
	maxBytes int64
}

func NewUploadHandler(svc *service.UploadService, maxUploadMB int) *UploadHandler {
	return &UploadHandler{
		service:  svc,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// File handles POST /api/upload
// @Summary      Upload media file
// @Description  Upload a media file to use as a composition input
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Media file (MP4, MOV, WebM, MKV, AVI)"
// @Success      201 {object} model.UploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload [post]
func (h *UploadHandler) File(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > h.maxBytes {
		return response.ValidationError(c, "File size exceeds limit", map[string]interface{}{
			"maxSize":  h.maxBytes,
			"fileSize": file.Size,
		})
	}

	// Declared type check only; the engine is the real arbiter of what decodes.
	contentType := file.Header.Get("Content-Type")
	validTypes := map[string]bool{
		"video/mp4":                true,
		"video/quicktime":          true,
		"video/webm":               true,
		"video/x-matroska":         true,
		"video/x-msvideo":          true,
		"video/mpeg":               true,
		"application/octet-stream": true,
	}

	if !validTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: MP4, MOV, WebM, MKV, AVI", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.SaveUpload(c.Context(), file.Filename, f)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Delete handles DELETE /api/upload/:fileId
// @Summary      Delete uploaded file
// @Description  Delete a previously uploaded media file
// @Tags         Upload
// @Produce      json
// @Param        fileId path string true "File ID"
// @Success      204 "No Content"
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/{fileId} [delete]
func (h *UploadHandler) Delete(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	if fileID == "" {
		return response.ValidationError(c, "File ID is required", nil)
	}

	if err := h.service.DeleteUpload(c.Context(), fileID); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}
