package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// MediaUploader stores uploaded files. *storage.MediaStore satisfies it.
type MediaUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, string, error)
}

// MediaHandler accepts multipart uploads for posts and chat messages
type MediaHandler struct {
	uploader MediaUploader
}

// NewMediaHandler creates a MediaHandler. uploader may be nil when object storage is not configured.
func NewMediaHandler(uploader MediaUploader) *MediaHandler {
	return &MediaHandler{uploader: uploader}
}

// RegisterMediaRoutes registers media routes
func (h *MediaHandler) RegisterMediaRoutes(g *echo.Group) {
	g.POST("/media", h.Upload)
}

// Upload stores the multipart "file" field and returns its public URL
func (h *MediaHandler) Upload(c echo.Context) error {
	if _, err := currentUser(c); err != nil {
		return err
	}
	if h.uploader == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Media storage is not configured")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Unable to read file")
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	object, url, err := h.uploader.Upload(c.Request().Context(), file.Filename, src, file.Size, contentType)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Upload failed").SetInternal(err)
	}
	return success(c, http.StatusCreated, echo.Map{"url": url, "object": object})
}
