package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// SavedPostHandler handles bookmarking posts
type SavedPostHandler struct {
	savedPostRepository repositories.SavedPostRepository
	postRepository      repositories.PostRepository
	userRepository      repositories.UserRepository
	blockRepository     repositories.BlockRepository
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(savedPostRepo repositories.SavedPostRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository, blockRepo repositories.BlockRepository) *SavedPostHandler {
	return &SavedPostHandler{
		savedPostRepository: savedPostRepo,
		postRepository:      postRepo,
		userRepository:      userRepo,
		blockRepository:     blockRepo,
	}
}

// RegisterSavedPostRoutes registers saved post routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group) {
	g.POST("/posts/:id/save", h.SavePost)
	g.DELETE("/posts/:id/save", h.UnsavePost)
}

// SavePost bookmarks a post for the caller
func (h *SavedPostHandler) SavePost(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")

	if _, err := loadVisiblePost(c.Request().Context(), h.postRepository, h.userRepository, h.blockRepository, currentUserID, postID); err != nil {
		return err
	}

	savedPost := &models.SavedPost{UserID: currentUserID, PostID: postID}
	if err := h.savedPostRepository.SavePost(savedPost); err != nil {
		if err == repositories.ErrAlreadyExists {
			return echo.NewHTTPError(http.StatusConflict, "Post already saved")
		}
		return mapServiceError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"saved": savedPost})
}

// UnsavePost removes a bookmark
func (h *SavedPostHandler) UnsavePost(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.savedPostRepository.UnsavePost(currentUserID, c.Param("id")); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Post is not saved")
		}
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
