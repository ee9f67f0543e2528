package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// BlockHandler handles blocking and unblocking users
type BlockHandler struct {
	blockRepository repositories.BlockRepository
	userRepository  repositories.UserRepository
}

// NewBlockHandler creates a new BlockHandler
func NewBlockHandler(blockRepo repositories.BlockRepository, userRepo repositories.UserRepository) *BlockHandler {
	return &BlockHandler{blockRepository: blockRepo, userRepository: userRepo}
}

// RegisterBlockRoutes registers block routes
func (h *BlockHandler) RegisterBlockRoutes(g *echo.Group) {
	g.POST("/users/:id/block", h.BlockUser)
	g.DELETE("/users/:id/block", h.UnblockUser)
	g.GET("/blocks", h.GetBlockedUsers)
}

// BlockUser blocks a user and removes follows in both directions
func (h *BlockHandler) BlockUser(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if currentUserID == targetID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot block yourself")
	}
	if _, err := h.userRepository.GetUserByID(targetID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return mapServiceError(err)
	}

	if err := h.blockRepository.BlockUser(currentUserID, targetID); err != nil {
		if err == repositories.ErrAlreadyExists {
			return echo.NewHTTPError(http.StatusConflict, "User already blocked")
		}
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"blocked": true})
}

// UnblockUser removes a block
func (h *BlockHandler) UnblockUser(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.blockRepository.UnblockUser(currentUserID, targetID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User is not blocked")
		}
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"blocked": false})
}

// GetBlockedUsers lists users blocked by the caller
func (h *BlockHandler) GetBlockedUsers(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.blockRepository.GetBlockedUsers(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	out := make([]models.UserCompact, len(users))
	for i := range users {
		out[i] = users[i].ToCompact()
	}
	return success(c, http.StatusOK, echo.Map{"users": out})
}
