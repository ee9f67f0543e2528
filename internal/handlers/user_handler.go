package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	blockRepository  repositories.BlockRepository
	presence         services.PresenceReader
}

// NewUserHandler creates a new UserHandler. presence may be nil.
func NewUserHandler(userRepo repositories.UserRepository, followRepo repositories.FollowRepository, blockRepo repositories.BlockRepository, presence services.PresenceReader) *UserHandler {
	return &UserHandler{
		userRepository:   userRepo,
		followRepository: followRepo,
		blockRepository:  blockRepo,
		presence:         presence,
	}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.DELETE("/profile", h.DeleteUser)
	g.PUT("/profile/device", h.SetDeviceToken)
	g.DELETE("/profile/device", h.ClearDeviceToken)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/presence", h.GetPresence)
}

func (h *UserHandler) isOnline(c echo.Context, u *models.User) bool {
	if h.presence == nil {
		return u.IsOnline
	}
	return h.presence.Online(c.Request().Context(), []uint{u.ID})[u.ID]
}

// GetUser returns another user's profile. Users in a block relation with
// the caller are reported as not found.
func (h *UserHandler) GetUser(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if id != currentUserID {
		blocked, err := h.blockRepository.IsBlockedEither(currentUserID, id)
		if err != nil {
			return mapServiceError(err)
		}
		if blocked {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
	}
	user, err := h.userRepository.GetUserByID(id)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return mapServiceError(err)
	}
	user.IsOnline = h.isOnline(c, user)

	profile := models.UserProfile{User: *user}
	if id != currentUserID {
		if profile.IsFollowing, err = h.followRepository.IsFollowing(currentUserID, id); err != nil {
			return mapServiceError(err)
		}
		if profile.FollowsYou, err = h.followRepository.IsFollowing(id, currentUserID); err != nil {
			return mapServiceError(err)
		}
	}
	return success(c, http.StatusOK, echo.Map{"user": profile})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"user": user})
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	fields := map[string]interface{}{}
	if req.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		fields["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.AvatarURL != nil {
		fields["avatar_url"] = *req.AvatarURL
	}
	if len(fields) > 0 {
		if err := h.userRepository.UpdateFields(currentUserID, fields); err != nil {
			return mapServiceError(err)
		}
	}

	user, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"user": user})
}

// DeleteUser soft deletes the authenticated user's account
func (h *UserHandler) DeleteUser(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.userRepository.DeleteUser(currentUserID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SearchUsers matches username, display name and email. The caller and
// users in a block relation with the caller are excluded.
func (h *UserHandler) SearchUsers(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 50 {
		limit = 20
	}

	excluded, err := h.blockRepository.GetRelatedIDs(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	excluded = append(excluded, currentUserID)

	users, err := h.userRepository.SearchUsers(query, excluded, limit)
	if err != nil {
		return mapServiceError(err)
	}
	results := make([]models.UserCompact, 0, len(users))
	for i := range users {
		results = append(results, users[i].ToCompact())
	}
	return success(c, http.StatusOK, echo.Map{"users": results})
}

// SetDeviceToken stores the caller's FCM registration token
func (h *UserHandler) SetDeviceToken(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.DeviceTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.userRepository.UpdateFields(currentUserID, map[string]interface{}{"device_token": req.Token}); err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"message": "Device token saved"})
}

func (h *UserHandler) ClearDeviceToken(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.userRepository.UpdateFields(currentUserID, map[string]interface{}{"device_token": ""}); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetPresence reports whether a user is online and when they were last seen
func (h *UserHandler) GetPresence(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	blocked, err := h.blockRepository.IsBlockedEither(currentUserID, id)
	if err != nil {
		return mapServiceError(err)
	}
	if blocked {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	user, err := h.userRepository.GetUserByID(id)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{
		"user_id":      user.ID,
		"is_online":    h.isOnline(c, user),
		"last_seen_at": user.LastSeenAt,
	})
}
