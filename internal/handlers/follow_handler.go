package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
	blockRepository  repositories.BlockRepository
	notifier         Notifier
	log              *logrus.Entry
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository, userRepo repositories.UserRepository, blockRepo repositories.BlockRepository, notifier Notifier, log *logrus.Entry) *FollowHandler {
	return &FollowHandler{
		followRepository: followRepo,
		userRepository:   userRepo,
		blockRepository:  blockRepo,
		notifier:         notifier,
		log:              log,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if currentUserID == targetID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow yourself")
	}

	if _, err := h.userRepository.GetUserByID(targetID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return mapServiceError(err)
	}
	blocked, err := h.blockRepository.IsBlockedEither(currentUserID, targetID)
	if err != nil {
		return mapServiceError(err)
	}
	if blocked {
		return echo.NewHTTPError(http.StatusForbidden, "You cannot follow this user")
	}

	follow := &models.Follow{FollowerID: currentUserID, FollowingID: targetID}
	if err := h.followRepository.CreateFollow(follow); err != nil {
		if err == repositories.ErrAlreadyExists {
			return echo.NewHTTPError(http.StatusConflict, "Already following this user")
		}
		return mapServiceError(err)
	}

	if _, err := h.notifier.Notify(c.Request().Context(), services.NotifyParams{
		Type:        models.NotificationFollow,
		ActorID:     currentUserID,
		RecipientID: targetID,
		TargetID:    idString(currentUserID),
		TargetType:  "user",
	}); err != nil {
		h.log.WithError(err).WithField("following_id", targetID).Warn("failed to send follow notification")
	}

	return success(c, http.StatusOK, echo.Map{"following": true})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.followRepository.DeleteFollow(currentUserID, targetID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "You are not following this user")
		}
		return mapServiceError(err)
	}
	h.notifier.Retract(models.NotificationFollow, currentUserID, targetID, idString(currentUserID))

	return success(c, http.StatusOK, echo.Map{"following": false})
}

// GetFollowers lists the followers of a user
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	return h.list(c, h.followRepository.GetFollowers)
}

// GetFollowing lists the users a user follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	return h.list(c, h.followRepository.GetFollowing)
}

func (h *FollowHandler) list(c echo.Context, load func(uint, []uint) ([]models.User, error)) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if userID != currentUserID {
		blocked, err := h.blockRepository.IsBlockedEither(currentUserID, userID)
		if err != nil {
			return mapServiceError(err)
		}
		if blocked {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
	}

	excluded, err := h.blockRepository.GetRelatedIDs(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	users, err := load(userID, excluded)
	if err != nil {
		return mapServiceError(err)
	}
	myFollowing, err := h.followRepository.GetFollowingIDs(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	following := make(map[uint]bool, len(myFollowing))
	for _, id := range myFollowing {
		following[id] = true
	}

	entries := make([]models.FollowListEntry, len(users))
	for i := range users {
		entries[i] = models.FollowListEntry{
			UserCompact: users[i].ToCompact(),
			IsFollowing: following[users[i].ID],
			IsMe:        users[i].ID == currentUserID,
		}
	}
	return success(c, http.StatusOK, echo.Map{"users": entries, "count": len(entries)})
}
