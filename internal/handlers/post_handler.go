package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository  repositories.PostRepository
	userRepository  repositories.UserRepository
	blockRepository repositories.BlockRepository
	notifier        Notifier
	enricher        *postEnricher
	log             *logrus.Entry
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	blockRepo repositories.BlockRepository,
	reactionRepo repositories.ReactionRepository,
	savedPostRepo repositories.SavedPostRepository,
	notifier Notifier,
	log *logrus.Entry,
) *PostHandler {
	return &PostHandler{
		postRepository:  postRepo,
		userRepository:  userRepo,
		blockRepository: blockRepo,
		notifier:        notifier,
		enricher:        &postEnricher{users: userRepo, reactions: reactionRepo, saved: savedPostRepo},
		log:             log,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.GET("/users/:id/posts", h.GetUserPosts)
}

func (h *PostHandler) visiblePost(c echo.Context, viewerID uint, postID string) (*models.Post, error) {
	return loadVisiblePost(c.Request().Context(), h.postRepository, h.userRepository, h.blockRepository, viewerID, postID)
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	post := &models.Post{
		UserID:    currentUserID,
		Content:   content,
		ImageURLs: req.ImageURLs,
		VideoURLs: req.VideoURLs,
		Mentions:  services.ExtractMentions(content),
	}
	ctx := c.Request().Context()
	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return mapServiceError(err)
	}
	if err := h.userRepository.AdjustPostsCount(currentUserID, 1); err != nil {
		h.log.WithError(err).WithField("user_id", currentUserID).Warn("failed to bump posts_count")
	}

	h.notifier.NotifyMentions(ctx, currentUserID, content, post.ID.Hex(), models.ReactionTargetPost)
	h.notifier.NotifyFollowersAsync(*post)

	enriched, err := h.enricher.enrichOne(currentUserID, post)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"post": enriched})
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	post, err := h.visiblePost(c, currentUserID, c.Param("id"))
	if err != nil {
		return err
	}
	enriched, err := h.enricher.enrichOne(currentUserID, post)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"post": enriched})
}

// GetUserPosts returns one author's posts, newest first
func (h *PostHandler) GetUserPosts(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	authorID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if authorID != currentUserID {
		blocked, err := h.blockRepository.IsBlockedEither(currentUserID, authorID)
		if err != nil {
			return mapServiceError(err)
		}
		if blocked {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		if _, err := h.userRepository.GetUserByID(authorID); err != nil {
			if err == repositories.ErrNotFound {
				return echo.NewHTTPError(http.StatusNotFound, "User not found")
			}
			return mapServiceError(err)
		}
	}

	page, limit := pagination(c, 10, 50)
	skip := int64((page - 1) * limit)
	posts, total, err := h.postRepository.GetPostsByUserID(c.Request().Context(), authorID, skip, int64(limit))
	if err != nil {
		return mapServiceError(err)
	}
	enriched, err := h.enricher.enrich(currentUserID, posts)
	if err != nil {
		return mapServiceError(err)
	}
	return successWithMeta(c, echo.Map{"posts": enriched}, paginationMeta(page, limit, total))
}

// UpdatePost updates a post owned by the caller
func (h *PostHandler) UpdatePost(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")

	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	existingPost, err := h.visiblePost(c, currentUserID, postID)
	if err != nil {
		return err
	}
	if existingPost.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	previousMentions := existingPost.Mentions
	if content := strings.TrimSpace(req.Content); content != "" {
		existingPost.Content = content
		existingPost.Mentions = services.ExtractMentions(content)
	}
	if req.ImageURLs != nil {
		existingPost.ImageURLs = req.ImageURLs
	}
	if req.VideoURLs != nil {
		existingPost.VideoURLs = req.VideoURLs
	}

	if err := h.postRepository.UpdatePost(ctx, postID, existingPost); err != nil {
		return mapServiceError(err)
	}

	if added := newMentions(previousMentions, existingPost.Mentions); len(added) > 0 {
		h.notifier.NotifyMentions(ctx, currentUserID, "@"+strings.Join(added, " @"), postID, models.ReactionTargetPost)
	}

	enriched, err := h.enricher.enrichOne(currentUserID, existingPost)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"post": enriched})
}

func newMentions(before, after []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, m := range before {
		seen[m] = struct{}{}
	}
	var added []string
	for _, m := range after {
		if _, ok := seen[m]; !ok {
			added = append(added, m)
		}
	}
	return added
}

// DeletePost soft deletes a post owned by the caller
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")

	existingPost, err := h.visiblePost(c, currentUserID, postID)
	if err != nil {
		return err
	}
	if existingPost.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(c.Request().Context(), postID); err != nil {
		return mapServiceError(err)
	}
	if err := h.userRepository.AdjustPostsCount(currentUserID, -1); err != nil {
		h.log.WithError(err).WithField("user_id", currentUserID).Warn("failed to decrement posts_count")
	}
	return c.NoContent(http.StatusNoContent)
}
