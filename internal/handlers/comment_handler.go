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

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentRepository  repositories.CommentRepository
	postRepository     repositories.PostRepository // To update comment counts in posts
	userRepository     repositories.UserRepository // To fetch user details for comments
	blockRepository    repositories.BlockRepository
	reactionRepository repositories.ReactionRepository
	notifier           Notifier
	log                *logrus.Entry
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(
	commentRepo repositories.CommentRepository,
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	blockRepo repositories.BlockRepository,
	reactionRepo repositories.ReactionRepository,
	notifier Notifier,
	log *logrus.Entry,
) *CommentHandler {
	return &CommentHandler{
		commentRepository:  commentRepo,
		postRepository:     postRepo,
		userRepository:     userRepo,
		blockRepository:    blockRepo,
		reactionRepository: reactionRepo,
		notifier:           notifier,
		log:                log,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/comments", h.CreateComment)
	g.GET("/posts/:post_id/comments", h.GetCommentsByPostID)
	g.GET("/comments/:id/replies", h.GetReplies)
	g.PUT("/comments/:id", h.UpdateComment)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// withAuthors attaches author info and the viewer's reaction to comments
func (h *CommentHandler) withAuthors(viewerID uint, comments []models.Comment) ([]models.CommentWithAuthor, error) {
	out := make([]models.CommentWithAuthor, len(comments))
	if len(comments) == 0 {
		return out, nil
	}
	userIDs := make([]uint, len(comments))
	targetIDs := make([]string, len(comments))
	for i, cm := range comments {
		userIDs[i] = cm.UserID
		targetIDs[i] = idString(cm.ID)
	}
	authors, err := h.userRepository.GetUsersByIDs(userIDs)
	if err != nil {
		return nil, err
	}
	mine, err := h.reactionRepository.GetUserReactions(viewerID, models.ReactionTargetComment, targetIDs)
	if err != nil {
		return nil, err
	}
	for i, cm := range comments {
		author := models.UserCompact{ID: cm.UserID, DisplayName: "Deleted user"}
		if u, ok := authors[cm.UserID]; ok {
			author = u.ToCompact()
		}
		out[i] = models.CommentWithAuthor{Comment: cm, Author: author, MyReaction: mine[targetIDs[i]]}
	}
	return out, nil
}

// loadComment returns a comment whose post is visible to the viewer
func (h *CommentHandler) loadComment(c echo.Context, viewerID uint) (*models.Comment, *models.Post, error) {
	commentID, err := parseUintParam(c, "id")
	if err != nil {
		return nil, nil, err
	}
	comment, err := h.commentRepository.GetCommentByID(commentID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, nil, echo.NewHTTPError(http.StatusNotFound, "Comment not found")
		}
		return nil, nil, mapServiceError(err)
	}
	post, err := loadVisiblePost(c.Request().Context(), h.postRepository, h.userRepository, h.blockRepository, viewerID, comment.PostID)
	if err != nil {
		return nil, nil, err
	}
	return comment, post, nil
}

// CreateComment creates a new comment or reply on a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	ctx := c.Request().Context()
	post, err := loadVisiblePost(ctx, h.postRepository, h.userRepository, h.blockRepository, currentUserID, postID)
	if err != nil {
		return err
	}

	var parent *models.Comment
	if req.ParentID != nil {
		parent, err = h.commentRepository.GetCommentByID(*req.ParentID)
		if err != nil {
			if err == repositories.ErrNotFound {
				return echo.NewHTTPError(http.StatusNotFound, "Parent comment not found")
			}
			return mapServiceError(err)
		}
		if parent.PostID != postID || parent.ParentID != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Replies are only allowed on top-level comments of the same post")
		}
	}

	comment := &models.Comment{
		PostID:   postID,
		UserID:   currentUserID,
		ParentID: req.ParentID,
		Content:  content,
	}
	if err := h.commentRepository.CreateComment(comment); err != nil {
		return mapServiceError(err)
	}
	if err := h.postRepository.AdjustCommentsCount(ctx, postID, 1); err != nil {
		h.log.WithError(err).WithField("post_id", postID).Warn("failed to bump comments_count")
	}

	notified := []uint{currentUserID}
	if parent != nil {
		h.notify(c, services.NotifyParams{
			Type:        models.NotificationReply,
			ActorID:     currentUserID,
			RecipientID: parent.UserID,
			TargetID:    idString(parent.ID),
			TargetType:  models.ReactionTargetComment,
		})
		notified = append(notified, parent.UserID)
	}
	if parent == nil || parent.UserID != post.UserID {
		h.notify(c, services.NotifyParams{
			Type:        models.NotificationComment,
			ActorID:     currentUserID,
			RecipientID: post.UserID,
			TargetID:    postID,
			TargetType:  models.ReactionTargetPost,
		})
		notified = append(notified, post.UserID)
	}
	h.notifier.NotifyMentions(ctx, currentUserID, content, idString(comment.ID), models.ReactionTargetComment, notified...)

	out, err := h.withAuthors(currentUserID, []models.Comment{*comment})
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"comment": out[0]})
}

func (h *CommentHandler) notify(c echo.Context, p services.NotifyParams) {
	if _, err := h.notifier.Notify(c.Request().Context(), p); err != nil {
		h.log.WithError(err).WithField("type", p.Type).Warn("failed to send comment notification")
	}
}

// GetCommentsByPostID lists top-level comments of a post, newest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")
	if _, err := loadVisiblePost(c.Request().Context(), h.postRepository, h.userRepository, h.blockRepository, currentUserID, postID); err != nil {
		return err
	}

	page, limit := pagination(c, 20, 100)
	excluded, err := h.blockRepository.GetRelatedIDs(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	comments, total, err := h.commentRepository.GetCommentsByPostID(postID, excluded, (page-1)*limit, limit)
	if err != nil {
		return mapServiceError(err)
	}
	out, err := h.withAuthors(currentUserID, comments)
	if err != nil {
		return mapServiceError(err)
	}
	return successWithMeta(c, echo.Map{"comments": out}, paginationMeta(page, limit, total))
}

// GetReplies lists replies of a top-level comment, oldest first
func (h *CommentHandler) GetReplies(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	comment, _, err := h.loadComment(c, currentUserID)
	if err != nil {
		return err
	}
	excluded, err := h.blockRepository.GetRelatedIDs(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	replies, err := h.commentRepository.GetReplies(comment.ID, excluded)
	if err != nil {
		return mapServiceError(err)
	}
	out, err := h.withAuthors(currentUserID, replies)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"replies": out})
}

// UpdateComment updates the content of the caller's comment
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.UpdateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	comment, _, err := h.loadComment(c, currentUserID)
	if err != nil {
		return err
	}
	if comment.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this comment")
	}

	comment.Content = strings.TrimSpace(req.Content)
	if comment.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	if err := h.commentRepository.UpdateComment(comment); err != nil {
		return mapServiceError(err)
	}
	out, err := h.withAuthors(currentUserID, []models.Comment{*comment})
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"comment": out[0]})
}

// DeleteComment soft deletes a comment. The comment author and the post owner may delete it.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	comment, post, err := h.loadComment(c, currentUserID)
	if err != nil {
		return err
	}
	if comment.UserID != currentUserID && post.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this comment")
	}

	removed, err := h.commentRepository.DeleteComment(comment)
	if err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
		}
		return mapServiceError(err)
	}
	if err := h.postRepository.AdjustCommentsCount(c.Request().Context(), comment.PostID, -int(removed)); err != nil {
		h.log.WithError(err).WithField("post_id", comment.PostID).Warn("failed to decrement comments_count")
	}
	return c.NoContent(http.StatusNoContent)
}
