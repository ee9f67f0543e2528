package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ReactionHandler handles reactions on posts and comments
type ReactionHandler struct {
	reactionRepository repositories.ReactionRepository
	postRepository     repositories.PostRepository
	commentRepository  repositories.CommentRepository
	userRepository     repositories.UserRepository
	blockRepository    repositories.BlockRepository
	notifier           Notifier
	log                *logrus.Entry
}

// NewReactionHandler creates a new ReactionHandler
func NewReactionHandler(
	reactionRepo repositories.ReactionRepository,
	postRepo repositories.PostRepository,
	commentRepo repositories.CommentRepository,
	userRepo repositories.UserRepository,
	blockRepo repositories.BlockRepository,
	notifier Notifier,
	log *logrus.Entry,
) *ReactionHandler {
	return &ReactionHandler{
		reactionRepository: reactionRepo,
		postRepository:     postRepo,
		commentRepository:  commentRepo,
		userRepository:     userRepo,
		blockRepository:    blockRepo,
		notifier:           notifier,
		log:                log,
	}
}

// RegisterReactionRoutes registers reaction routes
func (h *ReactionHandler) RegisterReactionRoutes(g *echo.Group) {
	g.PUT("/posts/:post_id/reactions", h.ReactToPost)
	g.DELETE("/posts/:post_id/reactions", h.UnreactPost)
	g.GET("/posts/:post_id/reactions", h.GetPostReactions)
	g.PUT("/comments/:id/reactions", h.ReactToComment)
	g.DELETE("/comments/:id/reactions", h.UnreactComment)
	g.GET("/comments/:id/reactions", h.GetCommentReactions)
}

// reactionTarget is what a reaction points at
type reactionTarget struct {
	kind    string
	id      string
	ownerID uint
	adjust  func(delta int) error
}

func (h *ReactionHandler) postTarget(c echo.Context, viewerID uint) (*reactionTarget, error) {
	ctx := c.Request().Context()
	postID := c.Param("post_id")
	post, err := loadVisiblePost(ctx, h.postRepository, h.userRepository, h.blockRepository, viewerID, postID)
	if err != nil {
		return nil, err
	}
	return &reactionTarget{
		kind:    models.ReactionTargetPost,
		id:      postID,
		ownerID: post.UserID,
		adjust: func(delta int) error {
			return h.postRepository.AdjustReactionsCount(ctx, postID, delta)
		},
	}, nil
}

func (h *ReactionHandler) commentTarget(c echo.Context, viewerID uint) (*reactionTarget, error) {
	commentID, err := parseUintParam(c, "id")
	if err != nil {
		return nil, err
	}
	comment, err := h.commentRepository.GetCommentByID(commentID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Comment not found")
		}
		return nil, mapServiceError(err)
	}
	if _, err := loadVisiblePost(c.Request().Context(), h.postRepository, h.userRepository, h.blockRepository, viewerID, comment.PostID); err != nil {
		return nil, err
	}
	if comment.UserID != viewerID {
		blocked, err := h.blockRepository.IsBlockedEither(viewerID, comment.UserID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		if blocked {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Comment not found")
		}
	}
	return &reactionTarget{
		kind:    models.ReactionTargetComment,
		id:      idString(comment.ID),
		ownerID: comment.UserID,
		adjust: func(delta int) error {
			return h.commentRepository.AdjustReactionsCount(comment.ID, delta)
		},
	}, nil
}

func (h *ReactionHandler) react(c echo.Context, resolve func(echo.Context, uint) (*reactionTarget, error)) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.SetReactionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	target, err := resolve(c, currentUserID)
	if err != nil {
		return err
	}

	created, previous, err := h.reactionRepository.SetReaction(currentUserID, target.kind, target.id, req.Type)
	if err != nil {
		return mapServiceError(err)
	}
	if created {
		if err := target.adjust(1); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{"target_type": target.kind, "target_id": target.id}).Warn("failed to bump reactions_count")
		}
		if _, err := h.notifier.Notify(c.Request().Context(), services.NotifyParams{
			Type:        models.NotificationReaction,
			ActorID:     currentUserID,
			RecipientID: target.ownerID,
			TargetID:    target.id,
			TargetType:  target.kind,
		}); err != nil {
			h.log.WithError(err).Warn("failed to send reaction notification")
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return success(c, status, echo.Map{
		"type":     req.Type,
		"previous": previous,
		"created":  created,
	})
}

func (h *ReactionHandler) unreact(c echo.Context, resolve func(echo.Context, uint) (*reactionTarget, error)) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	target, err := resolve(c, currentUserID)
	if err != nil {
		return err
	}
	if _, err := h.reactionRepository.DeleteReaction(currentUserID, target.kind, target.id); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "You have not reacted to this "+target.kind)
		}
		return mapServiceError(err)
	}
	if err := target.adjust(-1); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"target_type": target.kind, "target_id": target.id}).Warn("failed to decrement reactions_count")
	}
	h.notifier.Retract(models.NotificationReaction, currentUserID, target.ownerID, target.id)
	return c.NoContent(http.StatusNoContent)
}

func (h *ReactionHandler) summary(c echo.Context, resolve func(echo.Context, uint) (*reactionTarget, error)) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	target, err := resolve(c, currentUserID)
	if err != nil {
		return err
	}
	counts, err := h.reactionRepository.GetSummary(target.kind, target.id)
	if err != nil {
		return mapServiceError(err)
	}
	summary := models.ReactionSummary{Counts: counts}
	for _, n := range counts {
		summary.Total += n
	}
	mine, err := h.reactionRepository.GetReaction(currentUserID, target.kind, target.id)
	if err == nil {
		summary.Mine = mine.Type
	} else if err != repositories.ErrNotFound {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, summary)
}

// ReactToPost sets the caller's reaction on a post
func (h *ReactionHandler) ReactToPost(c echo.Context) error { return h.react(c, h.postTarget) }

// UnreactPost removes the caller's reaction from a post
func (h *ReactionHandler) UnreactPost(c echo.Context) error { return h.unreact(c, h.postTarget) }

// GetPostReactions returns the reaction summary of a post
func (h *ReactionHandler) GetPostReactions(c echo.Context) error { return h.summary(c, h.postTarget) }

// ReactToComment sets the caller's reaction on a comment
func (h *ReactionHandler) ReactToComment(c echo.Context) error { return h.react(c, h.commentTarget) }

// UnreactComment removes the caller's reaction from a comment
func (h *ReactionHandler) UnreactComment(c echo.Context) error {
	return h.unreact(c, h.commentTarget)
}

// GetCommentReactions returns the reaction summary of a comment
func (h *ReactionHandler) GetCommentReactions(c echo.Context) error {
	return h.summary(c, h.commentTarget)
}
