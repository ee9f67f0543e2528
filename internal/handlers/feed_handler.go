package handlers

import (
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves the home feed and the saved posts list
type FeedHandler struct {
	postRepository      repositories.PostRepository
	userRepository      repositories.UserRepository
	followRepository    repositories.FollowRepository
	blockRepository     repositories.BlockRepository
	savedPostRepository repositories.SavedPostRepository
	enricher            *postEnricher
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	blockRepo repositories.BlockRepository,
	reactionRepo repositories.ReactionRepository,
	savedPostRepo repositories.SavedPostRepository,
) *FeedHandler {
	return &FeedHandler{
		postRepository:      postRepo,
		userRepository:      userRepo,
		followRepository:    followRepo,
		blockRepository:     blockRepo,
		savedPostRepository: savedPostRepo,
		enricher:            &postEnricher{users: userRepo, reactions: reactionRepo, saved: savedPostRepo},
	}
}

// RegisterFeedRoutes registers feed routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/saved", h.GetSavedPosts)
}

// feedAuthors returns the caller plus everyone they follow, minus block
// relations and deleted accounts
func (h *FeedHandler) feedAuthors(userID uint) ([]uint, error) {
	following, err := h.followRepository.GetFollowingIDs(userID)
	if err != nil {
		return nil, err
	}
	related, err := h.blockRepository.GetRelatedIDs(userID)
	if err != nil {
		return nil, err
	}
	blocked := make(map[uint]struct{}, len(related))
	for _, id := range related {
		blocked[id] = struct{}{}
	}
	authors := []uint{userID}
	for _, id := range following {
		if _, ok := blocked[id]; !ok && id != userID {
			authors = append(authors, id)
		}
	}
	return liveAuthors(h.userRepository, authors)
}

// GetFeed retrieves the home feed of the caller
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10, 50)

	authors, err := h.feedAuthors(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	skip := int64((page - 1) * limit)
	posts, total, err := h.postRepository.GetFeed(c.Request().Context(), authors, skip, int64(limit))
	if err != nil {
		return mapServiceError(err)
	}

	enriched, err := h.enricher.enrich(currentUserID, posts)
	if err != nil {
		return mapServiceError(err)
	}
	return successWithMeta(c, echo.Map{"posts": enriched}, paginationMeta(page, limit, total))
}

// GetSavedPosts lists the caller's saved posts, most recently saved first.
// Saved posts that were deleted or whose author is blocked or gone are skipped.
func (h *FeedHandler) GetSavedPosts(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10, 50)

	saved, total, err := h.savedPostRepository.GetSavedPostsByUser(currentUserID, (page-1)*limit, limit)
	if err != nil {
		return mapServiceError(err)
	}
	ids := make([]string, len(saved))
	for i, s := range saved {
		ids[i] = s.PostID
	}
	byID, err := h.postRepository.GetPostsByIDs(c.Request().Context(), ids)
	if err != nil {
		return mapServiceError(err)
	}
	related, err := h.blockRepository.GetRelatedIDs(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	blocked := make(map[uint]struct{}, len(related))
	for _, id := range related {
		blocked[id] = struct{}{}
	}
	authorIDs := make([]uint, 0, len(byID))
	for _, p := range byID {
		authorIDs = append(authorIDs, p.UserID)
	}
	live, err := liveAuthors(h.userRepository, authorIDs)
	if err != nil {
		return mapServiceError(err)
	}
	alive := make(map[uint]struct{}, len(live))
	for _, id := range live {
		alive[id] = struct{}{}
	}

	posts := make([]models.Post, 0, len(saved))
	for _, s := range saved {
		p, ok := byID[s.PostID]
		if !ok {
			continue
		}
		if _, isBlocked := blocked[p.UserID]; isBlocked {
			continue
		}
		if _, ok := alive[p.UserID]; !ok {
			continue
		}
		posts = append(posts, p)
	}

	enriched, err := h.enricher.enrich(currentUserID, posts)
	if err != nil {
		return mapServiceError(err)
	}
	return successWithMeta(c, echo.Map{"posts": enriched}, paginationMeta(page, limit, total))
}
