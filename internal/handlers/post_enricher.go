package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// postEnricher attaches author, reaction and saved state to posts
type postEnricher struct {
	users     repositories.UserRepository
	reactions repositories.ReactionRepository
	saved     repositories.SavedPostRepository
}

func (e *postEnricher) enrich(viewerID uint, posts []models.Post) ([]models.EnrichedPost, error) {
	if len(posts) == 0 {
		return []models.EnrichedPost{}, nil
	}
	postIDs := make([]string, len(posts))
	authorIDs := make([]uint, 0, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID.Hex()
		authorIDs = append(authorIDs, p.UserID)
	}

	authors, err := e.users.GetUsersByIDs(authorIDs)
	if err != nil {
		return nil, err
	}
	counts, err := e.reactions.GetCountsForTargets(models.ReactionTargetPost, postIDs)
	if err != nil {
		return nil, err
	}
	mine, err := e.reactions.GetUserReactions(viewerID, models.ReactionTargetPost, postIDs)
	if err != nil {
		return nil, err
	}
	savedMap, err := e.saved.GetSavedPostIDs(viewerID, postIDs)
	if err != nil {
		return nil, err
	}

	enriched := make([]models.EnrichedPost, len(posts))
	for i, p := range posts {
		pid := postIDs[i]
		author := models.UserCompact{ID: p.UserID, DisplayName: "Deleted user"}
		if u, ok := authors[p.UserID]; ok {
			author = u.ToCompact()
		}
		reactions := counts[pid]
		if reactions == nil {
			reactions = map[string]int64{}
		}
		enriched[i] = models.EnrichedPost{
			Post:       p,
			Author:     author,
			Reactions:  reactions,
			MyReaction: mine[pid],
			IsSaved:    savedMap[pid],
		}
	}
	return enriched, nil
}

func (e *postEnricher) enrichOne(viewerID uint, post *models.Post) (*models.EnrichedPost, error) {
	out, err := e.enrich(viewerID, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// loadVisiblePost loads a post the viewer may see. Deleted posts, posts of
// deleted accounts and posts of users in a block relation with the viewer are
// not found.
func loadVisiblePost(ctx context.Context, posts repositories.PostRepository, users repositories.UserRepository, blocks repositories.BlockRepository, viewerID uint, postID string) (*models.Post, error) {
	post, err := posts.GetPostByID(ctx, postID)
	if err != nil {
		if err == repositories.ErrNotFound {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return nil, mapServiceError(err)
	}
	if post.UserID != viewerID {
		blocked, err := blocks.IsBlockedEither(viewerID, post.UserID)
		if err != nil {
			return nil, mapServiceError(err)
		}
		if blocked {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		if _, err := users.GetUserByID(post.UserID); err != nil {
			if err == repositories.ErrNotFound {
				return nil, echo.NewHTTPError(http.StatusNotFound, "Post not found")
			}
			return nil, mapServiceError(err)
		}
	}
	return post, nil
}

// liveAuthors keeps the ids of accounts that still exist, in order
func liveAuthors(users repositories.UserRepository, ids []uint) ([]uint, error) {
	existing, err := users.GetUsersByIDs(ids)
	if err != nil {
		return nil, err
	}
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}
