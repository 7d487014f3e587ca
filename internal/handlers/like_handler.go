package handlers

import (
	"net/http"

	"github.com/anonto42/shining-stars/backend/internal/observability"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles like and unlike requests on posts, comments and replies.
// Liking twice or unliking without a like are successful no-ops.
type LikeHandler struct {
	postRepository repositories.PostRepository
	comments       *CommentHandler
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(postRepo repositories.PostRepository) *LikeHandler {
	return &LikeHandler{
		postRepository: postRepo,
		comments:       &CommentHandler{postRepository: postRepo},
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/like", h.LikePost)
	g.POST("/posts/:id/unlike", h.UnlikePost)
	g.POST("/posts/:id/comments/:commentId/like", h.LikeComment)
	g.POST("/posts/:id/comments/:commentId/unlike", h.UnlikeComment)
	g.POST("/posts/:id/comments/:commentId/replies/:replyId/like", h.LikeReply)
	g.POST("/posts/:id/comments/:commentId/replies/:replyId/unlike", h.UnlikeReply)
}

func (h *LikeHandler) LikePost(c echo.Context) error {
	return h.setPostLike(c, true)
}

func (h *LikeHandler) UnlikePost(c echo.Context) error {
	return h.setPostLike(c, false)
}

func (h *LikeHandler) LikeComment(c echo.Context) error {
	return h.setCommentLike(c, true)
}

func (h *LikeHandler) UnlikeComment(c echo.Context) error {
	return h.setCommentLike(c, false)
}

func (h *LikeHandler) LikeReply(c echo.Context) error {
	return h.setReplyLike(c, true)
}

func (h *LikeHandler) UnlikeReply(c echo.Context) error {
	return h.setReplyLike(c, false)
}

func (h *LikeHandler) setPostLike(c echo.Context, liked bool) (err error) {
	defer func() { observability.RecordEngagement(likeOperation("post", liked), err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	post, err := loadVisiblePost(c, h.postRepository, claims.UserKey())
	if err != nil {
		return err
	}
	if err := requirePublished(post); err != nil {
		return err
	}

	likes, err := h.postRepository.SetPostLike(c.Request().Context(), post.ID.Hex(), claims.UserKey(), liked)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"likes": likes})
}

func (h *LikeHandler) setCommentLike(c echo.Context, liked bool) (err error) {
	defer func() { observability.RecordEngagement(likeOperation("comment", liked), err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	post, comment, err := h.comments.loadComment(c, claims.UserKey())
	if err != nil {
		return err
	}
	if err := requirePublished(post); err != nil {
		return err
	}

	likes, err := h.postRepository.SetCommentLike(c.Request().Context(), post.ID.Hex(), comment.ID.Hex(), claims.UserKey(), liked)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"likes": likes})
}

func (h *LikeHandler) setReplyLike(c echo.Context, liked bool) (err error) {
	defer func() { observability.RecordEngagement(likeOperation("reply", liked), err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	post, comment, reply, err := h.comments.loadReply(c, claims.UserKey())
	if err != nil {
		return err
	}
	if err := requirePublished(post); err != nil {
		return err
	}

	likes, err := h.postRepository.SetReplyLike(c.Request().Context(), post.ID.Hex(), comment.ID.Hex(), reply.ID.Hex(), claims.UserKey(), liked)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"likes": likes})
}

func likeOperation(target string, liked bool) string {
	if liked {
		return "like_" + target
	}
	return "unlike_" + target
}
