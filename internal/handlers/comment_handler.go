package handlers

import (
	"net/http"

	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/observability"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommentHandler handles comments and their replies
type CommentHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository) *CommentHandler {
	return &CommentHandler{
		postRepository: postRepo,
		userRepository: userRepo,
	}
}

// RegisterCommentRoutes registers comment and reply routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/posts/:id/comments", h.GetComments)
	g.POST("/posts/:id/comment", h.AddComment)
	g.PUT("/posts/:id/comments/:commentId", h.EditComment)
	g.DELETE("/posts/:id/comments/:commentId", h.DeleteComment)

	g.POST("/posts/:id/comments/:commentId/reply", h.AddReply)
	g.PUT("/posts/:id/comments/:commentId/replies/:replyId", h.EditReply)
	g.DELETE("/posts/:id/comments/:commentId/replies/:replyId", h.DeleteReply)
}

// GetComments returns every comment of a post with its replies
func (h *CommentHandler) GetComments(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	post, err := loadVisiblePost(c, h.postRepository, claims.UserKey())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": post.Comments})
}

// AddComment appends a comment to a published post
func (h *CommentHandler) AddComment(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("add_comment", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	text, err := bindText(c)
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

	author, err := resolveAuthor(h.userRepository, claims)
	if err != nil {
		return err
	}

	comments, err := h.postRepository.AddComment(c.Request().Context(), post.ID.Hex(), models.NewComment(author, text))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": comments})
}

// EditComment replaces the text of the caller's own comment
func (h *CommentHandler) EditComment(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("edit_comment", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	text, err := bindText(c)
	if err != nil {
		return err
	}

	post, comment, err := h.loadComment(c, claims.UserKey())
	if err != nil {
		return err
	}
	if comment.Author.UserID != claims.UserKey() {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this comment")
	}

	updated, err := h.postRepository.UpdateCommentText(c.Request().Context(), post.ID.Hex(), comment.ID.Hex(), claims.UserKey(), text)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteComment removes a comment and its replies. Admins may delete any
// comment.
func (h *CommentHandler) DeleteComment(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("delete_comment", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	post, comment, err := h.loadComment(c, claims.UserKey())
	if err != nil {
		return err
	}
	if comment.Author.UserID != claims.UserKey() && !claims.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this comment")
	}

	if err := h.postRepository.RemoveComment(c.Request().Context(), post.ID.Hex(), comment.ID.Hex()); err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// AddReply appends a reply to a comment of a published post
func (h *CommentHandler) AddReply(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("add_reply", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	text, err := bindText(c)
	if err != nil {
		return err
	}

	post, comment, err := h.loadComment(c, claims.UserKey())
	if err != nil {
		return err
	}
	if err := requirePublished(post); err != nil {
		return err
	}

	author, err := resolveAuthor(h.userRepository, claims)
	if err != nil {
		return err
	}

	replies, err := h.postRepository.AddReply(c.Request().Context(), post.ID.Hex(), comment.ID.Hex(), models.NewReply(author, text))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"replies": replies})
}

// EditReply replaces the text of the caller's own reply
func (h *CommentHandler) EditReply(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("edit_reply", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	text, err := bindText(c)
	if err != nil {
		return err
	}

	post, comment, reply, err := h.loadReply(c, claims.UserKey())
	if err != nil {
		return err
	}
	if reply.Author.UserID != claims.UserKey() {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this reply")
	}

	updated, err := h.postRepository.UpdateReplyText(c.Request().Context(), post.ID.Hex(), comment.ID.Hex(), reply.ID.Hex(), claims.UserKey(), text)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteReply removes a reply. Admins may delete any reply.
func (h *CommentHandler) DeleteReply(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("delete_reply", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	post, comment, reply, err := h.loadReply(c, claims.UserKey())
	if err != nil {
		return err
	}
	if reply.Author.UserID != claims.UserKey() && !claims.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this reply")
	}

	if err := h.postRepository.RemoveReply(c.Request().Context(), post.ID.Hex(), comment.ID.Hex(), reply.ID.Hex()); err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *CommentHandler) loadComment(c echo.Context, userKey string) (*models.Post, *models.Comment, error) {
	post, err := loadVisiblePost(c, h.postRepository, userKey)
	if err != nil {
		return nil, nil, err
	}
	comment, err := findComment(post, c.Param("commentId"))
	if err != nil {
		return nil, nil, err
	}
	return post, comment, nil
}

func (h *CommentHandler) loadReply(c echo.Context, userKey string) (*models.Post, *models.Comment, *models.Reply, error) {
	post, comment, err := h.loadComment(c, userKey)
	if err != nil {
		return nil, nil, nil, err
	}
	reply, err := findReply(comment, c.Param("replyId"))
	if err != nil {
		return nil, nil, nil, err
	}
	return post, comment, reply, nil
}

func findComment(post *models.Post, id string) (*models.Comment, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storeError(repositories.ErrCommentNotFound)
	}
	comment := post.FindComment(objID)
	if comment == nil {
		return nil, storeError(repositories.ErrCommentNotFound)
	}
	return comment, nil
}

func findReply(comment *models.Comment, id string) (*models.Reply, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, storeError(repositories.ErrReplyNotFound)
	}
	reply := comment.FindReply(objID)
	if reply == nil {
		return nil, storeError(repositories.ErrReplyNotFound)
	}
	return reply, nil
}
