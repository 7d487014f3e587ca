package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anonto42/shining-stars/backend/internal/cache"
	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/observability"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/anonto42/shining-stars/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// maxSaveAttempts bounds the optimistic retries of a post update.
const maxSaveAttempts = 3

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	media          MediaStore
	views          *cache.ViewTracker
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository, media MediaStore, views *cache.ViewTracker) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		userRepository: userRepo,
		media:          media,
		views:          views,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/view", h.ViewPost)
}

// CreatePost creates a new post from a JSON body or a multipart form with an
// optional media file.
func (h *PostHandler) CreatePost(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("create_post", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	req.ParticipantType = strings.TrimSpace(req.ParticipantType)
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.ContentURL != "" && req.MediaType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "media_type is required with content_url")
	}

	author, err := resolveAuthor(h.userRepository, claims)
	if err != nil {
		return err
	}

	post := &models.Post{
		Author:          author,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		ParticipantType: req.ParticipantType,
		Status:          req.Status,
		ContentURL:      req.ContentURL,
		MediaType:       req.MediaType,
	}
	if post.Status == "" {
		post.Status = models.StatusPublished
	}
	if post.ParticipantType == "" {
		post.ParticipantType = models.DefaultParticipantType
	}

	media, err := h.saveUpload(c)
	if err != nil {
		return err
	}
	if media != nil {
		post.ContentURL = media.URL
		post.MediaType = media.MediaType
	}

	if err := h.postRepository.CreatePost(c.Request().Context(), post); err != nil {
		h.discardMedia(c, media)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	post, err := loadVisiblePost(c, h.postRepository, claims.UserKey())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

// UpdatePost merges the request into the caller's post and writes it back,
// retrying when a concurrent engagement write moved the version.
func (h *PostHandler) UpdatePost(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("update_post", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	userKey := claims.UserKey()

	post, err := loadVisiblePost(c, h.postRepository, userKey)
	if err != nil {
		return err
	}
	if !post.IsOwnedBy(userKey) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	req.ParticipantType = strings.TrimSpace(req.ParticipantType)
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.ContentURL != "" && req.MediaType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "media_type is required with content_url")
	}

	media, err := h.saveUpload(c)
	if err != nil {
		return err
	}
	if media != nil {
		req.ContentURL = media.URL
		req.MediaType = media.MediaType
	}

	ctx := c.Request().Context()
	previousURL := post.ContentURL
	for attempt := 1; ; attempt++ {
		req.Apply(post)
		err = h.postRepository.SavePost(ctx, post)
		if !errors.Is(err, repositories.ErrVersionConflict) || attempt == maxSaveAttempts {
			break
		}

		slog.DebugContext(ctx, "post update conflicted, reloading", slog.String("post_id", post.ID.Hex()), slog.Int("attempt", attempt))
		post, err = h.postRepository.GetPostByID(ctx, post.ID.Hex())
		if err != nil {
			break
		}
		previousURL = post.ContentURL
	}
	if err != nil {
		h.discardMedia(c, media)
		return storeError(err)
	}

	if media != nil && previousURL != "" && previousURL != post.ContentURL {
		h.removeMedia(c, previousURL)
	}
	return c.JSON(http.StatusOK, post)
}

// DeletePost deletes a post together with its comments, replies and stored
// media. Admins may delete any post.
func (h *PostHandler) DeletePost(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("delete_post", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	userKey := claims.UserKey()

	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	if !post.IsVisibleTo(userKey) && !claims.IsAdmin() {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if !post.IsOwnedBy(userKey) && !claims.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(c.Request().Context(), post.ID.Hex()); err != nil {
		return storeError(err)
	}
	if post.ContentURL != "" {
		h.removeMedia(c, post.ContentURL)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ViewPost records a view. Repeated views by the same user inside the dedupe
// window, and views of drafts, are accepted without counting.
func (h *PostHandler) ViewPost(c echo.Context) (err error) {
	defer func() { observability.RecordEngagement("view_post", err) }()

	claims, err := currentClaims(c)
	if err != nil {
		return err
	}
	userKey := claims.UserKey()

	post, err := loadVisiblePost(c, h.postRepository, userKey)
	if err != nil {
		return err
	}
	if !post.IsPublished() {
		return c.NoContent(http.StatusNoContent)
	}

	ctx := c.Request().Context()
	postID := post.ID.Hex()
	if !h.views.ShouldCount(ctx, postID, userKey) {
		return c.NoContent(http.StatusNoContent)
	}

	counted, err := h.postRepository.IncrementViews(ctx, postID)
	if err != nil {
		_ = h.views.Forget(ctx, postID, userKey)
		return storeError(err)
	}
	if counted {
		observability.PostViews.Inc()
	}
	return c.NoContent(http.StatusNoContent)
}

// saveUpload stores the optional "media" file of a multipart request.
func (h *PostHandler) saveUpload(c echo.Context) (*storage.StoredMedia, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}

	fileHeader, err := c.FormFile("media")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid media upload")
	}
	if h.media == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "Media uploads are not configured")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid media upload")
	}
	defer file.Close()

	media, err := h.media.Save(c.Request().Context(), file)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedMedia) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "media must be an image or a video")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Failed to store media")
	}
	return media, nil
}

func (h *PostHandler) discardMedia(c echo.Context, media *storage.StoredMedia) {
	if media != nil {
		h.removeMedia(c, media.URL)
	}
}

func (h *PostHandler) removeMedia(c echo.Context, url string) {
	if h.media == nil {
		return
	}
	if err := h.media.Remove(url); err != nil {
		slog.WarnContext(c.Request().Context(), "failed to remove media", slog.String("url", url), slog.Any("error", err))
	}
}
