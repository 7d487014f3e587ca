package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FeedHandler serves paginated post listings
type FeedHandler struct {
	postRepository repositories.PostRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(postRepo repositories.PostRepository) *FeedHandler {
	return &FeedHandler{postRepository: postRepo}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/posts", h.GetFeed)
	g.GET("/posts/category/:category", h.GetCategoryFeed)
	g.GET("/posts/user/:userId", h.GetUserPosts)
}

// GetFeed returns published posts, newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	return h.list(c, models.PostFilter{Status: models.StatusPublished})
}

// GetCategoryFeed returns published posts of one category
func (h *FeedHandler) GetCategoryFeed(c echo.Context) error {
	category := strings.TrimSpace(c.Param("category"))
	if category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category is required")
	}
	return h.list(c, models.PostFilter{Status: models.StatusPublished, Category: category})
}

// GetUserPosts returns the posts of one author. Authors see their own drafts.
func (h *FeedHandler) GetUserPosts(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	filter := models.PostFilter{AuthorID: c.Param("userId")}
	if filter.AuthorID != claims.UserKey() {
		filter.Status = models.StatusPublished
	}
	return h.list(c, filter)
}

func (h *FeedHandler) list(c echo.Context, filter models.PostFilter) error {
	page := parsePage(c)

	posts, total, err := h.postRepository.ListPosts(c.Request().Context(), filter, page)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return pagedPosts(c, posts, total, page)
}
