package handlers

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/shining-stars/backend/internal/middleware"
	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/anonto42/shining-stars/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// MediaStore persists uploaded post media.
type MediaStore interface {
	Save(ctx context.Context, r io.Reader) (*storage.StoredMedia, error)
	Remove(url string) error
}

func currentClaims(c echo.Context) (*models.JwtCustomClaims, error) {
	claims := middleware.Claims(c)
	if claims == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Missing credentials")
	}
	return claims, nil
}

// resolveAuthor loads the caller's user row and returns the author reference
// stored on new posts, comments and replies.
func resolveAuthor(userRepo repositories.UserRepository, claims *models.JwtCustomClaims) (models.Author, error) {
	user, err := userRepo.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.Author{}, echo.NewHTTPError(http.StatusUnauthorized, "Authenticated user not found in database")
		}
		return models.Author{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return user.AsAuthor(), nil
}

// storeError translates repository errors into HTTP errors.
func storeError(err error) error {
	var httpErr *echo.HTTPError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &httpErr):
		return err
	case errors.Is(err, repositories.ErrInvalidID), errors.Is(err, repositories.ErrPostNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	case errors.Is(err, repositories.ErrCommentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
	case errors.Is(err, repositories.ErrReplyNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Reply not found")
	case errors.Is(err, repositories.ErrNotAuthor):
		return echo.NewHTTPError(http.StatusForbidden, "You are not the author")
	case errors.Is(err, repositories.ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, "Post was modified concurrently, please retry")
	case repositories.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// loadVisiblePost fetches a post the caller is allowed to see. Drafts of other
// users are reported as missing.
func loadVisiblePost(c echo.Context, postRepo repositories.PostRepository, userKey string) (*models.Post, error) {
	post, err := postRepo.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, storeError(err)
	}
	if !post.IsVisibleTo(userKey) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return post, nil
}

// requirePublished rejects engagement on drafts. A draft is a work in progress
// that only its author sees, so nobody can like or comment on it yet.
func requirePublished(post *models.Post) error {
	if !post.IsPublished() {
		return echo.NewHTTPError(http.StatusBadRequest, "post is not published")
	}
	return nil
}

// bindText reads a TextRequest and returns its trimmed text.
func bindText(c echo.Context) (string, error) {
	var req models.TextRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if err := c.Validate(&req); err != nil {
		return "", err
	}
	return req.Text, nil
}

func parsePage(c echo.Context) models.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return models.Page{Number: page, Limit: limit}
}

// pagedPosts writes the listing envelope shared by every feed route.
func pagedPosts(c echo.Context, posts []models.Post, total int64, page models.Page) error {
	totalPages := int(math.Ceil(float64(total) / float64(page.Limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"posts": posts,
		},
		"meta": echo.Map{
			"currentPage":     page.Number,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    page.Limit,
			"hasNextPage":     page.Number < totalPages,
			"hasPreviousPage": page.Number > 1,
		},
	})
}
