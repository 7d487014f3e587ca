package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/shining-stars/backend/internal/middleware"
	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

var postStatsHeader = []string{
	"id", "title", "author", "department", "category", "participant type",
	"status", "likes", "comments", "views", "created at",
}

// StatsHandler serves per-author statistics and the admin export
type StatsHandler struct {
	postRepository repositories.PostRepository
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(postRepo repositories.PostRepository) *StatsHandler {
	return &StatsHandler{postRepository: postRepo}
}

// RegisterStatsRoutes registers statistics routes
func (h *StatsHandler) RegisterStatsRoutes(g *echo.Group) {
	g.GET("/stats/me", h.GetMyStats)
	g.GET("/stats/posts", h.ExportPostStats, middleware.AdminOnly())
}

// GetMyStats returns submission and engagement totals for the caller
func (h *StatsHandler) GetMyStats(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return err
	}

	stats, err := h.postRepository.AuthorStats(c.Request().Context(), claims.UserKey())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

// ExportPostStats streams one CSV row per post
func (h *StatsHandler) ExportPostStats(c echo.Context) error {
	posts, _, err := h.postRepository.ListPosts(c.Request().Context(), models.PostFilter{}, models.Page{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="posts_stats.csv"`)
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write(postStatsHeader); err != nil {
		return err
	}
	for _, p := range posts {
		if err := w.Write(postStatsRow(p)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func postStatsRow(p models.Post) []string {
	return []string{
		p.ID.Hex(),
		p.Title,
		p.Author.Name,
		p.Author.Department,
		p.Category,
		p.ParticipantType,
		p.Status,
		strconv.Itoa(len(p.Likes)),
		strconv.Itoa(len(p.Comments)),
		strconv.FormatInt(p.Views, 10),
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
