package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anonto42/shining-stars/backend/internal/cache"
	"github.com/anonto42/shining-stars/backend/internal/middleware"
	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/anonto42/shining-stars/backend/internal/storage"
	"github.com/anonto42/shining-stars/backend/internal/validators"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

var (
	alice = &models.User{ID: 1, Name: "Alice", Email: "alice@example.com", Department: "Design", Role: models.RoleEmployee}
	bob   = &models.User{ID: 2, Name: "Bob", Email: "bob@example.com", Department: "Finance", Role: models.RoleEmployee}
	admin = &models.User{ID: 3, Name: "Ada", Email: "ada@example.com", Department: "HR", Role: models.RoleAdmin}
	cara  = &models.User{ID: 9, Name: "Cara", Email: "cara@example.com", Department: "Ops", Role: models.RoleEmployee}
)

type testEnv struct {
	e     *echo.Echo
	posts *fakePostStore
	users *mockUserRepository
	media *storage.LocalMediaStore
}

func newTestEnv(t *testing.T, views *cache.ViewTracker) *testEnv {
	t.Helper()

	posts := newFakePostStore()
	users := new(mockUserRepository)
	for _, u := range []*models.User{alice, bob, admin, cara} {
		stored := *u
		users.On("GetUserByID", u.ID).Return(&stored, nil).Maybe()
	}
	users.On("GetUserByID", mock.Anything).Return(nil, repositories.ErrUserNotFound).Maybe()

	media, err := storage.NewLocalMediaStore(t.TempDir())
	require.NoError(t, err)
	if views == nil {
		views = cache.NewViewTracker(nil, 0)
	}

	e := echo.New()
	e.Validator = validators.NewValidator()
	api := e.Group("/api", middleware.JWTAuthMiddleware(testSecret))
	NewFeedHandler(posts).RegisterFeedRoutes(api)
	NewPostHandler(posts, users, media, views).RegisterPostRoutes(api)
	NewCommentHandler(posts, users).RegisterCommentRoutes(api)
	NewLikeHandler(posts).RegisterLikeRoutes(api)
	NewStatsHandler(posts).RegisterStatsRoutes(api)
	NewUserHandler(users).RegisterProfileRoutes(api)

	return &testEnv{e: e, posts: posts, users: users, media: media}
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(t *testing.T, as *models.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return env.send(t, as, req)
}

func (env *testEnv) send(t *testing.T, as *models.User, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, as))
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// createPost stores a post through the API and returns it.
func (env *testEnv) createPost(t *testing.T, as *models.User, status string) models.Post {
	t.Helper()
	rec := env.do(t, as, http.MethodPost, "/api/posts", echo.Map{
		"title":       "Team offsite",
		"description": "Photos from the offsite",
		"category":    "Events",
		"status":      status,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Post](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type likesBody struct {
	Likes []string `json:"likes"`
}

type commentsBody struct {
	Comments []models.Comment `json:"comments"`
}

type repliesBody struct {
	Replies []models.Reply `json:"replies"`
}

type feedBody struct {
	Success bool `json:"success"`
	Data    struct {
		Posts []models.Post `json:"posts"`
	} `json:"data"`
	Meta struct {
		CurrentPage     int   `json:"currentPage"`
		TotalPages      int   `json:"totalPages"`
		TotalItems      int64 `json:"totalItems"`
		ItemsPerPage    int   `json:"itemsPerPage"`
		HasNextPage     bool  `json:"hasNextPage"`
		HasPreviousPage bool  `json:"hasPreviousPage"`
	} `json:"meta"`
}
