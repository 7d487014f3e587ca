package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/shining-stars/backend/internal/cache"
	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("media", "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestCreatePost_Defaults(t *testing.T) {
	env := newTestEnv(t, nil)

	post := env.createPost(t, alice, "")

	assert.False(t, post.ID.IsZero())
	assert.Equal(t, models.StatusPublished, post.Status)
	assert.Equal(t, models.DefaultParticipantType, post.ParticipantType)
	assert.Equal(t, models.Author{UserID: "1", Name: "Alice", Department: "Design"}, post.Author)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Comments)
	assert.Equal(t, int64(1), post.Version)
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body echo.Map
	}{
		{"missing title", echo.Map{"description": "d", "category": "c"}},
		{"blank category", echo.Map{"title": "t", "description": "d", "category": "   "}},
		{"bad status", echo.Map{"title": "t", "description": "d", "category": "c", "status": "archived"}},
		{"url without media type", echo.Map{"title": "t", "description": "d", "category": "c", "content_url": "https://cdn.example.com/a.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, alice, http.MethodPost, "/api/posts", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreatePost_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, nil, http.MethodPost, "/api/posts", echo.Map{"title": "t"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreatePost_MultipartMedia(t *testing.T) {
	env := newTestEnv(t, nil)

	fields := map[string]string{"title": "Sunrise", "description": "From the roof", "category": "Photography"}
	rec := env.send(t, alice, multipartRequest(t, http.MethodPost, "/api/posts", fields, pngBytes))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	post := decode[models.Post](t, rec)
	assert.Equal(t, models.MediaImage, post.MediaType)
	require.True(t, strings.HasPrefix(post.ContentURL, storage.PublicPrefix))
	_, err := os.Stat(filepath.Join(env.media.Dir(), strings.TrimPrefix(post.ContentURL, storage.PublicPrefix)))
	assert.NoError(t, err)

	rec = env.send(t, alice, multipartRequest(t, http.MethodPost, "/api/posts", fields, []byte("plain text notes")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDraftVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	draft := env.createPost(t, alice, models.StatusDraft)
	path := "/api/posts/" + draft.ID.Hex()

	assert.Equal(t, http.StatusOK, env.do(t, alice, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, bob, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, bob, http.MethodPost, path+"/like", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, bob, http.MethodPost, path+"/comment", echo.Map{"text": "hi"}).Code)

	// The author may see the draft but not engage with it.
	rec := env.do(t, alice, http.MethodPost, path+"/like", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "post is not published")
	assert.Equal(t, http.StatusBadRequest, env.do(t, alice, http.MethodPost, path+"/comment", echo.Map{"text": "hi"}).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, alice, http.MethodPost, path+"/view", nil).Code)
	stored, err := env.posts.GetPostByID(context.Background(), draft.ID.Hex())
	require.NoError(t, err)
	assert.Zero(t, stored.Views)
	assert.Empty(t, stored.Likes)

	feed := decode[feedBody](t, env.do(t, bob, http.MethodGet, "/api/posts", nil))
	assert.Empty(t, feed.Data.Posts)

	own := decode[feedBody](t, env.do(t, alice, http.MethodGet, "/api/posts/user/1", nil))
	assert.Len(t, own.Data.Posts, 1)
	others := decode[feedBody](t, env.do(t, bob, http.MethodGet, "/api/posts/user/1", nil))
	assert.Empty(t, others.Data.Posts)
}

func TestGetPost_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusNotFound, env.do(t, alice, http.MethodGet, "/api/posts/not-an-id", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, alice, http.MethodGet, "/api/posts/"+primitive.NewObjectID().Hex(), nil).Code)
}

func TestUpdatePost(t *testing.T) {
	env := newTestEnv(t, nil)
	post := env.createPost(t, alice, models.StatusDraft)
	path := "/api/posts/" + post.ID.Hex()

	rec := env.do(t, bob, http.MethodPut, path, echo.Map{"title": "Hijacked"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, alice, http.MethodPut, path, echo.Map{"title": "  Offsite recap ", "status": "published"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Post](t, rec)
	assert.Equal(t, "Offsite recap", updated.Title)
	assert.Equal(t, "Photos from the offsite", updated.Description)
	assert.Equal(t, models.StatusPublished, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	rec = env.do(t, bob, http.MethodPut, path, echo.Map{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdatePost_RetriesOnConcurrentEngagement(t *testing.T) {
	env := newTestEnv(t, nil)
	post := env.createPost(t, alice, "")
	path := "/api/posts/" + post.ID.Hex()

	env.posts.interleavedWrites = 1
	rec := env.do(t, alice, http.MethodPut, path, echo.Map{"category": "Culture"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Culture", stored.Category)
	assert.Equal(t, []string{"99"}, stored.Likes, "the concurrent like must survive the update")
}

func TestUpdatePost_PersistentConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	post := env.createPost(t, alice, "")

	env.posts.interleavedWrites = maxSaveAttempts
	rec := env.do(t, alice, http.MethodPut, "/api/posts/"+post.ID.Hex(), echo.Map{"category": "Culture"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	stored, err := env.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Events", stored.Category)
}

func TestUpdatePost_ReplacesMedia(t *testing.T) {
	env := newTestEnv(t, nil)

	fields := map[string]string{"title": "Sunrise", "description": "From the roof", "category": "Photography"}
	rec := env.send(t, alice, multipartRequest(t, http.MethodPost, "/api/posts", fields, pngBytes))
	require.Equal(t, http.StatusCreated, rec.Code)
	post := decode[models.Post](t, rec)

	rec = env.send(t, alice, multipartRequest(t, http.MethodPut, "/api/posts/"+post.ID.Hex(), map[string]string{}, pngBytes))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Post](t, rec)

	assert.NotEqual(t, post.ContentURL, updated.ContentURL)
	_, err := os.Stat(filepath.Join(env.media.Dir(), strings.TrimPrefix(post.ContentURL, storage.PublicPrefix)))
	assert.True(t, os.IsNotExist(err), "replaced media should be removed")
}

func TestDeletePost_Cascades(t *testing.T) {
	env := newTestEnv(t, nil)
	post := env.createPost(t, alice, "")
	path := "/api/posts/" + post.ID.Hex()

	comments := decode[commentsBody](t, env.do(t, bob, http.MethodPost, path+"/comment", echo.Map{"text": "Nice"}))
	require.Len(t, comments.Comments, 1)
	replies := env.do(t, alice, http.MethodPost, path+"/comments/"+comments.Comments[0].ID.Hex()+"/reply", echo.Map{"text": "Thanks"})
	require.Equal(t, http.StatusOK, replies.Code)

	assert.Equal(t, http.StatusForbidden, env.do(t, bob, http.MethodDelete, path, nil).Code)

	rec := env.do(t, alice, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, alice, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, alice, http.MethodGet, path+"/comments", nil).Code)
}

func TestDeletePost_Admin(t *testing.T) {
	env := newTestEnv(t, nil)
	draft := env.createPost(t, alice, models.StatusDraft)

	rec := env.do(t, admin, http.MethodDelete, "/api/posts/"+draft.ID.Hex(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestViewPost_Dedupe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := newTestEnv(t, cache.NewViewTracker(client, 30*time.Minute))
	post := env.createPost(t, alice, "")
	path := "/api/posts/" + post.ID.Hex() + "/view"

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, env.do(t, bob, http.MethodPost, path, nil).Code)
	}
	assert.Equal(t, http.StatusNoContent, env.do(t, alice, http.MethodPost, path, nil).Code)

	stored, err := env.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Views)

	mr.FastForward(31 * time.Minute)
	assert.Equal(t, http.StatusNoContent, env.do(t, bob, http.MethodPost, path, nil).Code)
	stored, err = env.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.Views)
}

func TestViewPost_WithoutRedisCountsEveryView(t *testing.T) {
	env := newTestEnv(t, nil)
	post := env.createPost(t, alice, "")
	path := "/api/posts/" + post.ID.Hex() + "/view"

	env.do(t, bob, http.MethodPost, path, nil)
	env.do(t, bob, http.MethodPost, path, nil)

	stored, err := env.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Views)
}
