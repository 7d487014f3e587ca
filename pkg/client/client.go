// Package client is a Go client for the posts API. It keeps a PostCache of
// the posts it has loaded and folds every successful mutation response back
// into it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// FeedPage is one page of a post listing.
type FeedPage struct {
	Posts           []models.Post `json:"posts"`
	CurrentPage     int           `json:"currentPage"`
	TotalPages      int           `json:"totalPages"`
	TotalItems      int64         `json:"totalItems"`
	ItemsPerPage    int           `json:"itemsPerPage"`
	HasNextPage     bool          `json:"hasNextPage"`
	HasPreviousPage bool          `json:"hasPreviousPage"`
}

// Client talks to the API on behalf of a single user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *PostCache

	mu      sync.RWMutex
	token   string
	userKey string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken starts the client with an existing bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.setToken(token) }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		cache:      NewPostCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the client's post cache.
func (c *Client) Cache() *PostCache {
	return c.cache
}

// UserKey returns the author reference of the signed-in user.
func (c *Client) UserKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userKey
}

// SignIn exchanges credentials for a token and keeps it for later calls.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := models.SignInRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", body, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return errors.New("signin response carried no token")
	}
	c.setToken(out.Token)
	return nil
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.userKey = ""

	// The server verifies the signature; the client only needs the subject.
	claims := &models.JwtCustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		c.userKey = claims.UserKey()
	}
}

// GetPost fetches a post and caches it.
func (c *Client) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodGet, postPath(postID), nil, &post); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			c.cache.Delete(postID)
		}
		return nil, err
	}
	c.cache.Put(&post)
	return &post, nil
}

// Feed fetches a page of the published feed and caches every post on it.
func (c *Client) Feed(ctx context.Context, page, limit int) (*FeedPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/posts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Data struct {
			Posts []models.Post `json:"posts"`
		} `json:"data"`
		Meta FeedPage `json:"meta"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	result := out.Meta
	result.Posts = out.Data.Posts
	for i := range result.Posts {
		c.cache.Put(&result.Posts[i])
	}
	return &result, nil
}

// LikePost likes a post and returns its like set.
func (c *Client) LikePost(ctx context.Context, postID string) ([]string, error) {
	return c.setPostLike(ctx, postID, "like")
}

// UnlikePost removes the caller's like from a post.
func (c *Client) UnlikePost(ctx context.Context, postID string) ([]string, error) {
	return c.setPostLike(ctx, postID, "unlike")
}

// ToggleLike flips the caller's like on a post based on the cached like
// state, loading the post first when it is not cached.
func (c *Client) ToggleLike(ctx context.Context, postID string) ([]string, error) {
	liked, cached := c.cache.HasLiked(postID, c.UserKey())
	if !cached {
		post, err := c.GetPost(ctx, postID)
		if err != nil {
			return nil, err
		}
		liked = containsString(post.Likes, c.UserKey())
	}
	if liked {
		return c.UnlikePost(ctx, postID)
	}
	return c.LikePost(ctx, postID)
}

func (c *Client) setPostLike(ctx context.Context, postID, action string) ([]string, error) {
	var out struct {
		Likes []string `json:"likes"`
	}
	if err := c.do(ctx, http.MethodPost, postPath(postID)+"/"+action, nil, &out); err != nil {
		return nil, err
	}
	c.cache.SetPostLikes(postID, out.Likes)
	return out.Likes, nil
}

// AddComment comments on a post and returns the post's comments.
func (c *Client) AddComment(ctx context.Context, postID, text string) ([]models.Comment, error) {
	var out struct {
		Comments []models.Comment `json:"comments"`
	}
	body := models.TextRequest{Text: text}
	if err := c.do(ctx, http.MethodPost, postPath(postID)+"/comment", body, &out); err != nil {
		return nil, err
	}
	c.cache.SetComments(postID, out.Comments)
	return out.Comments, nil
}

// EditComment changes the text of the caller's comment.
func (c *Client) EditComment(ctx context.Context, postID, commentID, text string) (*models.Comment, error) {
	var comment models.Comment
	body := models.TextRequest{Text: text}
	if err := c.do(ctx, http.MethodPut, commentPath(postID, commentID), body, &comment); err != nil {
		return nil, err
	}
	c.cache.ReplaceComment(postID, comment)
	return &comment, nil
}

// DeleteComment removes a comment together with its replies.
func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) error {
	if err := c.do(ctx, http.MethodDelete, commentPath(postID, commentID), nil, nil); err != nil {
		return err
	}
	c.cache.RemoveComment(postID, commentID)
	return nil
}

// LikeComment likes a comment and returns its like set.
func (c *Client) LikeComment(ctx context.Context, postID, commentID string) ([]string, error) {
	return c.setCommentLike(ctx, postID, commentID, "like")
}

// UnlikeComment removes the caller's like from a comment.
func (c *Client) UnlikeComment(ctx context.Context, postID, commentID string) ([]string, error) {
	return c.setCommentLike(ctx, postID, commentID, "unlike")
}

func (c *Client) setCommentLike(ctx context.Context, postID, commentID, action string) ([]string, error) {
	var out struct {
		Likes []string `json:"likes"`
	}
	if err := c.do(ctx, http.MethodPost, commentPath(postID, commentID)+"/"+action, nil, &out); err != nil {
		return nil, err
	}
	c.cache.SetCommentLikes(postID, commentID, out.Likes)
	return out.Likes, nil
}

// AddReply replies to a comment and returns the comment's replies.
func (c *Client) AddReply(ctx context.Context, postID, commentID, text string) ([]models.Reply, error) {
	var out struct {
		Replies []models.Reply `json:"replies"`
	}
	body := models.TextRequest{Text: text}
	if err := c.do(ctx, http.MethodPost, commentPath(postID, commentID)+"/reply", body, &out); err != nil {
		return nil, err
	}
	c.cache.SetReplies(postID, commentID, out.Replies)
	return out.Replies, nil
}

// EditReply changes the text of the caller's reply.
func (c *Client) EditReply(ctx context.Context, postID, commentID, replyID, text string) (*models.Reply, error) {
	var reply models.Reply
	body := models.TextRequest{Text: text}
	if err := c.do(ctx, http.MethodPut, replyPath(postID, commentID, replyID), body, &reply); err != nil {
		return nil, err
	}
	c.cache.ReplaceReply(postID, commentID, reply)
	return &reply, nil
}

// DeleteReply removes a reply.
func (c *Client) DeleteReply(ctx context.Context, postID, commentID, replyID string) error {
	if err := c.do(ctx, http.MethodDelete, replyPath(postID, commentID, replyID), nil, nil); err != nil {
		return err
	}
	c.cache.RemoveReply(postID, commentID, replyID)
	return nil
}

// LikeReply likes a reply and returns its like set.
func (c *Client) LikeReply(ctx context.Context, postID, commentID, replyID string) ([]string, error) {
	return c.setReplyLike(ctx, postID, commentID, replyID, "like")
}

// UnlikeReply removes the caller's like from a reply.
func (c *Client) UnlikeReply(ctx context.Context, postID, commentID, replyID string) ([]string, error) {
	return c.setReplyLike(ctx, postID, commentID, replyID, "unlike")
}

func (c *Client) setReplyLike(ctx context.Context, postID, commentID, replyID, action string) ([]string, error) {
	var out struct {
		Likes []string `json:"likes"`
	}
	if err := c.do(ctx, http.MethodPost, replyPath(postID, commentID, replyID)+"/"+action, nil, &out); err != nil {
		return nil, err
	}
	c.cache.SetReplyLikes(postID, commentID, replyID, out.Likes)
	return out.Likes, nil
}

// ViewPost records a view. The server decides whether it counts, so the
// cached view count is left as is.
func (c *Client) ViewPost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodPost, postPath(postID)+"/view", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var payload struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	}
	return apiErr
}

func postPath(postID string) string {
	return "/api/posts/" + url.PathEscape(postID)
}

func commentPath(postID, commentID string) string {
	return postPath(postID) + "/comments/" + url.PathEscape(commentID)
}

func replyPath(postID, commentID, replyID string) string {
	return commentPath(postID, commentID) + "/replies/" + url.PathEscape(replyID)
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
