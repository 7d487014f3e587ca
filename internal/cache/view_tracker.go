// Package cache provides Redis-backed helpers for the engagement API.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewTracker decides whether a post view should be counted. A user's view of
// a post counts at most once per window. A tracker without a Redis client
// counts every view.
type ViewTracker struct {
	client *redis.Client
	window time.Duration
}

// NewViewTracker creates a ViewTracker. client may be nil.
func NewViewTracker(client *redis.Client, window time.Duration) *ViewTracker {
	return &ViewTracker{client: client, window: window}
}

// ShouldCount reports whether this view of postID by userID is the first one
// inside the current window. Redis failures fail open.
func (t *ViewTracker) ShouldCount(ctx context.Context, postID, userID string) bool {
	if t == nil || t.client == nil || userID == "" {
		return true
	}

	first, err := t.client.SetNX(ctx, viewKey(postID, userID), 1, t.window).Result()
	if err != nil {
		slog.WarnContext(ctx, "view dedupe unavailable", slog.String("post_id", postID), slog.Any("error", err))
		return true
	}
	return first
}

// Forget drops every remembered view of postID by userID.
func (t *ViewTracker) Forget(ctx context.Context, postID, userID string) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Del(ctx, viewKey(postID, userID)).Err()
}

func viewKey(postID, userID string) string {
	return fmt.Sprintf("views:%s:%s", postID, userID)
}
