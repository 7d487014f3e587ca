package client

import (
	"sync"

	"github.com/anonto42/shining-stars/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostCache holds the posts a client has seen, keyed by post id. It is only
// ever updated from server responses, so it never holds state the server did
// not confirm.
type PostCache struct {
	mu    sync.RWMutex
	posts map[string]*models.Post
}

// NewPostCache creates an empty cache.
func NewPostCache() *PostCache {
	return &PostCache{posts: make(map[string]*models.Post)}
}

// Get returns a copy of the cached post.
func (c *PostCache) Get(postID string) (*models.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	post, ok := c.posts[postID]
	if !ok {
		return nil, false
	}
	return post.Clone(), true
}

// Len returns the number of cached posts.
func (c *PostCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.posts)
}

// Put stores a copy of post, replacing any previous entry.
func (c *PostCache) Put(post *models.Post) {
	cp := post.Clone()
	cp.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts[cp.ID.Hex()] = cp
}

// Delete drops a post.
func (c *PostCache) Delete(postID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.posts, postID)
}

// HasLiked reports whether userID is in the cached like set of the post. The
// second result is false when the post is not cached.
func (c *PostCache) HasLiked(postID, userID string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	post, ok := c.posts[postID]
	if !ok {
		return false, false
	}
	for _, id := range post.Likes {
		if id == userID {
			return true, true
		}
	}
	return false, true
}

// SetPostLikes replaces the like set of a cached post.
func (c *PostCache) SetPostLikes(postID string, likes []string) {
	c.update(postID, func(p *models.Post) {
		p.Likes = append([]string{}, likes...)
	})
}

// SetComments replaces the comments of a cached post.
func (c *PostCache) SetComments(postID string, comments []models.Comment) {
	c.update(postID, func(p *models.Post) {
		p.Comments = make([]models.Comment, len(comments))
		for i := range comments {
			p.Comments[i] = comments[i].Clone()
		}
	})
}

// ReplaceComment swaps in an edited comment.
func (c *PostCache) ReplaceComment(postID string, comment models.Comment) {
	c.updateComment(postID, comment.ID.Hex(), func(existing *models.Comment) {
		*existing = comment.Clone()
	})
}

// SetCommentLikes replaces the like set of a cached comment.
func (c *PostCache) SetCommentLikes(postID, commentID string, likes []string) {
	c.updateComment(postID, commentID, func(cm *models.Comment) {
		cm.Likes = append([]string{}, likes...)
	})
}

// SetReplies replaces the replies of a cached comment.
func (c *PostCache) SetReplies(postID, commentID string, replies []models.Reply) {
	c.updateComment(postID, commentID, func(cm *models.Comment) {
		cm.Replies = make([]models.Reply, len(replies))
		for i, r := range replies {
			r.Likes = append([]string{}, r.Likes...)
			cm.Replies[i] = r
		}
	})
}

// ReplaceReply swaps in an edited reply.
func (c *PostCache) ReplaceReply(postID, commentID string, reply models.Reply) {
	c.updateReply(postID, commentID, reply.ID.Hex(), func(existing *models.Reply) {
		reply.Likes = append([]string{}, reply.Likes...)
		*existing = reply
	})
}

// SetReplyLikes replaces the like set of a cached reply.
func (c *PostCache) SetReplyLikes(postID, commentID, replyID string, likes []string) {
	c.updateReply(postID, commentID, replyID, func(r *models.Reply) {
		r.Likes = append([]string{}, likes...)
	})
}

// RemoveComment drops a comment and its replies from a cached post.
func (c *PostCache) RemoveComment(postID, commentID string) {
	c.update(postID, func(p *models.Post) {
		kept := p.Comments[:0]
		for _, cm := range p.Comments {
			if cm.ID.Hex() != commentID {
				kept = append(kept, cm)
			}
		}
		p.Comments = kept
	})
}

// RemoveReply drops a reply from a cached comment.
func (c *PostCache) RemoveReply(postID, commentID, replyID string) {
	c.updateComment(postID, commentID, func(cm *models.Comment) {
		kept := cm.Replies[:0]
		for _, r := range cm.Replies {
			if r.ID.Hex() != replyID {
				kept = append(kept, r)
			}
		}
		cm.Replies = kept
	})
}

// update applies fn to a cached post. Posts that are not cached are left
// alone.
func (c *PostCache) update(postID string, fn func(*models.Post)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if post, ok := c.posts[postID]; ok {
		fn(post)
	}
}

func (c *PostCache) updateComment(postID, commentID string, fn func(*models.Comment)) {
	cid, err := primitive.ObjectIDFromHex(commentID)
	if err != nil {
		return
	}
	c.update(postID, func(p *models.Post) {
		if cm := p.FindComment(cid); cm != nil {
			fn(cm)
		}
	})
}

func (c *PostCache) updateReply(postID, commentID, replyID string, fn func(*models.Reply)) {
	rid, err := primitive.ObjectIDFromHex(replyID)
	if err != nil {
		return
	}
	c.updateComment(postID, commentID, func(cm *models.Comment) {
		if r := cm.FindReply(rid); r != nil {
			fn(r)
		}
	})
}
