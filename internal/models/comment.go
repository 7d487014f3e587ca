package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is embedded in a post. Replies are embedded one level below and do
// not nest further.
type Comment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Author    Author             `json:"author" bson:"author"`
	Text      string             `json:"text" bson:"text"`
	Likes     []string           `json:"likes" bson:"likes"`
	Replies   []Reply            `json:"replies" bson:"replies"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// Reply is embedded in a comment.
type Reply struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Author    Author             `json:"author" bson:"author"`
	Text      string             `json:"text" bson:"text"`
	Likes     []string           `json:"likes" bson:"likes"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// NewComment builds a comment with a fresh id and empty collections.
func NewComment(author Author, text string) Comment {
	now := time.Now().UTC()
	return Comment{
		ID:        primitive.NewObjectID(),
		Author:    author,
		Text:      text,
		Likes:     []string{},
		Replies:   []Reply{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewReply builds a reply with a fresh id and an empty like set.
func NewReply(author Author, text string) Reply {
	now := time.Now().UTC()
	return Reply{
		ID:        primitive.NewObjectID(),
		Author:    author,
		Text:      text,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindReply returns the embedded reply with the given id, or nil.
func (c *Comment) FindReply(id primitive.ObjectID) *Reply {
	for i := range c.Replies {
		if c.Replies[i].ID == id {
			return &c.Replies[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the comment.
func (c *Comment) Clone() Comment {
	cp := *c
	cp.Likes = append([]string{}, c.Likes...)
	cp.Replies = make([]Reply, len(c.Replies))
	for i, r := range c.Replies {
		r.Likes = append([]string{}, r.Likes...)
		cp.Replies[i] = r
	}
	return cp
}

// Normalize replaces nil like and reply slices with empty ones so they encode
// as [] rather than null.
func (c *Comment) Normalize() {
	if c.Likes == nil {
		c.Likes = []string{}
	}
	if c.Replies == nil {
		c.Replies = []Reply{}
	}
	for i := range c.Replies {
		if c.Replies[i].Likes == nil {
			c.Replies[i].Likes = []string{}
		}
	}
}

// TextRequest is the body of comment, reply and edit requests.
type TextRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}
