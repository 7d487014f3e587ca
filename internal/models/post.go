package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Media kinds
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// DefaultParticipantType is applied when a submission does not name one.
const DefaultParticipantType = "Employee"

// Author is a denormalized copy of the user who wrote a post, comment or reply.
// It is captured at write time and never joined live.
type Author struct {
	UserID     string `json:"user_id" bson:"user_id"`
	Name       string `json:"name" bson:"name"`
	Department string `json:"department" bson:"department"`
}

// Post represents a feed submission stored in MongoDB. Likes and comments are
// embedded so a post and its engagement state live in one document.
type Post struct {
	ID              primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Author          Author             `json:"author" bson:"author"`
	Title           string             `json:"title" bson:"title"`
	Description     string             `json:"description" bson:"description"`
	Category        string             `json:"category" bson:"category"`
	ParticipantType string             `json:"participant_type" bson:"participant_type"`
	Status          string             `json:"status" bson:"status"`
	ContentURL      string             `json:"content_url,omitempty" bson:"content_url,omitempty"`
	MediaType       string             `json:"media_type,omitempty" bson:"media_type,omitempty"`
	Views           int64              `json:"views" bson:"views"`
	Likes           []string           `json:"likes" bson:"likes"`
	Comments        []Comment          `json:"comments" bson:"comments"`
	Version         int64              `json:"version" bson:"version"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// IsPublished reports whether the post is part of the public feed.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// IsOwnedBy reports whether userID authored the post.
func (p *Post) IsOwnedBy(userID string) bool {
	return userID != "" && p.Author.UserID == userID
}

// IsVisibleTo reports whether userID may see the post. Drafts are only visible
// to their author.
func (p *Post) IsVisibleTo(userID string) bool {
	return p.IsPublished() || p.IsOwnedBy(userID)
}

// FindComment returns the embedded comment with the given id, or nil.
func (p *Post) FindComment(id primitive.ObjectID) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return &p.Comments[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	cp := *p
	cp.Likes = append([]string{}, p.Likes...)
	cp.Comments = make([]Comment, len(p.Comments))
	for i := range p.Comments {
		cp.Comments[i] = p.Comments[i].Clone()
	}
	return &cp
}

// Normalize replaces nil collections with empty ones so they encode as [] in
// JSON rather than null.
func (p *Post) Normalize() {
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	for i := range p.Comments {
		p.Comments[i].Normalize()
	}
}

// PostFilter narrows a post listing. Empty fields do not filter.
type PostFilter struct {
	Status   string
	Category string
	AuthorID string
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// Skip returns the number of documents to skip for the page.
func (p Page) Skip() int64 {
	if p.Number < 1 {
		return 0
	}
	return int64((p.Number - 1) * p.Limit)
}

// AuthorStats summarizes the engagement of one author's submissions.
type AuthorStats struct {
	Submissions   int64 `json:"submissions" bson:"submissions"`
	Published     int64 `json:"published" bson:"published"`
	Drafts        int64 `json:"drafts" bson:"drafts"`
	TotalLikes    int64 `json:"total_likes" bson:"total_likes"`
	TotalComments int64 `json:"total_comments" bson:"total_comments"`
	TotalViews    int64 `json:"total_views" bson:"total_views"`
}

// CreatePostRequest defines the request body for creating a new post. It binds
// from JSON or from multipart form fields.
type CreatePostRequest struct {
	Title           string `json:"title" form:"title" validate:"required,max=200"`
	Description     string `json:"description" form:"description" validate:"required,max=2000"`
	Category        string `json:"category" form:"category" validate:"required,max=100"`
	ParticipantType string `json:"participant_type" form:"participant_type" validate:"omitempty,max=50"`
	Status          string `json:"status" form:"status" validate:"omitempty,oneof=draft published"`
	ContentURL      string `json:"content_url" form:"content_url" validate:"omitempty,url"`
	MediaType       string `json:"media_type" form:"media_type" validate:"omitempty,oneof=image video"`
}

// UpdatePostRequest defines the request body for updating an existing post.
// Empty fields leave the stored value untouched.
type UpdatePostRequest struct {
	Title           string `json:"title" form:"title" validate:"omitempty,max=200"`
	Description     string `json:"description" form:"description" validate:"omitempty,max=2000"`
	Category        string `json:"category" form:"category" validate:"omitempty,max=100"`
	ParticipantType string `json:"participant_type" form:"participant_type" validate:"omitempty,max=50"`
	Status          string `json:"status" form:"status" validate:"omitempty,oneof=draft published"`
	ContentURL      string `json:"content_url" form:"content_url" validate:"omitempty,url"`
	MediaType       string `json:"media_type" form:"media_type" validate:"omitempty,oneof=image video"`
}

// Apply merges the non-empty fields of the request into post.
func (r *UpdatePostRequest) Apply(post *Post) {
	if r.Title != "" {
		post.Title = r.Title
	}
	if r.Description != "" {
		post.Description = r.Description
	}
	if r.Category != "" {
		post.Category = r.Category
	}
	if r.ParticipantType != "" {
		post.ParticipantType = r.ParticipantType
	}
	if r.Status != "" {
		post.Status = r.Status
	}
	if r.ContentURL != "" {
		post.ContentURL = r.ContentURL
		if r.MediaType != "" {
			post.MediaType = r.MediaType
		}
	}
}
