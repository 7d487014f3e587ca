package repositories

import "errors"

var (
	// ErrInvalidID indicates an id that cannot name any stored document
	ErrInvalidID = errors.New("invalid id format")

	// ErrPostNotFound indicates the requested post doesn't exist
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound indicates the comment doesn't exist on the post
	ErrCommentNotFound = errors.New("comment not found")

	// ErrReplyNotFound indicates the reply doesn't exist on the comment
	ErrReplyNotFound = errors.New("reply not found")

	// ErrNotAuthor indicates the requester did not write the comment or reply
	ErrNotAuthor = errors.New("requester is not the author")

	// ErrVersionConflict indicates the post was modified since it was loaded
	ErrVersionConflict = errors.New("post was modified by another operation")

	// ErrUserNotFound indicates the user doesn't exist
	ErrUserNotFound = errors.New("user not found")
)

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrReplyNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
