package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakePostStore is an in-memory PostRepository with the same version and
// not-found semantics as the Mongo implementation.
type fakePostStore struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
	order map[primitive.ObjectID]int
	seq   int

	// interleavedWrites makes that many upcoming SavePost calls lose to a
	// simulated concurrent like from user "99".
	interleavedWrites int
}

var _ repositories.PostRepository = (*fakePostStore)(nil)

func newFakePostStore() *fakePostStore {
	return &fakePostStore{
		posts: map[primitive.ObjectID]*models.Post{},
		order: map[primitive.ObjectID]int{},
	}
}

func clonePost(p *models.Post) *models.Post {
	return p.Clone()
}

func (s *fakePostStore) lookup(id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrInvalidID
	}
	post, ok := s.posts[objID]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	return post, nil
}

func (s *fakePostStore) lookupComment(postID, commentID string) (*models.Post, *models.Comment, error) {
	post, err := s.lookup(postID)
	if err != nil {
		return nil, nil, err
	}
	cid, err := primitive.ObjectIDFromHex(commentID)
	if err != nil {
		return nil, nil, repositories.ErrInvalidID
	}
	comment := post.FindComment(cid)
	if comment == nil {
		return nil, nil, repositories.ErrCommentNotFound
	}
	return post, comment, nil
}

func (s *fakePostStore) lookupReply(postID, commentID, replyID string) (*models.Post, *models.Comment, *models.Reply, error) {
	post, comment, err := s.lookupComment(postID, commentID)
	if err != nil {
		return nil, nil, nil, err
	}
	rid, err := primitive.ObjectIDFromHex(replyID)
	if err != nil {
		return nil, nil, nil, repositories.ErrInvalidID
	}
	reply := comment.FindReply(rid)
	if reply == nil {
		return nil, nil, nil, repositories.ErrReplyNotFound
	}
	return post, comment, reply, nil
}

func setLike(likes []string, userID string, liked bool) []string {
	out := []string{}
	for _, id := range likes {
		if id != userID {
			out = append(out, id)
		}
	}
	if liked {
		out = append(out, userID)
	}
	return out
}

func (s *fakePostStore) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Version = 1
	post.Normalize()

	s.seq++
	s.order[post.ID] = s.seq
	s.posts[post.ID] = clonePost(post)
	return nil
}

func (s *fakePostStore) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return clonePost(post), nil
}

func (s *fakePostStore) ListPosts(_ context.Context, filter models.PostFilter, page models.Page) ([]models.Post, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*models.Post{}
	for _, p := range s.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.AuthorID != "" && p.Author.UserID != filter.AuthorID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return s.order[matched[i].ID] > s.order[matched[j].ID]
	})

	total := int64(len(matched))
	start := int(page.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}

	posts := []models.Post{}
	for _, p := range matched[start:end] {
		posts = append(posts, *clonePost(p))
	}
	return posts, total, nil
}

func (s *fakePostStore) SavePost(ctx context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		return s.CreatePost(ctx, post)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.posts[post.ID]
	if !ok {
		return repositories.ErrPostNotFound
	}
	if s.interleavedWrites > 0 {
		s.interleavedWrites--
		stored.Likes = setLike(stored.Likes, "99", true)
		stored.Version++
	}
	if stored.Version != post.Version {
		return repositories.ErrVersionConflict
	}

	post.Version++
	post.UpdatedAt = time.Now().UTC()
	post.Normalize()
	s.posts[post.ID] = clonePost(post)
	return nil
}

func (s *fakePostStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.lookup(id)
	if err != nil {
		return err
	}
	delete(s.posts, post.ID)
	delete(s.order, post.ID)
	return nil
}

func (s *fakePostStore) SetPostLike(_ context.Context, postID, userID string, liked bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.lookup(postID)
	if err != nil {
		return nil, err
	}
	post.Likes = setLike(post.Likes, userID, liked)
	post.Version++
	return append([]string{}, post.Likes...), nil
}

func (s *fakePostStore) AddComment(_ context.Context, postID string, comment models.Comment) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.lookup(postID)
	if err != nil {
		return nil, err
	}
	post.Comments = append(post.Comments, comment)
	post.Version++
	return clonePost(post).Comments, nil
}

func (s *fakePostStore) SetCommentLike(_ context.Context, postID, commentID, userID string, liked bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, comment, err := s.lookupComment(postID, commentID)
	if err != nil {
		return nil, err
	}
	comment.Likes = setLike(comment.Likes, userID, liked)
	post.Version++
	return append([]string{}, comment.Likes...), nil
}

func (s *fakePostStore) AddReply(_ context.Context, postID, commentID string, reply models.Reply) ([]models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, comment, err := s.lookupComment(postID, commentID)
	if err != nil {
		return nil, err
	}
	comment.Replies = append(comment.Replies, reply)
	post.Version++
	return append([]models.Reply{}, comment.Replies...), nil
}

func (s *fakePostStore) SetReplyLike(_ context.Context, postID, commentID, replyID, userID string, liked bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, _, reply, err := s.lookupReply(postID, commentID, replyID)
	if err != nil {
		return nil, err
	}
	reply.Likes = setLike(reply.Likes, userID, liked)
	post.Version++
	return append([]string{}, reply.Likes...), nil
}

func (s *fakePostStore) UpdateCommentText(_ context.Context, postID, commentID, authorID, text string) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, comment, err := s.lookupComment(postID, commentID)
	if err != nil {
		return nil, err
	}
	if comment.Author.UserID != authorID {
		return nil, repositories.ErrNotAuthor
	}
	comment.Text = text
	comment.UpdatedAt = time.Now().UTC()
	post.Version++
	updated := *comment
	return &updated, nil
}

func (s *fakePostStore) UpdateReplyText(_ context.Context, postID, commentID, replyID, authorID, text string) (*models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, _, reply, err := s.lookupReply(postID, commentID, replyID)
	if err != nil {
		return nil, err
	}
	if reply.Author.UserID != authorID {
		return nil, repositories.ErrNotAuthor
	}
	reply.Text = text
	reply.UpdatedAt = time.Now().UTC()
	post.Version++
	updated := *reply
	return &updated, nil
}

func (s *fakePostStore) RemoveComment(_ context.Context, postID, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, comment, err := s.lookupComment(postID, commentID)
	if err != nil {
		return err
	}
	kept := []models.Comment{}
	for _, c := range post.Comments {
		if c.ID != comment.ID {
			kept = append(kept, c)
		}
	}
	post.Comments = kept
	post.Version++
	return nil
}

func (s *fakePostStore) RemoveReply(_ context.Context, postID, commentID, replyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, comment, reply, err := s.lookupReply(postID, commentID, replyID)
	if err != nil {
		return err
	}
	kept := []models.Reply{}
	for _, r := range comment.Replies {
		if r.ID != reply.ID {
			kept = append(kept, r)
		}
	}
	comment.Replies = kept
	post.Version++
	return nil
}

func (s *fakePostStore) IncrementViews(_ context.Context, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.lookup(postID)
	if err != nil {
		return false, err
	}
	if !post.IsPublished() {
		return false, nil
	}
	post.Views++
	post.Version++
	return true, nil
}

func (s *fakePostStore) AuthorStats(_ context.Context, authorID string) (*models.AuthorStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &models.AuthorStats{}
	for _, p := range s.posts {
		if p.Author.UserID != authorID {
			continue
		}
		stats.Submissions++
		if p.IsPublished() {
			stats.Published++
		} else {
			stats.Drafts++
		}
		stats.TotalLikes += int64(len(p.Likes))
		stats.TotalComments += int64(len(p.Comments))
		stats.TotalViews += p.Views
	}
	return stats, nil
}

// mockUserRepository is a testify mock of UserRepository.
type mockUserRepository struct {
	mock.Mock
}

var _ repositories.UserRepository = (*mockUserRepository)(nil)

func (m *mockUserRepository) CreateUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *mockUserRepository) GetUserByID(id uint) (*models.User, error) {
	args := m.Called(id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetUserByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetUserByFirebaseUID(firebaseUID string) (*models.User, error) {
	args := m.Called(firebaseUID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) UpdateUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}
