package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations. Every
// engagement mutation is applied as a single atomic update scoped to the
// nested field it touches, so concurrent writers on the same post never lose
// each other's changes.
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, filter models.PostFilter, page models.Page) ([]models.Post, int64, error)
	SavePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, id string) error

	SetPostLike(ctx context.Context, postID, userID string, liked bool) ([]string, error)
	AddComment(ctx context.Context, postID string, comment models.Comment) ([]models.Comment, error)
	SetCommentLike(ctx context.Context, postID, commentID, userID string, liked bool) ([]string, error)
	AddReply(ctx context.Context, postID, commentID string, reply models.Reply) ([]models.Reply, error)
	SetReplyLike(ctx context.Context, postID, commentID, replyID, userID string, liked bool) ([]string, error)
	UpdateCommentText(ctx context.Context, postID, commentID, authorID, text string) (*models.Comment, error)
	UpdateReplyText(ctx context.Context, postID, commentID, replyID, authorID, text string) (*models.Reply, error)
	RemoveComment(ctx context.Context, postID, commentID string) error
	RemoveReply(ctx context.Context, postID, commentID, replyID string) error
	IncrementViews(ctx context.Context, postID string) (bool, error)

	AuthorStats(ctx context.Context, authorID string) (*models.AuthorStats, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// EnsureIndexes creates the indexes backing the feed listings.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "author.user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	defer observability.TrackStore("create_post")()

	now := time.Now().UTC()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Version = 1
	post.Normalize()

	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	defer observability.TrackStore("get_post")()

	objID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	post.Normalize()
	return &post, nil
}

// ListPosts retrieves posts matching filter, newest first, together with the
// total number of matches. A zero page limit returns every match.
func (r *MongoPostRepository) ListPosts(ctx context.Context, filter models.PostFilter, page models.Page) ([]models.Post, int64, error) {
	defer observability.TrackStore("list_posts")()

	query := listFilter(filter)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().SetSkip(page.Skip()).SetSort(bson.D{{Key: "created_at", Value: -1}})
	if page.Limit > 0 {
		findOptions.SetLimit(int64(page.Limit))
	}
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, 0, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	for i := range posts {
		posts[i].Normalize()
	}
	return posts, total, nil
}

// SavePost writes the whole document back. The write only succeeds when the
// stored version still equals post.Version; on success post.Version is bumped.
// A post without an id is inserted.
func (r *MongoPostRepository) SavePost(ctx context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		return r.CreatePost(ctx, post)
	}
	defer observability.TrackStore("save_post")()

	expected := post.Version
	post.Version = expected + 1
	post.UpdatedAt = time.Now().UTC()
	post.Normalize()

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": post.ID, "version": expected}, post)
	if err != nil {
		post.Version = expected
		return err
	}
	if res.MatchedCount == 0 {
		post.Version = expected
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": post.ID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPostNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// DeletePost deletes a post by ID from MongoDB. Comments and replies are
// embedded and go with it.
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	defer observability.TrackStore("delete_post")()

	objID, err := parseID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

// SetPostLike adds or removes userID from the post's like set and returns the
// refreshed set.
func (r *MongoPostRepository) SetPostLike(ctx context.Context, postID, userID string, liked bool) ([]string, error) {
	defer observability.TrackStore("set_post_like")()

	objID, err := parseID(postID)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, likeUpdate("likes", userID, liked), returnAfter("likes")).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	post.Normalize()
	return post.Likes, nil
}

// AddComment appends comment to the post and returns the refreshed comments.
func (r *MongoPostRepository) AddComment(ctx context.Context, postID string, comment models.Comment) ([]models.Comment, error) {
	defer observability.TrackStore("add_comment")()

	objID, err := parseID(postID)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$inc":  bson.M{"version": 1},
	}
	var post models.Post
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, update, returnAfter("comments")).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	post.Normalize()
	return post.Comments, nil
}

// SetCommentLike adds or removes userID from a comment's like set and returns
// the refreshed set.
func (r *MongoPostRepository) SetCommentLike(ctx context.Context, postID, commentID, userID string, liked bool) ([]string, error) {
	defer observability.TrackStore("set_comment_like")()

	pid, cid, err := parseIDs(postID, commentID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": pid, "comments._id": cid}
	post, err := r.updateComments(ctx, filter, likeUpdate("comments.$.likes", userID, liked))
	if err != nil {
		return nil, r.resolveMissing(ctx, err, pid, cid, nil)
	}
	comment := post.FindComment(cid)
	if comment == nil {
		return nil, ErrCommentNotFound
	}
	return comment.Likes, nil
}

// AddReply appends reply to a comment and returns the comment's refreshed
// replies.
func (r *MongoPostRepository) AddReply(ctx context.Context, postID, commentID string, reply models.Reply) ([]models.Reply, error) {
	defer observability.TrackStore("add_reply")()

	pid, cid, err := parseIDs(postID, commentID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": pid, "comments._id": cid}
	update := bson.M{
		"$push": bson.M{"comments.$.replies": reply},
		"$inc":  bson.M{"version": 1},
	}
	post, err := r.updateComments(ctx, filter, update)
	if err != nil {
		return nil, r.resolveMissing(ctx, err, pid, cid, nil)
	}
	comment := post.FindComment(cid)
	if comment == nil {
		return nil, ErrCommentNotFound
	}
	return comment.Replies, nil
}

// SetReplyLike adds or removes userID from a reply's like set and returns the
// refreshed set.
func (r *MongoPostRepository) SetReplyLike(ctx context.Context, postID, commentID, replyID, userID string, liked bool) ([]string, error) {
	defer observability.TrackStore("set_reply_like")()

	pid, cid, err := parseIDs(postID, commentID)
	if err != nil {
		return nil, err
	}
	rid, err := parseID(replyID)
	if err != nil {
		return nil, err
	}

	filter := replyFilter(pid, cid, rid, "")
	post, err := r.updateComments(ctx, filter, likeUpdate("comments.$[c].replies.$[r].likes", userID, liked), replyArrayFilters(cid, rid, ""))
	if err != nil {
		return nil, r.resolveMissing(ctx, err, pid, cid, &rid)
	}
	reply := findReply(post, cid, rid)
	if reply == nil {
		return nil, ErrReplyNotFound
	}
	return reply.Likes, nil
}

// UpdateCommentText replaces the text of a comment written by authorID.
func (r *MongoPostRepository) UpdateCommentText(ctx context.Context, postID, commentID, authorID, text string) (*models.Comment, error) {
	defer observability.TrackStore("update_comment")()

	pid, cid, err := parseIDs(postID, commentID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"_id":      pid,
		"comments": bson.M{"$elemMatch": bson.M{"_id": cid, "author.user_id": authorID}},
	}
	update := bson.M{
		"$set": bson.M{"comments.$.text": text, "comments.$.updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	post, err := r.updateComments(ctx, filter, update)
	if err != nil {
		return nil, r.resolveMissingAuthor(ctx, err, pid, cid, nil)
	}
	comment := post.FindComment(cid)
	if comment == nil {
		return nil, ErrCommentNotFound
	}
	return comment, nil
}

// UpdateReplyText replaces the text of a reply written by authorID.
func (r *MongoPostRepository) UpdateReplyText(ctx context.Context, postID, commentID, replyID, authorID, text string) (*models.Reply, error) {
	defer observability.TrackStore("update_reply")()

	pid, cid, err := parseIDs(postID, commentID)
	if err != nil {
		return nil, err
	}
	rid, err := parseID(replyID)
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$set": bson.M{
			"comments.$[c].replies.$[r].text":       text,
			"comments.$[c].replies.$[r].updated_at": time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	post, err := r.updateComments(ctx, replyFilter(pid, cid, rid, authorID), update, replyArrayFilters(cid, rid, authorID))
	if err != nil {
		return nil, r.resolveMissingAuthor(ctx, err, pid, cid, &rid)
	}
	reply := findReply(post, cid, rid)
	if reply == nil {
		return nil, ErrReplyNotFound
	}
	return reply, nil
}

// RemoveComment pulls a comment, and every reply nested under it, in one
// update.
func (r *MongoPostRepository) RemoveComment(ctx context.Context, postID, commentID string) error {
	defer observability.TrackStore("remove_comment")()

	pid, cid, err := parseIDs(postID, commentID)
	if err != nil {
		return err
	}

	update := bson.M{
		"$pull": bson.M{"comments": bson.M{"_id": cid}},
		"$inc":  bson.M{"version": 1},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": pid, "comments._id": cid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.resolveMissing(ctx, mongo.ErrNoDocuments, pid, cid, nil)
	}
	return nil
}

// RemoveReply pulls a reply from its comment.
func (r *MongoPostRepository) RemoveReply(ctx context.Context, postID, commentID, replyID string) error {
	defer observability.TrackStore("remove_reply")()

	pid, cid, err := parseIDs(postID, commentID)
	if err != nil {
		return err
	}
	rid, err := parseID(replyID)
	if err != nil {
		return err
	}

	update := bson.M{
		"$pull": bson.M{"comments.$.replies": bson.M{"_id": rid}},
		"$inc":  bson.M{"version": 1},
	}
	res, err := r.collection.UpdateOne(ctx, replyFilter(pid, cid, rid, ""), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.resolveMissing(ctx, mongo.ErrNoDocuments, pid, cid, &rid)
	}
	return nil
}

// IncrementViews bumps the view counter of a published post. It reports
// false, without error, when the post is a draft.
func (r *MongoPostRepository) IncrementViews(ctx context.Context, postID string) (bool, error) {
	defer observability.TrackStore("increment_views")()

	objID, err := parseID(postID)
	if err != nil {
		return false, err
	}

	update := bson.M{"$inc": bson.M{"views": 1, "version": 1}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID, "status": models.StatusPublished}, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objID})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrPostNotFound
	}
	return false, nil
}

// AuthorStats aggregates submission and engagement totals for one author.
func (r *MongoPostRepository) AuthorStats(ctx context.Context, authorID string) (*models.AuthorStats, error) {
	defer observability.TrackStore("author_stats")()

	cursor, err := r.collection.Aggregate(ctx, authorStatsPipeline(authorID))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := &models.AuthorStats{}
	if cursor.Next(ctx) {
		if err := cursor.Decode(stats); err != nil {
			return nil, err
		}
	}
	return stats, cursor.Err()
}

func (r *MongoPostRepository) updateComments(ctx context.Context, filter, update bson.M, arrayFilters ...interface{}) (*models.Post, error) {
	opts := returnAfter("comments")
	if len(arrayFilters) > 0 {
		opts.SetArrayFilters(options.ArrayFilters{Filters: arrayFilters})
	}

	var post models.Post
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&post); err != nil {
		return nil, err
	}
	post.Normalize()
	return &post, nil
}

// resolveMissing turns a failed nested match into the sentinel naming the
// first level that does not exist.
func (r *MongoPostRepository) resolveMissing(ctx context.Context, err error, pid, cid primitive.ObjectID, rid *primitive.ObjectID) error {
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	post, lookupErr := r.loadComments(ctx, pid)
	if lookupErr != nil {
		return lookupErr
	}
	if missing := classifyMissing(post, cid, rid); missing != nil {
		return missing
	}
	// The target reappeared between the update and the lookup; report the
	// level the update was aimed at.
	if rid != nil {
		return ErrReplyNotFound
	}
	return ErrCommentNotFound
}

// resolveMissingAuthor is resolveMissing for author-scoped updates: when the
// target exists the author did not match.
func (r *MongoPostRepository) resolveMissingAuthor(ctx context.Context, err error, pid, cid primitive.ObjectID, rid *primitive.ObjectID) error {
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	post, lookupErr := r.loadComments(ctx, pid)
	if lookupErr != nil {
		return lookupErr
	}
	if missing := classifyMissing(post, cid, rid); missing != nil {
		return missing
	}
	return ErrNotAuthor
}

func (r *MongoPostRepository) loadComments(ctx context.Context, pid primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": pid}, options.FindOne().SetProjection(bson.M{"comments": 1})).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// classifyMissing reports which level of post → comment → reply is absent, or
// nil when the whole path exists.
func classifyMissing(post *models.Post, cid primitive.ObjectID, rid *primitive.ObjectID) error {
	if post == nil {
		return ErrPostNotFound
	}
	comment := post.FindComment(cid)
	if comment == nil {
		return ErrCommentNotFound
	}
	if rid != nil && comment.FindReply(*rid) == nil {
		return ErrReplyNotFound
	}
	return nil
}

func findReply(post *models.Post, cid, rid primitive.ObjectID) *models.Reply {
	comment := post.FindComment(cid)
	if comment == nil {
		return nil
	}
	return comment.FindReply(rid)
}

func parseID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return objID, nil
}

func parseIDs(postID, commentID string) (primitive.ObjectID, primitive.ObjectID, error) {
	pid, err := parseID(postID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	cid, err := parseID(commentID)
	if err != nil {
		return primitive.NilObjectID, primitive.NilObjectID, err
	}
	return pid, cid, nil
}

func returnAfter(field string) *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})
}

// likeUpdate builds the set-add or set-remove update for a like set at path.
// Both operators are idempotent per user.
func likeUpdate(path, userID string, liked bool) bson.M {
	op := "$pull"
	if liked {
		op = "$addToSet"
	}
	return bson.M{
		op:     bson.M{path: userID},
		"$inc": bson.M{"version": 1},
	}
}

// replyFilter matches a post holding the reply under the comment, optionally
// written by authorID.
func replyFilter(pid, cid, rid primitive.ObjectID, authorID string) bson.M {
	reply := bson.M{"_id": rid}
	if authorID != "" {
		reply["author.user_id"] = authorID
	}
	return bson.M{
		"_id": pid,
		"comments": bson.M{"$elemMatch": bson.M{
			"_id":     cid,
			"replies": bson.M{"$elemMatch": reply},
		}},
	}
}

func replyArrayFilters(cid, rid primitive.ObjectID, authorID string) []interface{} {
	reply := bson.M{"r._id": rid}
	if authorID != "" {
		reply["r.author.user_id"] = authorID
	}
	return []interface{}{bson.M{"c._id": cid}, reply}
}

func listFilter(f models.PostFilter) bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.AuthorID != "" {
		query["author.user_id"] = f.AuthorID
	}
	return query
}

func countWhere(field, value string) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{"$" + field, value}}}, 1, 0,
	}}}}}
}

func sizeOf(field string) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$size", Value: bson.D{
		{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}},
	}}}}}
}

func authorStatsPipeline(authorID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "author.user_id", Value: authorID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "submissions", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "published", Value: countWhere("status", models.StatusPublished)},
			{Key: "drafts", Value: countWhere("status", models.StatusDraft)},
			{Key: "total_likes", Value: sizeOf("likes")},
			{Key: "total_comments", Value: sizeOf("comments")},
			{Key: "total_views", Value: bson.D{{Key: "$sum", Value: "$views"}}},
		}}},
	}
}
