package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) (map[string]models.Post, error)
	GetPostsByUserID(ctx context.Context, userID uint, skip, limit int64) ([]models.Post, int64, error)
	GetFeed(ctx context.Context, authorIDs []uint, skip, limit int64) ([]models.Post, int64, error)
	UpdatePost(ctx context.Context, id string, post *models.Post) error
	DeletePost(ctx context.Context, id string) error
	AdjustReactionsCount(ctx context.Context, postID string, delta int) error
	AdjustCommentsCount(ctx context.Context, postID string, delta int) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// EnsureIndexes creates the indexes used by the author timeline and the feed
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_deleted", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_deleted", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func visible(filter bson.M) bson.M {
	filter["is_deleted"] = bson.M{"$ne": true}
	return filter
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return objID, nil
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a visible post. Malformed IDs and deleted posts yield ErrNotFound.
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.collection.FindOne(ctx, visible(bson.M{"_id": objID})).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetPostsByIDs loads visible posts keyed by hex ID
func (r *MongoPostRepository) GetPostsByIDs(ctx context.Context, ids []string) (map[string]models.Post, error) {
	result := make(map[string]models.Post, len(ids))
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objID, err := primitive.ObjectIDFromHex(id); err == nil {
			objIDs = append(objIDs, objID)
		}
	}
	if len(objIDs) == 0 {
		return result, nil
	}
	posts, err := r.find(ctx, visible(bson.M{"_id": bson.M{"$in": objIDs}}), options.Find())
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		result[p.ID.Hex()] = p
	}
	return result, nil
}

// GetPostsByUserID retrieves an author's posts, newest first
func (r *MongoPostRepository) GetPostsByUserID(ctx context.Context, userID uint, skip, limit int64) ([]models.Post, int64, error) {
	return r.page(ctx, visible(bson.M{"user_id": userID}), skip, limit)
}

// GetFeed retrieves posts written by any of authorIDs, newest first
func (r *MongoPostRepository) GetFeed(ctx context.Context, authorIDs []uint, skip, limit int64) ([]models.Post, int64, error) {
	if len(authorIDs) == 0 {
		return []models.Post{}, 0, nil
	}
	return r.page(ctx, visible(bson.M{"user_id": bson.M{"$in": authorIDs}}), skip, limit)
}

func (r *MongoPostRepository) page(ctx context.Context, filter bson.M, skip, limit int64) ([]models.Post, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	posts, err := r.find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePost updates the content and media of a visible post
func (r *MongoPostRepository) UpdatePost(ctx context.Context, id string, post *models.Post) error {
	objID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	post.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"content":    post.Content,
			"image_urls": post.ImageURLs,
			"video_urls": post.VideoURLs,
			"mentions":   post.Mentions,
			"updated_at": post.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, visible(bson.M{"_id": objID}), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost soft deletes a post
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := parseObjectID(id)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := r.collection.UpdateOne(ctx, visible(bson.M{"_id": objID}),
		bson.M{"$set": bson.M{"is_deleted": true, "deleted_at": now, "updated_at": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustReactionsCount moves reactions_count by delta, never below zero
func (r *MongoPostRepository) AdjustReactionsCount(ctx context.Context, postID string, delta int) error {
	return r.adjust(ctx, postID, "reactions_count", delta)
}

// AdjustCommentsCount moves comments_count by delta, never below zero
func (r *MongoPostRepository) AdjustCommentsCount(ctx context.Context, postID string, delta int) error {
	return r.adjust(ctx, postID, "comments_count", delta)
}

func (r *MongoPostRepository) adjust(ctx context.Context, postID, field string, delta int) error {
	objID, err := parseObjectID(postID)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": objID}
	if delta < 0 {
		filter[field] = bson.M{"$gte": -delta}
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: delta}})
	return err
}
