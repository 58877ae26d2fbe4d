package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/types"
)

// MongoStore keeps news documents in a MongoDB collection.
type MongoStore struct {
	client       *mongo.Client
	collection   *mongo.Collection
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewMongoStore connects to MongoDB, verifies the connection and ensures the
// collection indexes exist.
func NewMongoStore(ctx context.Context, cfg *config.MongoConfig, logger *slog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StoreError{Op: "connect", Err: err}
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StoreError{Op: "ping", Err: err}
	}

	s := &MongoStore{
		client:       client,
		collection:   client.Database(cfg.Database).Collection(cfg.Collection),
		queryTimeout: cfg.QueryTimeout,
		logger:       logger.With("component", "mongo_store"),
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.logger.Info("connected to mongodb", "database", cfg.Database, "collection", cfg.Collection)
	return s, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "link", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("link_unique"),
		},
		{
			Keys:    bson.D{{Key: "date", Value: -1}},
			Options: options.Index().SetName("date_desc"),
		},
	})
	if err != nil {
		return &types.StoreError{Op: "create indexes", Err: err}
	}
	return nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *MongoStore) FindRecent(ctx context.Context, limit int) ([]types.NewsDocument, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, "find recent", opts)
}

func (s *MongoStore) FindPage(ctx context.Context, page, limit int) ([]types.NewsDocument, int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	total, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return nil, 0, &types.StoreError{Op: "count", Err: err}
	}
	if limit < 1 {
		limit = 1
	}
	offset := int64(skip(page, limit))
	if offset >= total {
		return []types.NewsDocument{}, total, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetSkip(offset).
		SetLimit(int64(limit))

	docs, err := s.find(ctx, "find page", opts)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (s *MongoStore) find(ctx context.Context, op string, opts *options.FindOptions) ([]types.NewsDocument, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, &types.StoreError{Op: op, Err: err}
	}
	defer cursor.Close(ctx)

	docs := make([]types.NewsDocument, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, &types.StoreError{Op: op, Err: err}
	}
	return docs, nil
}

func (s *MongoStore) UpsertByLink(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error) {
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if doc.ScrapedAt.IsZero() {
		doc.ScrapedAt = now
	}

	update := bson.M{
		"$set": bson.M{
			"title":       doc.Title,
			"link":        doc.Link,
			"description": doc.Description,
			"content":     doc.Content,
			"date":        doc.Date,
			"source":      doc.Source,
			"imageUrl":    doc.ImageURL,
			"scrapedAt":   doc.ScrapedAt,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored types.NewsDocument
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"link": doc.Link}, update, opts).Decode(&stored)
	if err != nil {
		// Two concurrent upserts of a new link race on the unique index.
		if mongo.IsDuplicateKeyError(err) {
			return nil, &types.StoreError{Op: "upsert", Err: fmt.Errorf("%w: %s", types.ErrDuplicateKey, doc.Link)}
		}
		return nil, &types.StoreError{Op: "upsert", Err: err}
	}
	return &stored, nil
}

func (s *MongoStore) Insert(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error) {
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	doc.ID = primitive.NilObjectID
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.ScrapedAt.IsZero() {
		doc.ScrapedAt = now
	}

	res, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &types.StoreError{Op: "insert", Err: fmt.Errorf("%w: %s", types.ErrDuplicateKey, doc.Link)}
		}
		return nil, &types.StoreError{Op: "insert", Err: err}
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}

	s.logger.Debug("document inserted", "link", doc.Link, "source", doc.Source)
	return &doc, nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, &types.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.logger.Info("mongodb store closing")
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return &types.StoreError{Op: "disconnect", Err: err}
	}
	return nil
}
