// Package mongodb implements the storage.Store audit sink using MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phax/as2-peppol-client/internal/storage"
)

// Store implements storage.Store using a single MongoDB collection.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	messages *mongo.Collection
}

// Config holds MongoDB connection settings.
type Config struct {
	URI      string
	Database string
}

// NewStore connects to MongoDB and prepares the messages collection.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:   client,
		db:       db,
		messages: db.Collection("messages"),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "direction", Value: 1}, {Key: "sent_at", Value: -1}}},
		{Keys: bson.D{{Key: "sender_as2_id", Value: 1}, {Key: "receiver_as2_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating message indexes: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// StoreMessage inserts a new message record.
func (s *Store) StoreMessage(ctx context.Context, record *storage.MessageRecord) error {
	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}
	_, err := s.messages.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("message %s already recorded", record.MessageID)
	}
	return err
}

// GetMessage retrieves a message by its AS2 message id.
func (s *Store) GetMessage(ctx context.Context, messageID string) (*storage.MessageRecord, error) {
	var record storage.MessageRecord
	err := s.messages.FindOne(ctx, bson.M{"_id": messageID}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateDisposition records the MDN outcome for a previously stored message.
func (s *Store) UpdateDisposition(ctx context.Context, messageID string, disposition string, receivedAt time.Time) error {
	res, err := s.messages.UpdateOne(ctx, bson.M{"_id": messageID}, bson.M{
		"$set": bson.M{
			"disposition":    disposition,
			"disposition_at": receivedAt,
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListMessages returns messages matching filter, most recent first.
func (s *Store) ListMessages(ctx context.Context, filter *storage.MessageFilter) ([]*storage.MessageRecord, error) {
	query := bson.M{}
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: -1}})

	if filter != nil {
		if filter.Direction != "" {
			query["direction"] = filter.Direction
		}
		if filter.SenderAS2ID != "" {
			query["sender_as2_id"] = filter.SenderAS2ID
		}
		if filter.ReceiverAS2ID != "" {
			query["receiver_as2_id"] = filter.ReceiverAS2ID
		}
		if filter.Since != nil {
			query["sent_at"] = bson.M{"$gte": *filter.Since}
		}
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
	}

	cursor, err := s.messages.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*storage.MessageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
