// internal/storage/mongo.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meal-journal/internal/models"
)

const COLLECTION_NAME_PARTICIPANT_RECORDS = "participantRecords"

type MongoConfig struct {
	URI             string `json:"uri" yaml:"uri"`
	Database        string `json:"database" yaml:"database"`
	Timeout         int    `json:"timeout" yaml:"timeout"`
	IdleConnTimeout int    `json:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxPoolSize     uint64 `json:"max_pool_size" yaml:"max_pool_size"`
}

// The document is kept as its JSON text so it reads back byte-identical;
// BSON would reorder keys and retype numbers.
type mongoRecord struct {
	ParticipantID string `bson:"_id"`
	Document      string `bson:"document"`
	CreatedAt     int64  `bson:"createdAt"`
	UpdatedAt     int64  `bson:"updatedAt"`
}

type MongoStore struct {
	DBClient *mongo.Client
	database string
	timeout  int
}

func NewMongoStore(configs MongoConfig) (*MongoStore, error) {
	if configs.Timeout <= 0 {
		configs.Timeout = 30
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(configs.URI)
	if configs.IdleConnTimeout > 0 {
		clientOpts.SetMaxConnIdleTime(time.Duration(configs.IdleConnTimeout) * time.Second)
	}
	if configs.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(configs.MaxPoolSize)
	}

	dbClient, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Duration(configs.Timeout)*time.Second)
	defer pingCancel()
	if err := dbClient.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &MongoStore{
		DBClient: dbClient,
		database: configs.Database,
		timeout:  configs.Timeout,
	}, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := s.getContext(context.Background())
	defer cancel()
	return s.DBClient.Disconnect(ctx)
}

func (s *MongoStore) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, time.Duration(s.timeout)*time.Second)
}

func (s *MongoStore) collectionParticipantRecords() *mongo.Collection {
	return s.DBClient.Database(s.database).Collection(COLLECTION_NAME_PARTICIPANT_RECORDS)
}

func (s *MongoStore) Create(ctx context.Context, participantID string, doc models.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	ctx, cancel := s.getContext(ctx)
	defer cancel()

	now := time.Now().Unix()
	_, err = s.collectionParticipantRecords().InsertOne(ctx, mongoRecord{
		ParticipantID: participantID,
		Document:      string(body),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", errors.Join(ErrTransient, err))
	}
	return nil
}

func (s *MongoStore) Read(ctx context.Context, participantID string) (models.Document, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	var rec mongoRecord
	err := s.collectionParticipantRecords().FindOne(ctx, bson.M{"_id": participantID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", errors.Join(ErrTransient, err))
	}

	doc := models.Document{}
	if err := json.Unmarshal([]byte(rec.Document), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

func (s *MongoStore) Replace(ctx context.Context, participantID string, doc models.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	ctx, cancel := s.getContext(ctx)
	defer cancel()

	res, err := s.collectionParticipantRecords().UpdateOne(ctx,
		bson.M{"_id": participantID},
		bson.M{"$set": bson.M{"document": string(body), "updatedAt": time.Now().Unix()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", errors.Join(ErrTransient, err))
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, participantID string) error {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	res, err := s.collectionParticipantRecords().DeleteOne(ctx, bson.M{"_id": participantID})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", errors.Join(ErrTransient, err))
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
