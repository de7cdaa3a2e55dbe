package speakers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend keeps the whole database in one document, so every Save is a
// single atomic replace. Documents are limited to 16 MB by the server.
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
	docID      string
}

type mongoSpeaker struct {
	Speaker string      `bson:"speaker"`
	Vectors [][]float64 `bson:"vectors"`
}

type mongoDocument struct {
	ID        string         `bson:"_id"`
	Speakers  []mongoSpeaker `bson:"speakers"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// NewMongoBackend connects to uri and uses document docID in database/collection.
func NewMongoBackend(ctx context.Context, uri, database, collection, docID string) (*MongoBackend, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if docID == "" {
		docID = "speakers"
	}
	return &MongoBackend{
		client:     client,
		collection: client.Database(database).Collection(collection),
		docID:      docID,
	}, nil
}

// Load fetches the document. A missing document is an empty database.
func (m *MongoBackend) Load(ctx context.Context) (*Database, error) {
	var doc mongoDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": m.docID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return NewDatabase(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load speaker document: %w", err)
	}

	db := NewDatabase()
	for _, sp := range doc.Speakers {
		for _, v := range sp.Vectors {
			if err := db.Append(sp.Speaker, v); err != nil {
				return nil, err
			}
		}
	}
	return db, nil
}

// Save upserts the document.
func (m *MongoBackend) Save(ctx context.Context, db *Database) error {
	doc := mongoDocument{ID: m.docID, UpdatedAt: time.Now().UTC()}
	db.Each(func(id string, vectors [][]float64) bool {
		doc.Speakers = append(doc.Speakers, mongoSpeaker{Speaker: id, Vectors: vectors})
		return true
	})

	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": m.docID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save speaker document: %w", err)
	}
	return nil
}

// Ping checks the server connection.
func (m *MongoBackend) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
