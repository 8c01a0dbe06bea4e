package manifest

import (
	"context"
	stderrors "errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/trussview/pkg/errors"
)

// Default MongoDB names.
const (
	DefaultDatabase   = "trussview"
	DefaultCollection = "manifests"
)

// MongoStore keeps the manifests of every run in a MongoDB collection, keyed
// by run id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and uses the given database. An empty
// database selects [DefaultDatabase].
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeIO, err, "ping mongodb")
	}
	return NewMongoStoreFromClient(client, database), nil
}

// NewMongoStoreFromClient wraps an existing client.
func NewMongoStoreFromClient(client *mongo.Client, database string) *MongoStore {
	if database == "" {
		database = DefaultDatabase
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(DefaultCollection),
	}
}

func (s *MongoStore) Save(ctx context.Context, m *Manifest) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": m.RunID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "save manifest %s", m.RunID)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, runID string) (*Manifest, error) {
	return s.findOne(ctx, bson.M{"_id": runID}, options.FindOne())
}

func (s *MongoStore) Latest(ctx context.Context) (*Manifest, error) {
	return s.findOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*Manifest, error) {
	var m Manifest
	err := s.coll.FindOne(ctx, filter, opts).Decode(&m)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.New(errors.ErrCodeNotFound, "manifest not found")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "load manifest")
	}
	return &m, nil
}

func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

var _ Store = (*MongoStore)(nil)
