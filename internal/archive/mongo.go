package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 5 * time.Second

type Mongo struct {
	client     *mgo.Client
	collection *mgo.Collection
	log        *logger.Logger
}

// NewMongo connects to cfg.URI and indexes runs by event and start time.
func NewMongo(ctx context.Context, cfg config.MongoConfig, log *logger.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mgo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	col := client.Database(cfg.Database).Collection(cfg.Collection)
	if _, err := col.Indexes().CreateOne(ctx, mgo.IndexModel{
		Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "startedAt", Value: -1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mint run index: %w", err)
	}

	log.Info("ARCHIVE", fmt.Sprintf("Archiving mint runs to %s.%s", cfg.Database, cfg.Collection))
	return &Mongo{client: client, collection: col, log: log}, nil
}

func (m *Mongo) SaveRun(ctx context.Context, report *models.MintReport) error {
	if _, err := m.collection.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("could not archive mint run %s: %w", report.RunID, err)
	}
	return nil
}

func (m *Mongo) ListRuns(ctx context.Context, eventID string) ([]models.MintReport, error) {
	cur, err := m.collection.Find(ctx,
		bson.M{"eventId": eventID},
		options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("error reading mint runs: %w", err)
	}
	defer cur.Close(ctx)

	runs := []models.MintReport{}
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("error decoding mint runs: %w", err)
	}
	return runs, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// New uses MongoDB when a URI is configured and the in-memory archive otherwise.
func New(ctx context.Context, cfg config.MongoConfig, log *logger.Logger) (Archive, error) {
	if cfg.URI == "" {
		log.Warn("ARCHIVE", "MONGO_URI not set, mint runs are kept in memory")
		return NewMemory(), nil
	}
	return NewMongo(ctx, cfg, log)
}
