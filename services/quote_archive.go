package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Archive constants
const (
	ArchiveDBName         = "stocktracker"
	ArchiveCollection     = "quote_snapshots"
	ArchiveConnectTimeout = 10 * time.Second
	ArchiveWriteTimeout   = 5 * time.Second
)

// QuoteSnapshot is the archived form of a fetched quote
type QuoteSnapshot struct {
	Symbol        string    `bson:"symbol"`
	Price         float64   `bson:"price"`
	ChangePercent float64   `bson:"change_percent"`
	QuoteTime     string    `bson:"quote_time"`
	ObservedAt    time.Time `bson:"observed_at"`
}

// QuoteArchive mirrors every successfully fetched quote into MongoDB.
// Entirely optional: when no URI is configured the registry runs without
// an archiver.
type QuoteArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewQuoteArchive connects to MongoDB and prepares the snapshot collection
func NewQuoteArchive(uri string) (*QuoteArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ArchiveConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	archive := &QuoteArchive{
		client:     client,
		collection: client.Database(ArchiveDBName).Collection(ArchiveCollection),
	}
	log.Println("Quote archive connected")
	return archive, nil
}

// ArchiveQuote records one snapshot. Best effort: failures are logged and
// never affect the tick that produced the quote.
func (a *QuoteArchive) ArchiveQuote(ctx context.Context, quote Quote) {
	writeCtx, cancel := context.WithTimeout(ctx, ArchiveWriteTimeout)
	defer cancel()

	_, err := a.collection.InsertOne(writeCtx, QuoteSnapshot{
		Symbol:        quote.Symbol,
		Price:         quote.Price,
		ChangePercent: quote.ChangePercent,
		QuoteTime:     quote.Time,
		ObservedAt:    time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Quote archive write failed for %s: %v", quote.Symbol, err)
	}
}

// PruneOlderThan removes snapshots observed before the cutoff age
func (a *QuoteArchive) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	res, err := a.collection.DeleteMany(ctx, bson.M{
		"observed_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Close disconnects from MongoDB
func (a *QuoteArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
