package news

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading_backend/services/marketdata"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB collection names
const (
	MongoNewsCollection = "market_news"
)

// ArchivedNewsItem represents a news article document in MongoDB
type ArchivedNewsItem struct {
	ID         int64     `bson:"_id" json:"id"`
	Category   string    `bson:"category" json:"category"`
	Datetime   int64     `bson:"datetime" json:"datetime"`
	Headline   string    `bson:"headline" json:"headline"`
	Image      string    `bson:"image" json:"image"`
	Related    string    `bson:"related" json:"related"`
	Source     string    `bson:"source" json:"source"`
	Summary    string    `bson:"summary" json:"summary"`
	URL        string    `bson:"url" json:"url"`
	ArchivedAt time.Time `bson:"archived_at" json:"archived_at"`
}

// Archive persists fetched market news into MongoDB so the news history
// outlives the provider's rolling window. Optional: a nil *Archive is a
// valid no-op collaborator.
type Archive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// InitArchive connects to MongoDB and returns the news archive. Returns
// (nil, nil) when no URI is configured; the archive is then disabled.
func InitArchive(uri, dbName string) (*Archive, error) {
	if uri == "" {
		log.Println("MONGODB_URI not set, news archive disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("News archive connected to MongoDB")
	return &Archive{
		client:     client,
		collection: client.Database(dbName).Collection(MongoNewsCollection),
	}, nil
}

// Close disconnects from MongoDB.
func (a *Archive) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if err := a.client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting news archive: %v", err)
	}
}

// ArchiveItems upserts fetched news articles keyed by provider article id.
// Re-archiving the same article is a no-op overwrite.
func (a *Archive) ArchiveItems(ctx context.Context, category string, items []marketdata.NewsItem) error {
	if a == nil || len(items) == 0 {
		return nil
	}

	archived := 0
	for _, item := range items {
		doc := ArchivedNewsItem{
			ID:         item.ID,
			Category:   category,
			Datetime:   item.Datetime,
			Headline:   item.Headline,
			Image:      item.Image,
			Related:    item.Related,
			Source:     item.Source,
			Summary:    item.Summary,
			URL:        item.URL,
			ArchivedAt: time.Now(),
		}

		opts := options.Replace().SetUpsert(true)
		if _, err := a.collection.ReplaceOne(ctx, bson.M{"_id": item.ID}, doc, opts); err != nil {
			return fmt.Errorf("failed to archive news item %d: %w", item.ID, err)
		}
		archived++
	}

	log.Printf("News archive: stored %d articles (category %s)", archived, category)
	return nil
}

// LatestID returns the highest archived article id for a category, used as
// the minId watermark for incremental provider fetches. Returns 0 when the
// archive is empty.
func (a *Archive) LatestID(ctx context.Context, category string) (int64, error) {
	if a == nil {
		return 0, nil
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	var latest ArchivedNewsItem
	err := a.collection.FindOne(ctx, bson.M{"category": category}, opts).Decode(&latest)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query latest news id: %w", err)
	}
	return latest.ID, nil
}

// RecentItems returns the most recently published archived articles for a
// category.
func (a *Archive) RecentItems(ctx context.Context, category string, limit int64) ([]ArchivedNewsItem, error) {
	if a == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "datetime", Value: -1}}).
		SetLimit(limit)
	cursor, err := a.collection.Find(ctx, bson.M{"category": category}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived news: %w", err)
	}
	defer cursor.Close(ctx)

	var items []ArchivedNewsItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode archived news: %w", err)
	}
	return items, nil
}
