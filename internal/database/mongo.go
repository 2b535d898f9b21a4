// internal/database/mongo.go
package database

import (
	"context"
	"fmt"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect opens the client and checks the primary is reachable.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(cfg.DBName), nil
}

type index struct {
	collection string
	keys       bson.D
	unique     bool
}

var indexes = []index{
	{store.ColUsers, bson.D{{Key: "email", Value: 1}}, true},
	{store.ColUsers, bson.D{{Key: "clientId", Value: 1}}, false},
	{store.ColDiseaseAreas, bson.D{{Key: "slug", Value: 1}}, true},
	{store.ColHcps, bson.D{{Key: "email", Value: 1}}, true},
	{store.ColHcps, bson.D{{Key: "specialty", Value: 1}}, false},
	{store.ColHcps, bson.D{{Key: "lastName", Value: 1}, {Key: "firstName", Value: 1}}, false},
	{store.ColCampaigns, bson.D{{Key: "code", Value: 1}}, true},
	{store.ColCampaigns, bson.D{{Key: "clientId", Value: 1}, {Key: "status", Value: 1}}, false},
	{store.ColCampaignHcps, bson.D{{Key: "campaignId", Value: 1}, {Key: "hcpId", Value: 1}}, true},
	{store.ColCampaignHcps, bson.D{{Key: "surveyToken", Value: 1}}, true},
	{store.ColCampaignHcps, bson.D{{Key: "hcpId", Value: 1}}, false},
	{store.ColResponses, bson.D{{Key: "campaignHcpId", Value: 1}}, true},
	{store.ColResponses, bson.D{{Key: "campaignId", Value: 1}, {Key: "status", Value: 1}}, false},
	{store.ColNominations, bson.D{{Key: "campaignId", Value: 1}, {Key: "status", Value: 1}}, false},
	{store.ColPayments, bson.D{{Key: "responseId", Value: 1}}, true},
	{store.ColPayments, bson.D{{Key: "campaignId", Value: 1}, {Key: "status", Value: 1}}, false},
}

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, idx := range indexes {
		model := mongo.IndexModel{Keys: idx.keys}
		if idx.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
	}
	return nil
}
