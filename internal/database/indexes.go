package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection      = "users"
	ClustersCollection   = "clusters"
	AppNamesCollection   = "appnames"
	SessionsCollection   = "sessions"
	IngestRunsCollection = "ingest_runs"
)

// EnsureIndexes creates the indexes the repositories rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "lastActivity", Value: -1}}},
		},
		ClustersCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		AppNamesCollection: {
			{Keys: bson.D{{Key: "cluster", Value: 1}, {Key: "confirmed", Value: 1}}},
			{Keys: bson.D{{Key: "confirmed", Value: 1}, {Key: "updatedAt", Value: -1}}},
			{Keys: bson.D{{Key: "confirmedBy", Value: 1}, {Key: "confirmedAt", Value: -1}}},
		},
		SessionsCollection: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		IngestRunsCollection: {
			{Keys: bson.D{{Key: "startedAt", Value: -1}}},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
