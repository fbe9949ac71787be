// Package bootstrap opens the persistence backends shared by the API server
// and the seed command.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/internal/database"
	"github.com/appdedupe/appdedupe/internal/ingest"
	"github.com/appdedupe/appdedupe/internal/sessions"
	"github.com/appdedupe/appdedupe/internal/users"
	"github.com/appdedupe/appdedupe/pkg/logger"
)

const sessionPrefix = "session:"

// Stores bundles every repository. Mongo is nil when running in memory.
type Stores struct {
	Catalog  repository.Store
	Users    users.UserRepository
	Sessions sessions.Repository
	Runs     ingest.RunStore
	Tx       database.Transactor
	Mongo    *mongo.Client
}

// OpenStores connects to MongoDB when MONGODB_URI is set and falls back to
// in-memory stores otherwise. Sessions prefer Redis when rdb is non-nil.
func OpenStores(ctx context.Context, cfg *config.Config, rdb *redis.Client) (*Stores, error) {
	s := &Stores{}
	if cfg.MongoDB.URI == "" {
		logger.Warnf("MONGODB_URI not set; using in-memory stores (data is lost on restart)")
		s.Catalog = repository.NewMemoryRepo()
		s.Users = users.NewMemoryRepository()
		s.Sessions = sessions.NewMemoryRepository()
		s.Runs = ingest.NewMemoryRunStore()
		s.Tx = database.NewLockTransactor()
	} else {
		client, err := connectWithRetry(ctx, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB.Database)
		if err := database.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		s.Mongo = client
		s.Catalog = repository.NewMongoRepo(db)
		s.Users = users.NewMongoUserRepository(db.Collection(database.UsersCollection))
		s.Sessions = sessions.NewMongoRepository(db.Collection(database.SessionsCollection))
		s.Runs = ingest.NewMongoRunStore(db)
		txOn := useTransactions(ctx, client, cfg.MongoDB.Transactions)
		s.Tx = database.NewMongoTransactor(client, txOn)
		logger.Infof("connected to MongoDB database %q (transactions=%v)", cfg.MongoDB.Database, txOn)
	}
	if rdb != nil {
		s.Sessions = sessions.NewRedisRepository(rdb, sessionPrefix)
		logger.Infof("using Redis for session storage")
	}
	return s, nil
}

// connectWithRetry tolerates the database starting after the service.
func connectWithRetry(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	const maxAttempts = 5
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := database.ConnectMongo(ctx, cfg)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("could not connect to MongoDB after %d attempts: %w", maxAttempts, lastErr)
}

// useTransactions keeps transactions on only when the deployment supports
// them. A standalone mongod rejects every transaction, so the confirm and
// ingest units then run without one.
func useTransactions(ctx context.Context, client *mongo.Client, wanted bool) bool {
	if !wanted {
		return false
	}
	ok, err := database.SupportsTransactions(ctx, client)
	if err != nil {
		logger.Warnf("could not detect MongoDB topology, disabling transactions: %v", err)
		return false
	}
	if !ok {
		logger.Warnf("MongoDB is not a replica set; MONGODB_TRANSACTIONS ignored, writes are not atomic")
	}
	return ok
}

// ConnectRedis returns a pinged client, or nil when Redis is not configured
// or unreachable.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Host + ":" + cfg.Port, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Host, cfg.Port, err)
		_ = rdb.Close()
		return nil
	}
	logger.Infof("connected to Redis %s:%s", cfg.Host, cfg.Port)
	return rdb
}

// Close disconnects from MongoDB when connected.
func (s *Stores) Close(ctx context.Context) {
	if s.Mongo != nil {
		_ = s.Mongo.Disconnect(ctx)
	}
}
