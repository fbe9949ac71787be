package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appdedupe/appdedupe/internal/database"
	"github.com/appdedupe/appdedupe/internal/models"
)

// RunStore keeps the audit trail of ingestion runs. Get returns nil, nil
// for an unknown id.
type RunStore interface {
	Save(ctx context.Context, run *models.IngestRun) error
	Get(ctx context.Context, id string) (*models.IngestRun, error)
	List(ctx context.Context, limit int) ([]*models.IngestRun, error)
}

// MongoRunStore persists runs in the ingest_runs collection.
type MongoRunStore struct {
	col *mongo.Collection
}

func NewMongoRunStore(db *mongo.Database) *MongoRunStore {
	return &MongoRunStore{col: db.Collection(database.IngestRunsCollection)}
}

// Save upserts run by id.
func (s *MongoRunStore) Save(ctx context.Context, run *models.IngestRun) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.col.ReplaceOne(ctx, bson.M{"_id": run.ID}, run, opts); err != nil {
		return fmt.Errorf("save ingest run: %w", err)
	}
	return nil
}

func (s *MongoRunStore) Get(ctx context.Context, id string) (*models.IngestRun, error) {
	var run models.IngestRun
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&run); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// List returns the newest runs first.
func (s *MongoRunStore) List(ctx context.Context, limit int) ([]*models.IngestRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	out := []*models.IngestRun{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]models.IngestRun
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: map[string]models.IngestRun{}}
}

func (s *MemoryRunStore) Save(ctx context.Context, run *models.IngestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *MemoryRunStore) Get(ctx context.Context, id string) (*models.IngestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (s *MemoryRunStore) List(ctx context.Context, limit int) ([]*models.IngestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.IngestRun, 0, len(s.runs))
	for _, r := range s.runs {
		run := r
		out = append(out, &run)
	}
	// ksuid ids sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
