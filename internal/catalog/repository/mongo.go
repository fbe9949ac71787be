package repository

import (
	"context"
	"errors"
	"time"

	"github.com/appdedupe/appdedupe/internal/database"
	"github.com/appdedupe/appdedupe/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Store on the clusters and appnames collections.
// Methods use the ctx they are handed, so calls made inside a
// database.Transactor unit join its session.
type MongoRepo struct {
	clusters *mongo.Collection
	apps     *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		clusters: db.Collection(database.ClustersCollection),
		apps:     db.Collection(database.AppNamesCollection),
	}
}

func (m *MongoRepo) CreateCluster(ctx context.Context, c *models.Cluster) error {
	stampCluster(c)
	_, err := m.clusters.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateName
	}
	return err
}

func (m *MongoRepo) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	var c models.Cluster
	if err := m.clusters.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (m *MongoRepo) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.clusters.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	out := []*models.Cluster{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) UpdateCluster(ctx context.Context, id string, u ClusterUpdate) (*models.Cluster, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.CanonicalName != nil {
		set["canonicalName"] = *u.CanonicalName
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	var c models.Cluster
	err := m.clusters.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return &c, nil
}

func (m *MongoRepo) CountClusters(ctx context.Context) (int64, error) {
	return m.clusters.CountDocuments(ctx, bson.M{})
}

func (m *MongoRepo) CreateApp(ctx context.Context, a *models.AppName) error {
	stampApp(a)
	_, err := m.apps.InsertOne(ctx, a)
	return err
}

func (m *MongoRepo) GetApp(ctx context.Context, id string) (*models.AppName, error) {
	var a models.AppName
	if err := m.apps.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func appQuery(f AppFilter) bson.M {
	q := bson.M{}
	if f.Confirmed != nil {
		q["confirmed"] = *f.Confirmed
	}
	if f.ClusterID != nil {
		if *f.ClusterID == "" {
			q["cluster"] = bson.M{"$exists": false}
		} else {
			q["cluster"] = *f.ClusterID
		}
	}
	return q
}

func (m *MongoRepo) ListApps(ctx context.Context, f AppFilter) ([]*models.AppName, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.apps.Find(ctx, appQuery(f), opts)
	if err != nil {
		return nil, err
	}
	out := []*models.AppName{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) UpdateApp(ctx context.Context, id string, u AppUpdate) (*models.AppName, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	update := bson.M{}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Notes != nil {
		set["notes"] = *u.Notes
	}
	if u.ClusterID != nil {
		if *u.ClusterID == "" {
			update["$unset"] = bson.M{"cluster": ""}
		} else {
			set["cluster"] = *u.ClusterID
		}
	}
	update["$set"] = set
	var a models.AppName
	err := m.apps.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// MarkConfirmed matches on confirmed=false so concurrent confirmers race on a
// single document update and exactly one of them wins.
func (m *MongoRepo) MarkConfirmed(ctx context.Context, id, userID string, at time.Time) (*models.AppName, bool, error) {
	var a models.AppName
	err := m.apps.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "confirmed": false},
		bson.M{"$set": bson.M{"confirmed": true, "confirmedBy": userID, "confirmedAt": at, "updatedAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&a)
	if err == nil {
		return &a, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}
	existing, err := m.GetApp(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (m *MongoRepo) CountApps(ctx context.Context, f AppFilter) (int64, error) {
	return m.apps.CountDocuments(ctx, appQuery(f))
}

func (m *MongoRepo) CountConfirmedBySince(ctx context.Context, userID string, since time.Time) (int64, error) {
	return m.apps.CountDocuments(ctx, bson.M{
		"confirmed":   true,
		"confirmedBy": userID,
		"confirmedAt": bson.M{"$gte": since},
	})
}

func (m *MongoRepo) RecentlyConfirmed(ctx context.Context, limit int) ([]*models.AppName, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.apps.Find(ctx, bson.M{"confirmed": true}, opts)
	if err != nil {
		return nil, err
	}
	out := []*models.AppName{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) CountsByCluster(ctx context.Context) (map[string]Counts, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"cluster": bson.M{"$exists": true}}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$cluster",
			"total":     bson.M{"$sum": 1},
			"confirmed": bson.M{"$sum": bson.M{"$cond": bson.A{"$confirmed", 1, 0}}},
		}}},
	}
	cur, err := m.apps.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID        string `bson:"_id"`
		Total     int64  `bson:"total"`
		Confirmed int64  `bson:"confirmed"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]Counts, len(rows))
	for _, r := range rows {
		out[r.ID] = Counts{Total: r.Total, Confirmed: r.Confirmed}
	}
	return out, nil
}

func (m *MongoRepo) ConfirmationsByUser(ctx context.Context) ([]UserCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"confirmed": true, "confirmedBy": bson.M{"$exists": true, "$ne": ""}}}},
		{{Key: "$group", Value: bson.M{"_id": "$confirmedBy", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := m.apps.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]UserCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserCount{UserID: r.ID, Count: r.Count})
	}
	return out, nil
}

func (m *MongoRepo) ReplaceAll(ctx context.Context, clusters []*models.Cluster, apps []*models.AppName) error {
	if _, err := m.apps.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if _, err := m.clusters.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if len(clusters) > 0 {
		docs := make([]interface{}, 0, len(clusters))
		for _, c := range clusters {
			stampCluster(c)
			docs = append(docs, c)
		}
		if _, err := m.clusters.InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	if len(apps) > 0 {
		docs := make([]interface{}, 0, len(apps))
		for _, a := range apps {
			stampApp(a)
			docs = append(docs, a)
		}
		if _, err := m.apps.InsertMany(ctx, docs); err != nil {
			return err
		}
	}
	return nil
}
