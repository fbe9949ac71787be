package users

import (
	"context"
	"errors"
	"time"

	"github.com/appdedupe/appdedupe/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrEmailTaken = errors.New("email already registered")

// UserRepository defines persistence operations for users. Lookups return
// nil, nil when no user matches.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// UpsertByEmail links an SSO subject to the account with u.Email,
	// creating a contributor account when none exists.
	UpsertByEmail(ctx context.Context, u *models.User) (*models.User, error)
	SetRole(ctx context.Context, id string, role models.Role) error
	SaveScore(ctx context.Context, id string, s models.ScoreState) error
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
	DeleteAll(ctx context.Context) error
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) error {
	prepareNew(u)
	if _, err := r.col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *MongoUserRepository) UpsertByEmail(ctx context.Context, u *models.User) (*models.User, error) {
	prepareNew(u)
	filter := bson.M{"email": u.Email}
	update := bson.M{
		"$set": bson.M{
			"sub":       u.Sub,
			"updatedAt": u.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":                u.ID,
			"name":               u.Name,
			"role":               u.Role,
			"xp":                 0,
			"level":              1,
			"streak":             0,
			"dailyConfirmations": 0,
			"achievements":       bson.A{},
			"createdAt":          u.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *MongoUserRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()}})
	return err
}

func (r *MongoUserRepository) SaveScore(ctx context.Context, id string, s models.ScoreState) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"xp":                 s.XP,
		"level":              s.Level,
		"streak":             s.Streak,
		"lastActivity":       s.LastActivity,
		"dailyConfirmations": s.DailyConfirmations,
		"lastDailyReset":     s.LastDailyReset,
		"updatedAt":          time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoUserRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	out := []*models.User{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoUserRepository) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

func (r *MongoUserRepository) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"lastActivity": bson.M{"$gte": since}})
}

func (r *MongoUserRepository) DeleteAll(ctx context.Context) error {
	_, err := r.col.DeleteMany(ctx, bson.M{})
	return err
}

// prepareNew fills the defaults of a fresh account.
func prepareNew(u *models.User) {
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = models.NewID()
	}
	u.Email = models.NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Level == 0 {
		u.Level = 1
	}
	if u.Achievements == nil {
		u.Achievements = []models.UnlockedAchievement{}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}
