package repository

import (
	"context"
	"errors"
	"time"

	"github.com/appdedupe/appdedupe/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("cluster name already exists")
)

// AppFilter narrows app name queries. Nil fields do not filter.
type AppFilter struct {
	Confirmed *bool
	ClusterID *string
}

// ClusterUpdate holds the editable cluster fields; nil means unchanged.
type ClusterUpdate struct {
	Name          *string
	CanonicalName *string
	Description   *string
}

// AppUpdate holds the editable app name fields; nil means unchanged. An empty
// ClusterID unassigns the app.
type AppUpdate struct {
	Name      *string
	ClusterID *string
	Notes     *string
}

// Counts are member totals of one cluster.
type Counts struct {
	Total     int64
	Confirmed int64
}

// UserCount is the number of confirmations attributed to one user.
type UserCount struct {
	UserID string
	Count  int64
}

type ClusterRepository interface {
	CreateCluster(ctx context.Context, c *models.Cluster) error
	GetCluster(ctx context.Context, id string) (*models.Cluster, error)
	ListClusters(ctx context.Context) ([]*models.Cluster, error)
	UpdateCluster(ctx context.Context, id string, u ClusterUpdate) (*models.Cluster, error)
	CountClusters(ctx context.Context) (int64, error)
}

type AppRepository interface {
	CreateApp(ctx context.Context, a *models.AppName) error
	GetApp(ctx context.Context, id string) (*models.AppName, error)
	ListApps(ctx context.Context, f AppFilter) ([]*models.AppName, error)
	UpdateApp(ctx context.Context, id string, u AppUpdate) (*models.AppName, error)
	// MarkConfirmed flips an unconfirmed app name to confirmed by userID. It
	// returns false together with the stored record when the app name was
	// already confirmed, leaving it untouched.
	MarkConfirmed(ctx context.Context, id, userID string, at time.Time) (*models.AppName, bool, error)
	CountApps(ctx context.Context, f AppFilter) (int64, error)
	CountConfirmedBySince(ctx context.Context, userID string, since time.Time) (int64, error)
	RecentlyConfirmed(ctx context.Context, limit int) ([]*models.AppName, error)
	CountsByCluster(ctx context.Context) (map[string]Counts, error)
	ConfirmationsByUser(ctx context.Context) ([]UserCount, error)
}

// Store is the cluster and app name record store.
type Store interface {
	ClusterRepository
	AppRepository
	// ReplaceAll deletes every cluster and app name, then inserts the given
	// records. Callers wanting all-or-nothing run it inside a transaction.
	ReplaceAll(ctx context.Context, clusters []*models.Cluster, apps []*models.AppName) error
}

func boolPtr(b bool) *bool { return &b }

// Confirmed and Unconfirmed are ready-made filters.
var (
	Confirmed   = AppFilter{Confirmed: boolPtr(true)}
	Unconfirmed = AppFilter{Confirmed: boolPtr(false)}
)
