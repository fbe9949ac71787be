// Package service holds the cluster and app name use cases: CRUD, the
// confirmation state machine, ratio views and the export of finished clusters.
package service

import (
	"context"
	"time"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/database"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/internal/scoring"
)

// UserStore is the slice of the user repository the catalog needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	SaveScore(ctx context.Context, id string, s models.ScoreState) error
}

type Service struct {
	store repository.Store
	users UserStore
	tx    database.Transactor
	rule  scoring.Rule
	loc   *time.Location
	now   func() time.Time
}

func New(store repository.Store, users UserStore, tx database.Transactor, rule scoring.Rule, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store: store,
		users: users,
		tx:    tx,
		rule:  rule,
		loc:   loc,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Ref is a populated reference for display.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AppView is an app name with its cluster and users resolved to names.
type AppView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	CanonicalName string     `json:"canonicalName"`
	Cluster       *Ref       `json:"cluster"`
	Confirmed     bool       `json:"confirmed"`
	ConfirmedBy   *Ref       `json:"confirmedBy"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedBy     *Ref       `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// populate resolves cluster and user references of apps in two batched reads.
func (s *Service) populate(ctx context.Context, apps []*models.AppName) ([]AppView, error) {
	clusterNames := map[string]string{}
	if len(apps) > 0 {
		clusters, err := s.store.ListClusters(ctx)
		if err != nil {
			return nil, apperr.Internal("Database error", err)
		}
		for _, c := range clusters {
			clusterNames[c.ID] = c.Name
		}
	}

	seen := map[string]bool{}
	var ids []string
	for _, a := range apps {
		for _, id := range []string{a.CreatedBy, a.ConfirmedBy} {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	userNames := map[string]string{}
	if len(ids) > 0 {
		users, err := s.users.ListByIDs(ctx, ids)
		if err != nil {
			return nil, apperr.Internal("Database error", err)
		}
		for _, u := range users {
			userNames[u.ID] = u.Name
		}
	}

	ref := func(id string, names map[string]string) *Ref {
		if id == "" {
			return nil
		}
		name, ok := names[id]
		if !ok {
			return nil
		}
		return &Ref{ID: id, Name: name}
	}

	out := make([]AppView, 0, len(apps))
	for _, a := range apps {
		out = append(out, AppView{
			ID:            a.ID,
			Name:          a.Name,
			CanonicalName: a.CanonicalName,
			Cluster:       ref(a.ClusterID, clusterNames),
			Confirmed:     a.Confirmed,
			ConfirmedBy:   ref(a.ConfirmedBy, userNames),
			ConfirmedAt:   a.ConfirmedAt,
			Notes:         a.Notes,
			CreatedBy:     ref(a.CreatedBy, userNames),
			CreatedAt:     a.CreatedAt,
			UpdatedAt:     a.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Service) view(ctx context.Context, a *models.AppName) (*AppView, error) {
	views, err := s.populate(ctx, []*models.AppName{a})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}
