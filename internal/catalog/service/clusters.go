package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/models"
)

// ClusterView is a cluster with its derived member counts.
type ClusterView struct {
	models.Cluster
	TotalApps         int64   `json:"totalApps"`
	ConfirmedApps     int64   `json:"confirmedApps"`
	ConfirmationRatio float64 `json:"confirmationRatio"`
}

type ClusterStats struct {
	TotalApps       int64 `json:"totalApps"`
	ConfirmedApps   int64 `json:"confirmedApps"`
	UnconfirmedApps int64 `json:"unconfirmedApps"`
}

// ExportEntry is one fully confirmed cluster.
type ExportEntry struct {
	Cluster string   `json:"cluster"`
	Apps    []string `json:"apps"`
}

type CreateClusterInput struct {
	Name          string
	CanonicalName string
	Description   string
}

type ClusterPatch struct {
	Name          *string
	CanonicalName *string
	Description   *string
}

// Ratio is confirmed/total, 0 for an empty cluster.
func Ratio(c repository.Counts) float64 {
	if c.Total <= 0 {
		return 0
	}
	r := float64(c.Confirmed) / float64(c.Total)
	if r > 1 {
		return 1
	}
	return r
}

// ListClusters returns every cluster ordered by confirmation ratio
// descending, then name ascending.
func (s *Service) ListClusters(ctx context.Context) ([]ClusterView, error) {
	clusters, err := s.store.ListClusters(ctx)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	counts, err := s.store.CountsByCluster(ctx)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	out := make([]ClusterView, 0, len(clusters))
	for _, c := range clusters {
		n := counts[c.ID]
		out = append(out, ClusterView{
			Cluster:           *c,
			TotalApps:         n.Total,
			ConfirmedApps:     n.Confirmed,
			ConfirmationRatio: Ratio(n),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConfirmationRatio != out[j].ConfirmationRatio {
			return out[i].ConfirmationRatio > out[j].ConfirmationRatio
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Service) loadCluster(ctx context.Context, id string) (*models.Cluster, error) {
	if !models.ValidID(id) {
		return nil, apperr.Validation("Invalid cluster id", apperr.FieldError{Field: "id", Message: "must be a valid id"})
	}
	c, err := s.store.GetCluster(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Cluster not found")
	}
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return c, nil
}

func (s *Service) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	return s.loadCluster(ctx, id)
}

// CreateCluster adds an empty cluster. canonicalName defaults to name.
func (s *Service) CreateCluster(ctx context.Context, in CreateClusterInput, actor *models.User) (*models.Cluster, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("Validation failed", apperr.FieldError{Field: "name", Message: "name is required"})
	}
	canonical := strings.TrimSpace(in.CanonicalName)
	if canonical == "" {
		canonical = name
	}
	c := &models.Cluster{Name: name, CanonicalName: canonical, Description: strings.TrimSpace(in.Description)}
	if actor != nil {
		c.CreatedBy = actor.ID
	}
	if err := s.store.CreateCluster(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return nil, apperr.Conflict("Cluster name already exists")
		}
		return nil, apperr.Internal("Database error", err)
	}
	return c, nil
}

// UpdateCluster edits the label fields. Member app names keep the canonical
// name they were created with.
func (s *Service) UpdateCluster(ctx context.Context, id string, p ClusterPatch) (*models.Cluster, error) {
	if _, err := s.loadCluster(ctx, id); err != nil {
		return nil, err
	}
	upd := repository.ClusterUpdate{Description: p.Description}
	var err error
	if upd.Name, err = nonEmpty(p.Name, "name"); err != nil {
		return nil, err
	}
	if upd.CanonicalName, err = nonEmpty(p.CanonicalName, "canonicalName"); err != nil {
		return nil, err
	}
	c, err := s.store.UpdateCluster(ctx, id, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Cluster not found")
	}
	if errors.Is(err, repository.ErrDuplicateName) {
		return nil, apperr.Conflict("Cluster name already exists")
	}
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return c, nil
}

func (s *Service) ClusterStats(ctx context.Context, id string) (*ClusterStats, error) {
	c, err := s.loadCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountApps(ctx, repository.AppFilter{ClusterID: &c.ID})
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	confirmed := true
	done, err := s.store.CountApps(ctx, repository.AppFilter{ClusterID: &c.ID, Confirmed: &confirmed})
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return &ClusterStats{TotalApps: total, ConfirmedApps: done, UnconfirmedApps: total - done}, nil
}

// Export lists every cluster that has members and no unconfirmed member,
// labelled by canonical name (falling back to name).
func (s *Service) Export(ctx context.Context) ([]ExportEntry, error) {
	clusters, err := s.store.ListClusters(ctx)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	apps, err := s.store.ListApps(ctx, repository.AppFilter{})
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	members := map[string][]*models.AppName{}
	for _, a := range apps {
		if a.ClusterID != "" {
			members[a.ClusterID] = append(members[a.ClusterID], a)
		}
	}

	out := []ExportEntry{}
	for _, c := range clusters {
		list := members[c.ID]
		if len(list) == 0 {
			continue
		}
		names := make([]string, 0, len(list))
		complete := true
		for _, a := range list {
			if !a.Confirmed {
				complete = false
				break
			}
			names = append(names, a.Name)
		}
		if !complete {
			continue
		}
		label := c.CanonicalName
		if label == "" {
			label = c.Name
		}
		out = append(out, ExportEntry{Cluster: label, Apps: names})
	}
	return out, nil
}

// nonEmpty trims an optional field and rejects an explicit empty value.
func nonEmpty(v *string, field string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, apperr.Validation("Validation failed", apperr.FieldError{Field: field, Message: field + " must not be empty"})
	}
	return &t, nil
}
