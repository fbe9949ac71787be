package service

import (
	"context"
	"errors"
	"strings"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/models"
)

type CreateAppInput struct {
	Name          string
	ClusterID     string
	CanonicalName string
	Notes         string
}

// AppPatch carries the editable fields. A non-nil empty ClusterID unassigns.
type AppPatch struct {
	Name      *string
	ClusterID *string
	Notes     *string
}

func (s *Service) ListApps(ctx context.Context, f repository.AppFilter) ([]AppView, error) {
	apps, err := s.store.ListApps(ctx, f)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return s.populate(ctx, apps)
}

func (s *Service) GetApp(ctx context.Context, id string) (*AppView, error) {
	a, err := s.loadApp(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, a)
}

func (s *Service) loadApp(ctx context.Context, id string) (*models.AppName, error) {
	if !models.ValidID(id) {
		return nil, apperr.Validation("Invalid app id", apperr.FieldError{Field: "id", Message: "must be a valid id"})
	}
	a, err := s.store.GetApp(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("App not found")
	}
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return a, nil
}

// resolveCluster checks an optional cluster reference.
func (s *Service) resolveCluster(ctx context.Context, id string) (*models.Cluster, error) {
	if id == "" {
		return nil, nil
	}
	if !models.ValidID(id) {
		return nil, apperr.Validation("Invalid cluster id", apperr.FieldError{Field: "cluster", Message: "must be a valid id"})
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

// CreateApp adds one unconfirmed app name. canonicalName defaults to the
// cluster's canonical name, then to the name itself.
func (s *Service) CreateApp(ctx context.Context, in CreateAppInput, actor *models.User) (*AppView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("Validation failed", apperr.FieldError{Field: "name", Message: "name is required"})
	}
	cluster, err := s.resolveCluster(ctx, strings.TrimSpace(in.ClusterID))
	if err != nil {
		return nil, err
	}
	canonical := strings.TrimSpace(in.CanonicalName)
	if canonical == "" && cluster != nil {
		canonical = cluster.CanonicalName
	}
	if canonical == "" {
		canonical = name
	}
	a := &models.AppName{
		Name:          name,
		CanonicalName: canonical,
		Notes:         in.Notes,
	}
	if cluster != nil {
		a.ClusterID = cluster.ID
	}
	if actor != nil {
		a.CreatedBy = actor.ID
	}
	if err := s.store.CreateApp(ctx, a); err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return s.view(ctx, a)
}

// UpdateApp edits name, cluster or notes regardless of confirmation state.
func (s *Service) UpdateApp(ctx context.Context, id string, p AppPatch) (*AppView, error) {
	if _, err := s.loadApp(ctx, id); err != nil {
		return nil, err
	}
	upd := repository.AppUpdate{Notes: p.Notes}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.Validation("Validation failed", apperr.FieldError{Field: "name", Message: "name must not be empty"})
		}
		upd.Name = &name
	}
	if p.ClusterID != nil {
		clusterID := strings.TrimSpace(*p.ClusterID)
		if _, err := s.resolveCluster(ctx, clusterID); err != nil {
			return nil, err
		}
		upd.ClusterID = &clusterID
	}
	a, err := s.store.UpdateApp(ctx, id, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("App not found")
	}
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	return s.view(ctx, a)
}
