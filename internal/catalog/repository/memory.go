package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/appdedupe/appdedupe/internal/models"
)

// MemoryRepo is an in-memory Store used when no MongoDB is configured and in
// unit tests. Records are copied in and out so callers never alias state.
type MemoryRepo struct {
	mu       sync.RWMutex
	clusters map[string]*models.Cluster
	apps     map[string]*models.AppName
	order    []string // app ids in insertion order
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		clusters: make(map[string]*models.Cluster),
		apps:     make(map[string]*models.AppName),
	}
}

func (m *MemoryRepo) CreateCluster(ctx context.Context, c *models.Cluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(c.Name, "") {
		return ErrDuplicateName
	}
	stampCluster(c)
	cp := *c
	m.clusters[c.ID] = &cp
	return nil
}

// nameTaken reports whether a cluster other than exceptID uses name.
func (m *MemoryRepo) nameTaken(name, exceptID string) bool {
	for id, c := range m.clusters {
		if id != exceptID && c.Name == name {
			return true
		}
	}
	return false
}

func (m *MemoryRepo) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clusters[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryRepo) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Cluster, 0, len(m.clusters))
	for _, c := range m.clusters {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryRepo) UpdateCluster(ctx context.Context, id string, u ClusterUpdate) (*models.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clusters[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Name != nil && m.nameTaken(*u.Name, id) {
		return nil, ErrDuplicateName
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.CanonicalName != nil {
		c.CanonicalName = *u.CanonicalName
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (m *MemoryRepo) CountClusters(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.clusters)), nil
}

func (m *MemoryRepo) CreateApp(ctx context.Context, a *models.AppName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertApp(a)
	return nil
}

func (m *MemoryRepo) insertApp(a *models.AppName) {
	stampApp(a)
	cp := *a
	if _, exists := m.apps[a.ID]; !exists {
		m.order = append(m.order, a.ID)
	}
	m.apps[a.ID] = &cp
}

func (m *MemoryRepo) GetApp(ctx context.Context, id string) (*models.AppName, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func matches(a *models.AppName, f AppFilter) bool {
	if f.Confirmed != nil && a.Confirmed != *f.Confirmed {
		return false
	}
	if f.ClusterID != nil && a.ClusterID != *f.ClusterID {
		return false
	}
	return true
}

func (m *MemoryRepo) ListApps(ctx context.Context, f AppFilter) ([]*models.AppName, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.AppName{}
	for _, id := range m.order {
		a := m.apps[id]
		if matches(a, f) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryRepo) UpdateApp(ctx context.Context, id string, u AppUpdate) (*models.AppName, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.ClusterID != nil {
		a.ClusterID = *u.ClusterID
	}
	if u.Notes != nil {
		a.Notes = *u.Notes
	}
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

func (m *MemoryRepo) MarkConfirmed(ctx context.Context, id, userID string, at time.Time) (*models.AppName, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if a.Confirmed {
		cp := *a
		return &cp, false, nil
	}
	a.Confirmed = true
	a.ConfirmedBy = userID
	confirmedAt := at
	a.ConfirmedAt = &confirmedAt
	a.UpdatedAt = at
	cp := *a
	return &cp, true, nil
}

func (m *MemoryRepo) CountApps(ctx context.Context, f AppFilter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, a := range m.apps {
		if matches(a, f) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) CountConfirmedBySince(ctx context.Context, userID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, a := range m.apps {
		if a.Confirmed && a.ConfirmedBy == userID && a.ConfirmedAt != nil && !a.ConfirmedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) RecentlyConfirmed(ctx context.Context, limit int) ([]*models.AppName, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.AppName{}
	for _, id := range m.order {
		if a := m.apps[id]; a.Confirmed {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) CountsByCluster(ctx context.Context) (map[string]Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Counts)
	for _, a := range m.apps {
		if a.ClusterID == "" {
			continue
		}
		c := out[a.ClusterID]
		c.Total++
		if a.Confirmed {
			c.Confirmed++
		}
		out[a.ClusterID] = c
	}
	return out, nil
}

func (m *MemoryRepo) ConfirmationsByUser(ctx context.Context) ([]UserCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int64)
	for _, a := range m.apps {
		if a.Confirmed && a.ConfirmedBy != "" {
			counts[a.ConfirmedBy]++
		}
	}
	out := make([]UserCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, UserCount{UserID: id, Count: n})
	}
	return out, nil
}

func (m *MemoryRepo) ReplaceAll(ctx context.Context, clusters []*models.Cluster, apps []*models.AppName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters = make(map[string]*models.Cluster, len(clusters))
	m.apps = make(map[string]*models.AppName, len(apps))
	m.order = nil
	for _, c := range clusters {
		stampCluster(c)
		cp := *c
		m.clusters[c.ID] = &cp
	}
	for _, a := range apps {
		m.insertApp(a)
	}
	return nil
}

func stampCluster(c *models.Cluster) {
	if c.ID == "" {
		c.ID = models.NewID()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
}

func stampApp(a *models.AppName) {
	if a.ID == "" {
		a.ID = models.NewID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
}
