package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appdedupe/appdedupe/internal/models"
)

// MemoryRepository is the in-process UserRepository.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]*models.User{}, byEmail: map[string]string{}}
}

func (r *MemoryRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prepareNew(u)
	if _, taken := r.byEmail[u.Email]; taken {
		return ErrEmailTaken
	}
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[models.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryRepository) UpsertByEmail(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := models.NormalizeEmail(u.Email)
	if id, ok := r.byEmail[email]; ok {
		existing := r.byID[id]
		existing.Sub = u.Sub
		existing.UpdatedAt = time.Now().UTC()
		cp := *existing
		return &cp, nil
	}
	prepareNew(u)
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[u.Email] = u.ID
	out := cp
	return &out, nil
}

func (r *MemoryRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Role = role
		u.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) SaveScore(ctx context.Context, id string, s models.ScoreState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return errors.New("user not found")
	}
	u.ScoreState = s
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*models.User{}
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}

func (r *MemoryRepository) CountActiveSince(ctx context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.byID {
		if u.LastActivity != nil && !u.LastActivity.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = map[string]*models.User{}
	r.byEmail = map[string]string{}
	return nil
}
