// Package stats computes the read-side projections of the dashboard: team
// totals, the recent activity feed, team achievements and the leaderboard.
// Nothing here is stored; every call recomputes from the base collections.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/appdedupe/appdedupe/internal/achievements"
	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/internal/scoring"
)

const (
	recentActivityLimit = 10
	activeWindow        = 7 * 24 * time.Hour
	unknownUser         = "Unknown User"
)

// UserStore is the slice of the user repository stats reads.
type UserStore interface {
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

type Service struct {
	store repository.Store
	users UserStore
	loc   *time.Location
	now   func() time.Time
}

func New(store repository.Store, users UserStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, users: users, loc: loc, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type Activity struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

type TeamStats struct {
	TotalApps            int64                `json:"totalApps"`
	TotalConfirmed       int64                `json:"totalConfirmed"`
	UnconfirmedApps      int64                `json:"unconfirmedApps"`
	TotalClusters        int64                `json:"totalClusters"`
	TotalUsers           int64                `json:"totalUsers"`
	ActiveUsers          int64                `json:"activeUsers"`
	AverageConfirmations float64              `json:"averageConfirmations"`
	CompletionRate       float64              `json:"completionRate"`
	TeamAchievements     []achievements.Badge `json:"teamAchievements"`
	RecentActivity       []Activity           `json:"recentActivity"`
}

// AdminStats is the catalog summary shown to administrators. PendingReviews
// mirrors UnconfirmedApps.
type AdminStats struct {
	TotalApps       int64 `json:"totalApps"`
	ConfirmedApps   int64 `json:"confirmedApps"`
	UnconfirmedApps int64 `json:"unconfirmedApps"`
	PendingReviews  int64 `json:"pendingReviews"`
}

// Dashboard is the caller's view: catalog totals, their own score and the
// team block.
type Dashboard struct {
	AdminStats
	TotalClusters int64     `json:"totalClusters"`
	Streak        int       `json:"streak"`
	XP            int       `json:"xp"`
	Level         int       `json:"level"`
	TeamStats     TeamStats `json:"teamStats"`
}

type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Count  int64  `json:"count"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
}

type totals struct {
	apps, confirmed, clusters, users, active int64
}

func (t totals) completionRate() float64 {
	if t.apps == 0 {
		return 0
	}
	return float64(t.confirmed) / float64(t.apps)
}

func (t totals) achievementCounts() achievements.Counts {
	return achievements.Counts{
		TotalApps:       t.apps,
		ConfirmedApps:   t.confirmed,
		UnconfirmedApps: t.apps - t.confirmed,
		TotalClusters:   t.clusters,
		ActiveUsers:     t.active,
		CompletionRate:  t.completionRate(),
	}
}

func (s *Service) totals(ctx context.Context, withUsers bool) (totals, error) {
	var t totals
	var err error
	if t.apps, err = s.store.CountApps(ctx, repository.AppFilter{}); err != nil {
		return t, apperr.Internal("Database error", err)
	}
	if t.confirmed, err = s.store.CountApps(ctx, repository.Confirmed); err != nil {
		return t, apperr.Internal("Database error", err)
	}
	if t.clusters, err = s.store.CountClusters(ctx); err != nil {
		return t, apperr.Internal("Database error", err)
	}
	if !withUsers {
		return t, nil
	}
	if t.users, err = s.users.Count(ctx); err != nil {
		return t, apperr.Internal("Database error", err)
	}
	if t.active, err = s.users.CountActiveSince(ctx, s.now().Add(-activeWindow)); err != nil {
		return t, apperr.Internal("Database error", err)
	}
	return t, nil
}

func (s *Service) Admin(ctx context.Context) (*AdminStats, error) {
	t, err := s.totals(ctx, false)
	if err != nil {
		return nil, err
	}
	out := adminStats(t)
	return &out, nil
}

func adminStats(t totals) AdminStats {
	return AdminStats{
		TotalApps:       t.apps,
		ConfirmedApps:   t.confirmed,
		UnconfirmedApps: t.apps - t.confirmed,
		PendingReviews:  t.apps - t.confirmed,
	}
}

// Team returns the team block of the dashboard.
func (s *Service) Team(ctx context.Context) (*TeamStats, error) {
	t, err := s.totals(ctx, true)
	if err != nil {
		return nil, err
	}
	return s.team(ctx, t)
}

func (s *Service) team(ctx context.Context, t totals) (*TeamStats, error) {
	recent, err := s.RecentActivity(ctx)
	if err != nil {
		return nil, err
	}
	var avg float64
	if t.users > 0 {
		avg = float64(t.confirmed) / float64(t.users)
	}
	return &TeamStats{
		TotalApps:            t.apps,
		TotalConfirmed:       t.confirmed,
		UnconfirmedApps:      t.apps - t.confirmed,
		TotalClusters:        t.clusters,
		TotalUsers:           t.users,
		ActiveUsers:          t.active,
		AverageConfirmations: avg,
		CompletionRate:       t.completionRate(),
		TeamAchievements:     achievements.Evaluate(t.achievementCounts(), s.now()),
		RecentActivity:       recent,
	}, nil
}

// Dashboard combines catalog totals, the team block and u's own score.
// The streak shown is zero once u has missed a whole day.
func (s *Service) Dashboard(ctx context.Context, u *models.User) (*Dashboard, error) {
	if u == nil {
		return nil, apperr.Unauthorized("Please authenticate")
	}
	t, err := s.totals(ctx, true)
	if err != nil {
		return nil, err
	}
	team, err := s.team(ctx, t)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		AdminStats:    adminStats(t),
		TotalClusters: t.clusters,
		Streak:        scoring.DisplayStreak(u.ScoreState, s.now(), s.loc),
		XP:            u.XP,
		Level:         scoring.Level(u.XP),
		TeamStats:     *team,
	}, nil
}

func (s *Service) Achievements(ctx context.Context) ([]achievements.Badge, error) {
	t, err := s.totals(ctx, true)
	if err != nil {
		return nil, err
	}
	return achievements.Evaluate(t.achievementCounts(), s.now()), nil
}

// RecentActivity lists the latest confirmations, newest first.
func (s *Service) RecentActivity(ctx context.Context) ([]Activity, error) {
	apps, err := s.store.RecentlyConfirmed(ctx, recentActivityLimit)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		if a.ConfirmedBy != "" {
			ids = append(ids, a.ConfirmedBy)
		}
	}
	byID, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(apps))
	for _, a := range apps {
		name := unknownUser
		if u, ok := byID[a.ConfirmedBy]; ok && u.Name != "" {
			name = u.Name
		}
		out = append(out, Activity{
			UserID:    a.ConfirmedBy,
			UserName:  name,
			Action:    "confirmed",
			Timestamp: a.UpdatedAt,
			Details:   `"` + a.Name + `"`,
		})
	}
	return out, nil
}

// Leaderboard ranks users by confirmed app names, highest first. Ties go to
// name then id; users with no confirmations or no account are left out.
func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	counts, err := s.store.ConfirmationsByUser(ctx)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		if c.Count > 0 {
			ids = append(ids, c.UserID)
		}
	}
	byID, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, 0, len(ids))
	for _, c := range counts {
		u, ok := byID[c.UserID]
		if c.Count <= 0 || !ok {
			continue
		}
		out = append(out, LeaderboardEntry{
			UserID: u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Count:  c.Count,
			XP:     u.XP,
			Level:  scoring.Level(u.XP),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Service) usersByID(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	list, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("Database error", err)
	}
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}
