package service

import (
	"context"
	"errors"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/appdedupe/appdedupe/internal/scoring"
	"github.com/appdedupe/appdedupe/pkg/logger"
	"github.com/appdedupe/appdedupe/pkg/metrics"
)

type ScoreSummary struct {
	XP     int `json:"xp"`
	Level  int `json:"level"`
	Streak int `json:"streak"`
}

type ConfirmResult struct {
	App     AppView      `json:"app"`
	User    ScoreSummary `json:"user"`
	Cluster *Ref         `json:"cluster"`
	// Awarded is the XP granted by this call; zero for a repeat confirmation.
	Awarded int `json:"xpAwarded"`
}

// Confirm marks app id as confirmed by actor and applies the scoring rule.
// The app write and the score write form one unit of work. Confirming an
// already confirmed app returns it unchanged and awards nothing.
func (s *Service) Confirm(ctx context.Context, id string, actor *models.User) (*ConfirmResult, error) {
	if actor == nil {
		return nil, apperr.Unauthorized("Please authenticate")
	}
	if !models.ValidID(id) {
		return nil, apperr.Validation("Invalid app id", apperr.FieldError{Field: "id", Message: "must be a valid id"})
	}

	var (
		app     *models.AppName
		user    *models.User
		changed bool
		before  int
	)
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if _, err = s.store.GetApp(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("App not found")
			}
			return apperr.Internal("Database error", err)
		}
		user, err = s.users.GetByID(ctx, actor.ID)
		if err != nil {
			return apperr.Internal("Database error", err)
		}
		if user == nil {
			return apperr.NotFound("User not found")
		}

		at := s.now()
		app, changed, err = s.store.MarkConfirmed(ctx, id, user.ID, at)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("App not found")
			}
			return apperr.Internal("Database error", err)
		}
		if !changed {
			return nil
		}

		today, err := s.store.CountConfirmedBySince(ctx, user.ID, scoring.StartOfDay(at, s.loc))
		if err != nil {
			return apperr.Internal("Failed to update score", err)
		}
		before = user.XP
		user.ScoreState = s.rule.Apply(user.ScoreState, scoring.Event{At: at, ConfirmationsToday: int(today)})
		if err := s.users.SaveScore(ctx, user.ID, user.ScoreState); err != nil {
			return apperr.Internal("Failed to update score", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &ConfirmResult{
		User: ScoreSummary{XP: user.XP, Level: scoring.Level(user.XP), Streak: user.Streak},
	}
	if changed {
		res.Awarded = user.XP - before
		metrics.Confirmations.WithLabelValues("confirmed").Inc()
		metrics.XPAwarded.Add(float64(res.Awarded))
		logger.Infof("app %s confirmed by %s (+%d xp, streak %d)", app.ID, user.ID, res.Awarded, user.Streak)
	} else {
		metrics.Confirmations.WithLabelValues("already_confirmed").Inc()
	}

	view, err := s.view(ctx, app)
	if err != nil {
		return nil, err
	}
	res.App = *view
	res.Cluster = view.Cluster
	return res, nil
}
