// Package scoring turns confirmation events into user score state.
package scoring

import (
	"math"
	"time"

	"github.com/appdedupe/appdedupe/internal/models"
)

const (
	DefaultBaseXP            = 50
	DefaultBonusPerStreakDay = 10
)

// Event is one confirmation by a user. ConfirmationsToday counts the user's
// confirmations since the start of the local day, this one included.
type Event struct {
	At                 time.Time
	ConfirmationsToday int
}

// Rule maps the current score state and an event to the next state. Rules are
// pure so that the scoring policy is decided in one place.
type Rule interface {
	Apply(s models.ScoreState, ev Event) models.ScoreState
}

// DayGatedStreak awards BaseXP per confirmation. The first confirmation of a
// day (by row count and by LastActivity) extends the streak (or restarts it at 1 after a missed day) and, once
// the streak exceeds one day, adds streak*BonusPerStreakDay.
type DayGatedStreak struct {
	BaseXP            int
	BonusPerStreakDay int
	Location          *time.Location
}

func NewDayGatedStreak(loc *time.Location) DayGatedStreak {
	return DayGatedStreak{BaseXP: DefaultBaseXP, BonusPerStreakDay: DefaultBonusPerStreakDay, Location: loc}
}

func (r DayGatedStreak) Apply(s models.ScoreState, ev Event) models.ScoreState {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	today := StartOfDay(ev.At, loc)

	// A confirmation already recorded today on the score state wins over the
	// row count, which a catalog replacement can reset mid-day.
	activeToday := s.LastActivity != nil && !s.LastActivity.Before(today)

	if s.LastDailyReset == nil || s.LastDailyReset.Before(today) {
		s.DailyConfirmations = 0
		reset := today
		s.LastDailyReset = &reset
	}
	s.DailyConfirmations++
	s.XP += r.BaseXP

	if ev.ConfirmationsToday <= 1 && !activeToday {
		yesterday := today.AddDate(0, 0, -1)
		if s.LastActivity != nil && !s.LastActivity.Before(yesterday) {
			s.Streak++
		} else {
			s.Streak = 1
		}
		if s.Streak > 1 {
			s.XP += s.Streak * r.BonusPerStreakDay
		}
	}

	at := ev.At
	s.LastActivity = &at
	s.Level = Level(s.XP)
	return s
}

// Level is the tier derived from xp: floor(sqrt(xp/100)) + 1.
func Level(xp int) int {
	if xp <= 0 {
		return 1
	}
	return int(math.Floor(math.Sqrt(float64(xp)/100))) + 1
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DisplayStreak is the streak still alive at now: zero once a whole calendar
// day has passed without a confirmation.
func DisplayStreak(s models.ScoreState, now time.Time, loc *time.Location) int {
	if s.LastActivity == nil {
		return 0
	}
	yesterday := StartOfDay(now, loc).AddDate(0, 0, -1)
	if s.LastActivity.Before(yesterday) {
		return 0
	}
	return s.Streak
}
