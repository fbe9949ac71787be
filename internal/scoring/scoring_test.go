package scoring

import (
	"testing"
	"time"

	"github.com/appdedupe/appdedupe/internal/models"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func TestLevel(t *testing.T) {
	cases := map[int]int{
		-5:    1,
		0:     1,
		99:    1,
		100:   2,
		399:   2,
		400:   3,
		900:   4,
		10000: 11,
	}
	for xp, want := range cases {
		require.Equal(t, want, Level(xp), "xp=%d", xp)
	}
}

func TestApply_FirstEverConfirmation(t *testing.T) {
	r := NewDayGatedStreak(time.UTC)
	s := r.Apply(models.ScoreState{}, Event{At: day, ConfirmationsToday: 1})

	require.Equal(t, 50, s.XP)
	require.Equal(t, 1, s.Streak)
	require.Equal(t, 1, s.Level)
	require.Equal(t, 1, s.DailyConfirmations)
	require.NotNil(t, s.LastActivity)
	require.True(t, s.LastActivity.Equal(day))
	require.True(t, s.LastDailyReset.Equal(StartOfDay(day, time.UTC)))
}

func TestApply_SecondConfirmationSameDayKeepsStreak(t *testing.T) {
	r := NewDayGatedStreak(time.UTC)
	s := r.Apply(models.ScoreState{}, Event{At: day, ConfirmationsToday: 1})
	s = r.Apply(s, Event{At: day.Add(time.Hour), ConfirmationsToday: 2})

	require.Equal(t, 100, s.XP)
	require.Equal(t, 1, s.Streak)
	require.Equal(t, 2, s.DailyConfirmations)
}

func TestApply_ActivityTodayBlocksSecondIncrement(t *testing.T) {
	r := NewDayGatedStreak(time.UTC)
	yesterday := day.AddDate(0, 0, -1)
	s := r.Apply(models.ScoreState{XP: 50, Streak: 1, LastActivity: &yesterday}, Event{At: day, ConfirmationsToday: 1})
	require.Equal(t, 2, s.Streak)
	require.Equal(t, 120, s.XP)

	// the day's confirmed rows are gone, so the count says "first" again
	s = r.Apply(s, Event{At: day.Add(time.Hour), ConfirmationsToday: 1})
	require.Equal(t, 2, s.Streak)
	require.Equal(t, 170, s.XP)
	require.Equal(t, 2, s.DailyConfirmations)
}

func TestApply_ConsecutiveDayAddsBonus(t *testing.T) {
	r := NewDayGatedStreak(time.UTC)
	s := r.Apply(models.ScoreState{}, Event{At: day, ConfirmationsToday: 1})
	s = r.Apply(s, Event{At: day.Add(2 * time.Hour), ConfirmationsToday: 2})

	next := day.AddDate(0, 0, 1)
	s = r.Apply(s, Event{At: next, ConfirmationsToday: 1})

	// 3 confirmations * 50 + streak 2 bonus of 20
	require.Equal(t, 170, s.XP)
	require.Equal(t, 2, s.Streak)
	require.Equal(t, 1, s.DailyConfirmations, "daily counter resets on a new calendar day")
	require.Equal(t, 2, s.Level)
}

func TestApply_MissedDayRestartsStreak(t *testing.T) {
	r := NewDayGatedStreak(time.UTC)
	last := day.AddDate(0, 0, -3)
	start := models.ScoreState{XP: 500, Streak: 4, LastActivity: &last}

	s := r.Apply(start, Event{At: day, ConfirmationsToday: 1})
	require.Equal(t, 1, s.Streak)
	require.Equal(t, 550, s.XP)
}

func TestApply_CalendarDayNotRollingWindow(t *testing.T) {
	r := NewDayGatedStreak(time.UTC)
	lateNight := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	s := r.Apply(models.ScoreState{}, Event{At: lateNight, ConfirmationsToday: 1})

	earlyMorning := time.Date(2026, 3, 11, 0, 10, 0, 0, time.UTC)
	s = r.Apply(s, Event{At: earlyMorning, ConfirmationsToday: 1})
	require.Equal(t, 2, s.Streak)
	require.Equal(t, 1, s.DailyConfirmations)
}

func TestApply_UsesConfiguredLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	r := NewDayGatedStreak(tokyo)
	// 16:00 UTC on the 10th is already the 11th in JST.
	first := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	second := time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)
	s := r.Apply(models.ScoreState{}, Event{At: first, ConfirmationsToday: 1})
	s = r.Apply(s, Event{At: second, ConfirmationsToday: 1})
	require.Equal(t, 2, s.Streak)
}

func TestDisplayStreak(t *testing.T) {
	require.Equal(t, 0, DisplayStreak(models.ScoreState{Streak: 3}, day, time.UTC))

	yesterday := day.AddDate(0, 0, -1)
	require.Equal(t, 3, DisplayStreak(models.ScoreState{Streak: 3, LastActivity: &yesterday}, day, time.UTC))

	stale := day.AddDate(0, 0, -2)
	require.Equal(t, 0, DisplayStreak(models.ScoreState{Streak: 3, LastActivity: &stale}, day, time.UTC))
}
