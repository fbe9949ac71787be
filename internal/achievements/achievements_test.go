package achievements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func byID(badges []Badge) map[string]Badge {
	m := make(map[string]Badge, len(badges))
	for _, b := range badges {
		m[b.ID] = b
	}
	return m
}

func TestEvaluate_OrderIsFixed(t *testing.T) {
	got := Evaluate(Counts{}, time.Now())
	ids := make([]string, 0, len(got))
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	require.Equal(t, []string{"first_100", "halfway_there", "team_effort", "cluster_masters", "speed_demons", "perfection"}, ids)
}

func TestEvaluate_Predicates(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := Counts{
		TotalApps:       300,
		ConfirmedApps:   150,
		UnconfirmedApps: 150,
		TotalClusters:   12,
		ActiveUsers:     10,
		CompletionRate:  0.5,
	}
	m := byID(Evaluate(c, now))

	require.True(t, m["first_100"].Unlocked)
	require.EqualValues(t, 150, m["first_100"].Progress)
	require.Equal(t, "Team", m["first_100"].UnlockedBy)
	require.True(t, m["first_100"].UnlockedAt.Equal(now))

	require.True(t, m["halfway_there"].Unlocked)
	require.EqualValues(t, 50, m["halfway_there"].Progress)

	require.True(t, m["team_effort"].Unlocked)

	require.False(t, m["cluster_masters"].Unlocked)
	require.EqualValues(t, 12, m["cluster_masters"].Progress)
	require.Nil(t, m["cluster_masters"].UnlockedAt)
	require.Empty(t, m["cluster_masters"].UnlockedBy)

	require.False(t, m["speed_demons"].Unlocked)
	require.EqualValues(t, 0, m["speed_demons"].Progress)
	require.EqualValues(t, 50, m["speed_demons"].Total)

	require.False(t, m["perfection"].Unlocked)
	require.EqualValues(t, 150, m["perfection"].Progress)
	require.EqualValues(t, 300, m["perfection"].Total)
}

func TestEvaluate_PerfectionWhenNothingPending(t *testing.T) {
	m := byID(Evaluate(Counts{TotalApps: 4, ConfirmedApps: 4, CompletionRate: 1}, time.Now()))
	require.True(t, m["perfection"].Unlocked)
	require.EqualValues(t, 100, m["halfway_there"].Progress)
}
