// Package achievements evaluates the team badge catalog against aggregate counts.
package achievements

import (
	"math"
	"time"
)

// Counts are the team-wide aggregates the badges are evaluated against.
type Counts struct {
	TotalApps       int64
	ConfirmedApps   int64
	UnconfirmedApps int64
	TotalClusters   int64
	ActiveUsers     int64
	CompletionRate  float64
}

type Badge struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Unlocked    bool       `json:"unlocked"`
	Progress    int64      `json:"progress"`
	Total       int64      `json:"total"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
	UnlockedBy  string     `json:"unlockedBy,omitempty"`
}

type definition struct {
	id, name, description, icon string
	eval                        func(c Counts) (unlocked bool, progress, total int64)
}

var catalog = []definition{
	{"first_100", "First 100", "Team confirms 100 app names", "🎯", func(c Counts) (bool, int64, int64) {
		return c.ConfirmedApps >= 100, c.ConfirmedApps, 100
	}},
	{"halfway_there", "Halfway There", "Team confirms 50% of all apps", "🏆", func(c Counts) (bool, int64, int64) {
		return c.CompletionRate >= 0.5, int64(math.Round(c.CompletionRate * 100)), 50
	}},
	{"team_effort", "Team Effort", "10 team members contribute", "👥", func(c Counts) (bool, int64, int64) {
		return c.ActiveUsers >= 10, c.ActiveUsers, 10
	}},
	{"cluster_masters", "Cluster Masters", "Complete 20 clusters", "🔍", func(c Counts) (bool, int64, int64) {
		return c.TotalClusters >= 20, c.TotalClusters, 20
	}},
	// no per-day burst tracking exists, so this one never unlocks
	{"speed_demons", "Speed Demons", "Confirm 50 apps in one day", "⚡", func(c Counts) (bool, int64, int64) {
		return false, 0, 50
	}},
	{"perfection", "Perfection", "Complete all app confirmations", "🌟", func(c Counts) (bool, int64, int64) {
		return c.UnconfirmedApps == 0, c.ConfirmedApps, c.TotalApps
	}},
}

// Evaluate returns the badge catalog in fixed order. Unlock metadata is
// synthesized as now/"Team" for badges whose predicate currently holds; no
// unlock history is kept.
func Evaluate(c Counts, now time.Time) []Badge {
	out := make([]Badge, 0, len(catalog))
	for _, d := range catalog {
		unlocked, progress, total := d.eval(c)
		b := Badge{
			ID:          d.id,
			Name:        d.name,
			Description: d.description,
			Icon:        d.icon,
			Unlocked:    unlocked,
			Progress:    progress,
			Total:       total,
		}
		if unlocked {
			at := now
			b.UnlockedAt = &at
			b.UnlockedBy = "Team"
		}
		out = append(out, b)
	}
	return out
}
