package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ScoreState is the gamification part of a user record.
type ScoreState struct {
	XP                 int        `bson:"xp" json:"xp"`
	Level              int        `bson:"level" json:"level"`
	Streak             int        `bson:"streak" json:"streak"`
	LastActivity       *time.Time `bson:"lastActivity" json:"lastActivity"`
	DailyConfirmations int        `bson:"dailyConfirmations" json:"dailyConfirmations"`
	LastDailyReset     *time.Time `bson:"lastDailyReset" json:"lastDailyReset"`
}

// UnlockedAchievement is a per-user badge record.
type UnlockedAchievement struct {
	ID         string    `bson:"id" json:"id"`
	UnlockedAt time.Time `bson:"unlockedAt" json:"unlockedAt"`
}

// User represents an application user
type User struct {
	ID           string                `bson:"_id,omitempty" json:"id"`
	Sub          string                `bson:"sub,omitempty" json:"-"` // OIDC subject for SSO-created accounts
	Email        string                `bson:"email" json:"email"`
	Name         string                `bson:"name" json:"name"`
	PasswordHash string                `bson:"password,omitempty" json:"-"`
	Role         Role                  `bson:"role" json:"role"`
	ScoreState   `bson:",inline"`
	Achievements []UnlockedAchievement `bson:"achievements" json:"achievements"`
	CreatedAt    time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time             `bson:"updatedAt" json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
