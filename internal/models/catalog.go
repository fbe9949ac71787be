package models

import "time"

// Cluster groups the name variants of one canonical application.
type Cluster struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	Name          string    `bson:"name" json:"name"`
	CanonicalName string    `bson:"canonicalName" json:"canonicalName"`
	Description   string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedBy     string    `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AppName is one literal application name string awaiting or holding confirmation.
// ClusterID is empty for unassigned names; ConfirmedBy is set iff Confirmed.
type AppName struct {
	ID            string     `bson:"_id,omitempty" json:"id"`
	Name          string     `bson:"name" json:"name"`
	CanonicalName string     `bson:"canonicalName" json:"canonicalName"`
	ClusterID     string     `bson:"cluster,omitempty" json:"cluster,omitempty"`
	Confirmed     bool       `bson:"confirmed" json:"confirmed"`
	ConfirmedBy   string     `bson:"confirmedBy,omitempty" json:"confirmedBy,omitempty"`
	ConfirmedAt   *time.Time `bson:"confirmedAt,omitempty" json:"confirmedAt,omitempty"`
	Notes         string     `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedBy     string     `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updatedAt"`
}
