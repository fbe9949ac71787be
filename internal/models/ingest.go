package models

import "time"

type IngestStatus string

const (
	IngestSucceeded IngestStatus = "succeeded"
	IngestFailed    IngestStatus = "failed"
)

// SkippedRow records why one CSV data row produced nothing.
type SkippedRow struct {
	Row    int    `bson:"row" json:"row"`
	Reason string `bson:"reason" json:"reason"`
}

// IngestRun is the audit record of one CSV ingestion.
type IngestRun struct {
	ID          string       `bson:"_id" json:"id"`
	UploadedBy  string       `bson:"uploadedBy" json:"uploadedBy"`
	FileName    string       `bson:"fileName" json:"fileName"`
	ObjectKey   string       `bson:"objectKey,omitempty" json:"objectKey,omitempty"`
	RowsRead    int          `bson:"rowsRead" json:"rowsRead"`
	Skipped     []SkippedRow `bson:"skipped" json:"skipped"`
	Clusters    int          `bson:"clusters" json:"clusters"`
	Apps        int          `bson:"apps" json:"apps"`
	Status      IngestStatus `bson:"status" json:"status"`
	Error       string       `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt   time.Time    `bson:"startedAt" json:"startedAt"`
	CompletedAt time.Time    `bson:"completedAt" json:"completedAt"`
}
