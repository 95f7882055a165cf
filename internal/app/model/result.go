package model

import (
	"time"
)

// Segment is one time-aligned piece of a transcript.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the persisted transcript of a completed job. Immutable once
// written; saving a new result for the same job replaces the previous one in
// a single transaction.
type Result struct {
	ID           int64     `json:"id" db:"id"`
	JobID        string    `json:"job_id" db:"job_id"`
	Text         string    `json:"text" db:"text"`
	Language     string    `json:"language" db:"language"`
	SegmentCount int       `json:"segment_count" db:"segment_count"`
	Segments     []Segment `json:"segments" db:"segments"`
	ArtifactPath *string   `json:"artifact_path" db:"artifact_path"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SearchHit is one ranked full-text match with a highlighted snippet.
type SearchHit struct {
	JobID     string    `json:"job_id"`
	ResultID  int64     `json:"result_id"`
	Snippet   string    `json:"snippet"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}
