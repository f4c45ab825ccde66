package domain

import "time"

// JobStatus is the lifecycle state of a collection run.
type JobStatus string

const (
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
)

// ScrapeJob is the audit record of one collection run against one source.
// Counters are filled in when the run completes.
type ScrapeJob struct {
	ID          string     `json:"id"`
	SourceID    string     `json:"source_id"`
	Area        string     `json:"area,omitempty"`
	Status      JobStatus  `json:"status"`
	Found       int        `json:"listings_found"`
	New         int        `json:"listings_new"`
	Updated     int        `json:"listings_updated"`
	Unchanged   int        `json:"listings_unchanged"`
	Rejected    int        `json:"listings_rejected"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
