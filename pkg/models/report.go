package models

import "time"

// Status is the terminal state of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Stage is a step of the run state machine.
type Stage string

const (
	StageFetching   Stage = "fetching"
	StageValidating Stage = "validating"
	StageWriting    Stage = "writing"
	StagePublishing Stage = "publishing"
	StageDone       Stage = "done"
)

// RunReport is the outcome of one run. It is built by the orchestrator and
// not modified after it is returned.
type RunReport struct {
	RunID         string        `json:"run_id,omitempty"`
	Unit          WorkUnit      `json:"work_unit"`
	Status        Status        `json:"status"`
	Stage         Stage         `json:"stage"`
	RowsRead      int64         `json:"rows_read"`
	RowsWritten   int64         `json:"rows_written"`
	RowsDropped   int64         `json:"rows_dropped"`
	Drops         DropStats     `json:"drops"`
	OutputPaths   []string      `json:"output_paths"`
	PublishedURIs []string      `json:"published_uris,omitempty"`
	CacheHit      bool          `json:"cache_hit"`
	SourcePath    string        `json:"source_path,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	// Timings holds the wall time spent in each stage that ran.
	Timings   map[Stage]time.Duration `json:"timings_ns,omitempty"`
	Error     string                  `json:"error,omitempty"`
	ErrorKind string                  `json:"error_kind,omitempty"`

	// Err is the typed cause of a failed run.
	Err error `json:"-"`
}

// Succeeded reports whether the run reached Done.
func (r *RunReport) Succeeded() bool {
	return r != nil && r.Status == StatusSucceeded
}
