package database

import "time"

// Segment encode outcomes recorded for post-run auditing.
const (
	SegmentBuilt   = "built"
	SegmentReused  = "reused"
	SegmentSkipped = "skipped"
	SegmentFailed  = "failed"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one invocation of the combine pipeline.
type Run struct {
	ID         string
	Variant    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Dates      int
	Built      int
	Reused     int
	Skipped    int
	Error      string
}

// SegmentEncode records what happened to one segment during a run: built,
// reused from a previous run, skipped (with the reason), or failed.
type SegmentEncode struct {
	ID          int64
	RunID       string
	Date        string
	SegmentName string
	Status      string
	SkipReason  string
	AudioSource string
	Duration    float64
	OutputPath  string
	CreatedAt   time.Time
}

// DateOutput records one final per-date artifact.
type DateOutput struct {
	ID         int64
	RunID      string
	Date       string
	OutputPath string
	SizeBytes  int64
	UploadURL  string
	CreatedAt  time.Time
}

// Database is the run catalog interface
type Database interface {
	CreateRun(run Run) error
	FinishRun(id, status string, dates, built, reused, skipped int, errMsg string) error
	RecordSegmentEncode(enc SegmentEncode) error
	RecordDateOutput(out DateOutput) error
	UpdateDateOutputUpload(runID, date, url string) error
	ListSegmentEncodes(runID string) ([]SegmentEncode, error)
	ListDateOutputs(runID string) ([]DateOutput, error)
	Close() error
}
