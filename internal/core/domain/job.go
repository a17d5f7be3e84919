package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("domain: not found")

// JobStatus is the lifecycle stage of an export job.
// Transitions are monotonic: pending → processing → {completed | failed}.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStateError is returned when an operation is attempted on a job in an
// incompatible state (e.g. cancelling a completed job). No state is mutated.
type JobStateError struct {
	JobID  string
	Status JobStatus
	Op     string
}

func (e JobStateError) Error() string {
	return fmt.Sprintf("job %s cannot be %s while %s", e.JobID, e.Op, e.Status)
}

// ExportJob is the mutable state machine instance for one export request.
type ExportJob struct {
	ID                string           `json:"id"`
	ProjectID         string           `json:"projectId"`
	UserID            string           `json:"userId"`
	Request           ExportRequest    `json:"request"`
	Status            JobStatus        `json:"status"`
	Progress          int              `json:"progress"`
	CurrentTrackLabel string           `json:"currentTrackLabel,omitempty"`
	IndividualFiles   []FileDescriptor `json:"individualFiles"`
	ZipLocation       string           `json:"zipLocation,omitempty"`
	ZipSize           int64            `json:"zipSize,omitempty"`
	TotalDuration     float64          `json:"totalDuration,omitempty"`
	TotalFileSize     int64            `json:"totalFileSize,omitempty"`
	ErrorMessage      string           `json:"errorMessage,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	StartedAt         *time.Time       `json:"startedAt,omitempty"`
	CompletedAt       *time.Time       `json:"completedAt,omitempty"`
}

// Transition moves the job to a new status, enforcing monotonic ordering.
// A job never re-enters pending and terminal states are frozen.
func (j *ExportJob) Transition(to JobStatus) error {
	switch {
	case j.Status == to:
		return nil
	case j.Status.Terminal():
		return JobStateError{JobID: j.ID, Status: j.Status, Op: "transitioned"}
	case to == JobPending:
		return JobStateError{JobID: j.ID, Status: j.Status, Op: "reset to pending"}
	case j.Status == JobPending && to == JobCompleted:
		return JobStateError{JobID: j.ID, Status: j.Status, Op: "completed without processing"}
	}
	j.Status = to
	return nil
}

// AdvanceProgress raises progress to p, clamped to [0,100]. Progress is
// monotonically non-decreasing while the job is processing; lower values
// are ignored rather than rejected so callers can report coarse estimates.
func (j *ExportJob) AdvanceProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if j.Status == JobProcessing && p < j.Progress {
		return
	}
	j.Progress = p
}
