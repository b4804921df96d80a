package jobstore

import (
	"strings"
	"time"
)

type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Kind names what produced the job.
type Kind string

const (
	KindReview Kind = "monthly_review"
	KindDigest Kind = "digest"
	KindChat   Kind = "chat"
	KindAppend Kind = "report_append"
)

type Job struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Status     Status     `json:"status"`
	Channel    string     `json:"channel,omitempty"`
	UserID     string     `json:"user_id,omitempty"`
	Month      int        `json:"month,omitempty"`
	Streaming  bool       `json:"streaming,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Result     string     `json:"result,omitempty"`
}

func ParseStatus(raw string) (Status, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "":
		return "", true
	case string(StatusQueued):
		return StatusQueued, true
	case string(StatusRunning):
		return StatusRunning, true
	case string(StatusDone):
		return StatusDone, true
	case string(StatusFailed):
		return StatusFailed, true
	case string(StatusCanceled):
		return StatusCanceled, true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCanceled
}
