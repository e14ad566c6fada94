package journal

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a journaled recording.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Recording is one journaled recording row.
type Recording struct {
	ID           int64
	RunID        string
	Filename     string
	Status       Status
	ErrorMessage string
	SubjectID    string
	PseudoMRN    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Run captures one pipeline execution and its outcome counts.
type Run struct {
	ID         string
	Mode       string
	StartedAt  time.Time
	FinishedAt *time.Time
	Discovered int
	Processed  int
	Failed     int
	Skipped    int
}
