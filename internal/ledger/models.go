package ledger

import (
	"strings"
	"time"
)

// Status is the lifecycle label stored on ledger rows.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDeleted   Status = "deleted"
	// StatusProcessed is the only status artifact rows carry.
	StatusProcessed Status = "processed"
)

var allStatuses = []Status{
	StatusPending,
	StatusCompleted,
	StatusFailed,
	StatusDeleted,
	StatusProcessed,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

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

// SourceRecord is one downloaded recording.
type SourceRecord struct {
	ID        int64
	Name      string
	LocalPath string
	Size      int64
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArtifactRecord is one file produced from a source recording.
type ArtifactRecord struct {
	ID         int64
	LocalPath  string
	SourceName string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Counts aggregates source records by terminal status.
type Counts struct {
	Completed int
	Failed    int
	Deleted   int
	Pending   int
}

// Total returns the number of source files that reached a reportable state.
func (c Counts) Total() int {
	return c.Completed + c.Failed + c.Deleted
}

// DatabaseHealth captures diagnostic information about the ledger database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	SourceCount      int
	ArtifactCount    int
	Error            string
}
