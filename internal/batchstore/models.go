package batchstore

import (
	"time"
)

// Status represents the lifecycle of a batch or a stage run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusPartitioning Status = "partitioning"
	StatusRendering    Status = "rendering"
	StatusMeshing      Status = "meshing"
	StatusPacking      Status = "packing"
	StatusExporting    Status = "exporting"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// InterruptedReason is recorded on batches found running when the store is reopened.
const InterruptedReason = "batch interrupted before completion"

var processingStatuses = []Status{
	StatusPending,
	StatusPartitioning,
	StatusRendering,
	StatusMeshing,
	StatusPacking,
	StatusExporting,
}

// IsTerminal reports whether a batch in this status will not progress further.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Batch is one run of the bake pipeline.
type Batch struct {
	ID           string
	TablePath    string
	Status       Status
	Stage        string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns the wall time of a finished batch, or the time since creation.
func (b *Batch) Duration(now time.Time) time.Duration {
	end := b.FinishedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(b.CreatedAt)
}

// StageRun records one stage executed for one bake group.
type StageRun struct {
	ID           int64
	BatchID      string
	BakeGroup    string
	Stage        string
	RequestID    string
	Status       Status
	Counters     map[string]int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}
