// Package domain provides domain models and business logic for the SRA Metadata Service.
package domain

// Database identifies the Entrez namespace an identifier belongs to.
// These values must match the database enum stored in srx_metadata.database.
type Database string

const (
	DatabaseSRA Database = "sra"
	DatabaseGDS Database = "gds"
)

// Valid reports whether d is a recognized Entrez database namespace.
func (d Database) Valid() bool {
	switch d {
	case DatabaseSRA, DatabaseGDS:
		return true
	default:
		return false
	}
}

// MetadataLevel identifies which extraction pass a workflow is in.
// A workflow starts at the primary level and advances to secondary exactly once.
type MetadataLevel string

const (
	LevelPrimary   MetadataLevel = "primary"
	LevelSecondary MetadataLevel = "secondary"
)

// Valid reports whether l is a recognized metadata level.
func (l MetadataLevel) Valid() bool {
	switch l {
	case LevelPrimary, LevelSecondary:
		return true
	default:
		return false
	}
}

// MaxAttempts returns the extraction retry budget for the level.
// Primary metadata gets two passes, secondary exactly one.
func (l MetadataLevel) MaxAttempts() int {
	if l == LevelSecondary {
		return 1
	}
	return 2
}

// Route is the router's verdict on the latest extraction pass.
// It is transient workflow state and is never persisted.
type Route string

const (
	// RouteContinue requests another evidence-collection pass.
	RouteContinue Route = "CONTINUE"
	// RouteStop accepts the extracted fields as-is.
	RouteStop Route = "STOP"
)

// JobStatus represents the lifecycle states of a submitted extraction batch.
// These values must match the database enum stored in extraction_jobs.status.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusPartial   JobStatus = "partial"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal returns true if the status represents a final state that will not change.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusPartial, JobStatusFailed:
		return true
	default:
		return false
	}
}

// ItemStatus represents the state of one accession within an extraction batch.
// These values must match the database enum stored in extraction_job_items.status.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusRunning   ItemStatus = "running"
	ItemStatusCompleted ItemStatus = "completed"
	ItemStatusSkipped   ItemStatus = "skipped"
	ItemStatusFailed    ItemStatus = "failed"
)
