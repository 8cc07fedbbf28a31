package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the lifecycle state of an optimization job
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"   // initial
	JobStatusCompleted JobStatus = "completed" // terminal
	JobStatusFailed    JobStatus = "failed"    // terminal
	JobStatusCancelled JobStatus = "cancelled" // terminal
)

// Terminal reports whether no further transition is possible
func (s JobStatus) Terminal() bool {
	return s != JobStatusRunning
}

// OptimizationJob is one run of the external placement solver
type OptimizationJob struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Algorithm         string         `gorm:"type:varchar(100);not null" json:"algorithm"`
	Parameters        datatypes.JSON `json:"parameters"`
	Objective         string         `gorm:"type:text" json:"objective,omitempty"`
	EstimatedDuration int            `gorm:"not null;default:300" json:"estimated_duration"` // seconds
	Status            JobStatus      `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt         time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt        *time.Time     `json:"finished_at,omitempty"`
	Result            datatypes.JSON `json:"result,omitempty"`
	Metrics           datatypes.JSON `json:"metrics,omitempty"`
	ExecutionSeconds  float64        `gorm:"not null;default:0" json:"execution_seconds"`
	ErrorLog          string         `gorm:"type:text" json:"error_log,omitempty"`
	CreatedBy         string         `gorm:"type:varchar(100)" json:"created_by,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	Recommendations []Recommendation `gorm:"foreignKey:JobID" json:"recommendations,omitempty"`
}

// TableName specifies the table name for OptimizationJob model
func (OptimizationJob) TableName() string {
	return "optimization_jobs"
}
