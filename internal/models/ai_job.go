package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AiJob status values. A job is "in flight" while pending or running;
// succeeded and failed are terminal.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// AiJob represents one asynchronous AI review request for one idea.
// A partial unique index on idea_id (WHERE status IN (pending, running))
// guarantees at most one in-flight job per idea; see database.createIndexes.
type AiJob struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	IdeaID      string `gorm:"not null;index" json:"idea_id"`
	RequesterID string `gorm:"not null;index" json:"requester_id"`

	Status   string `gorm:"default:pending;index" json:"status"`
	Attempts int    `gorm:"default:0" json:"attempts"`

	LastError  string     `gorm:"type:text" json:"last_error"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set.
func (j *AiJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// InFlight reports whether the job still occupies the per-idea slot.
func (j *AiJob) InFlight() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}
