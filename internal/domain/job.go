package domain

import (
	"time"
)

// JobStatus represents the lifecycle state of a journaled task
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobRecord is the journal row for a task
type JobRecord struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	LocatorKey   string     `json:"locator_key" gorm:"not null;index"`
	ChatID       int64      `json:"chat_id" gorm:"index"`
	MessageID    int        `json:"message_id"`
	Status       JobStatus  `json:"status" gorm:"not null;index"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (JobRecord) TableName() string {
	return "jobs"
}

// NewJobRecord creates a queued journal row for a task
func NewJobRecord(task Task) *JobRecord {
	return &JobRecord{
		ID:         task.ID,
		LocatorKey: task.LocatorKey,
		ChatID:     task.Target.ChatID,
		MessageID:  task.Target.MessageID,
		Status:     JobQueued,
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  task.CreatedAt,
	}
}

// MarkProcessing marks the job as processing
func (j *JobRecord) MarkProcessing() {
	j.Status = JobProcessing
	now := time.Now()
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted marks the job as completed
func (j *JobRecord) MarkCompleted(artifactPath string) {
	j.Status = JobCompleted
	j.ArtifactPath = artifactPath
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkFailed marks the job as failed
func (j *JobRecord) MarkFailed(err error) {
	j.Status = JobFailed
	j.ErrorMessage = err.Error()
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// IsTerminal checks if the job is in a terminal state
func (j *JobRecord) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// ValidateStatus checks if a status filter is valid
func ValidateStatus(status JobStatus) bool {
	switch status {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// JobStats represents journal statistics
type JobStats struct {
	Total      int64 `json:"total"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
