package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationTarget identifies the chat message a task reports into
type NotificationTarget struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// String implements fmt.Stringer
func (t NotificationTarget) String() string {
	return fmt.Sprintf("%d/%d", t.ChatID, t.MessageID)
}

// Task is one queued download request. It is never mutated after Submit.
type Task struct {
	ID         string             `json:"id"`
	LocatorKey string             `json:"locator_key"`
	Target     NotificationTarget `json:"target"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewTask creates a new task for a locator key
func NewTask(locatorKey string, target NotificationTarget) Task {
	return Task{
		ID:         uuid.New().String(),
		LocatorKey: locatorKey,
		Target:     target,
		CreatedAt:  time.Now(),
	}
}

// ProgressStatus is a single progress sample emitted by a fetcher
type ProgressStatus struct {
	Elapsed float64 // seconds since the download started
	Percent string  // e.g. " 42.0%"
	ETA     string  // e.g. "00:13"
}

// DeletionJob is a pending one-shot artifact deletion
type DeletionJob struct {
	ArtifactKey string    `json:"artifact_key"`
	FireAt      time.Time `json:"fire_at"`
}
