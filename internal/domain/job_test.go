package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTask(t *testing.T) {
	target := NotificationTarget{ChatID: 42, MessageID: 7}

	task := NewTask("locator-1", target)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "locator-1", task.LocatorKey)
	assert.Equal(t, target, task.Target)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, "42/7", target.String())
}

func TestNewJobRecord(t *testing.T) {
	task := NewTask("locator-1", NotificationTarget{ChatID: 42, MessageID: 7})

	job := NewJobRecord(task)

	assert.Equal(t, task.ID, job.ID)
	assert.Equal(t, "locator-1", job.LocatorKey)
	assert.Equal(t, int64(42), job.ChatID)
	assert.Equal(t, 7, job.MessageID)
	assert.Equal(t, JobQueued, job.Status)
	assert.False(t, job.IsTerminal())
}

func TestJobRecord_Lifecycle(t *testing.T) {
	job := NewJobRecord(NewTask("k", NotificationTarget{}))

	job.MarkProcessing()
	assert.Equal(t, JobProcessing, job.Status)
	assert.NotNil(t, job.StartedAt)

	job.MarkCompleted("/artifacts/k")
	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, "/artifacts/k", job.ArtifactPath)
	assert.NotNil(t, job.CompletedAt)
	assert.True(t, job.IsTerminal())
}

func TestJobRecord_MarkFailed(t *testing.T) {
	job := NewJobRecord(NewTask("k", NotificationTarget{}))

	job.MarkFailed(errors.New("yt-dlp exited with 1"))

	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, "yt-dlp exited with 1", job.ErrorMessage)
	assert.True(t, job.IsTerminal())
}

func TestValidateStatus(t *testing.T) {
	assert.True(t, ValidateStatus(JobQueued))
	assert.True(t, ValidateStatus(JobFailed))
	assert.False(t, ValidateStatus("cancelled"))
}

func TestErrorClassification(t *testing.T) {
	resolution := fmt.Errorf("task: %w", &ResolutionError{Key: "k", Err: ErrLocatorExpired})
	fetch := &FetchError{Address: "https://cdn", Err: errors.New("403")}

	assert.True(t, IsResolutionError(resolution))
	assert.True(t, errors.Is(resolution, ErrLocatorExpired))
	assert.False(t, IsFetchError(resolution))

	assert.True(t, IsFetchError(fetch))
	assert.False(t, IsResolutionError(fetch))
	assert.Equal(t, "fetch failed: 403", fetch.Error())
}
