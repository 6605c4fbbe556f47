package domain

import (
	"context"
	"io"
	"time"
)

// Cache is the shared key-value store holding locators and extraction results
type Cache interface {
	// Get returns nil, nil when the key is missing or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ArtifactStore owns downloaded files on durable storage
type ArtifactStore interface {
	// StagingPath returns where a fetcher should write the artifact for key
	StagingPath(key string) string

	// Commit moves the staged file for key into the store and returns its path
	Commit(key string) (string, error)

	// Write stores the stream under key and returns its path
	Write(key string, r io.Reader) (string, error)

	// Path returns the path an artifact for key lives at
	Path(key string) string

	// Delete removes the artifact for key. A missing artifact is not an error.
	Delete(key string) error

	// Discard removes any staged data for key
	Discard(key string) error

	// Sweep removes artifacts and staged files older than maxAge
	Sweep(maxAge time.Duration) (int, error)
}

// ProgressFunc receives progress samples during a fetch
type ProgressFunc func(status ProgressStatus)

// Fetcher performs the long-running retrieval of a resource
type Fetcher interface {
	// Fetch downloads address into output, calling onProgress zero or more times
	Fetch(ctx context.Context, address, output string, onProgress ProgressFunc) error
}

// Extractor resolves a user-supplied URL into downloadable formats
type Extractor interface {
	ExtractInfo(ctx context.Context, url, service string) (*VideoInfo, error)
}

// Notifier delivers user-facing messages. Calls block until delivered.
type Notifier interface {
	// EditCaption replaces the caption of the target message
	EditCaption(ctx context.Context, target NotificationTarget, text string) error

	// SendMedia sends the artifact at path as a reply to the target message
	SendMedia(ctx context.Context, target NotificationTarget, path, caption string) error

	// SendQueuedAck marks the target message as queued
	SendQueuedAck(ctx context.Context, target NotificationTarget) error
}
