package domain

// JobRepository defines the interface for job journal persistence
type JobRepository interface {
	// Create creates a new job record
	Create(job *JobRecord) error

	// Update updates an existing job record
	Update(job *JobRecord) error

	// FindByID finds a job record by ID
	FindByID(id string) (*JobRecord, error)

	// FindAll finds job records with optional filters, newest first
	FindAll(filters map[string]interface{}, limit int) ([]*JobRecord, error)

	// GetStats returns journal statistics
	GetStats() (*JobStats, error)
}
