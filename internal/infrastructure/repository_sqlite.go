package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/vidgrab/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// filterColumns lists the columns FindAll accepts as filters
var filterColumns = map[string]bool{
	"status":      true,
	"chat_id":     true,
	"locator_key": true,
}

// SQLiteJobRepository implements JobRepository using SQLite
type SQLiteJobRepository struct {
	db *gorm.DB
}

// NewSQLiteJobRepository opens (or creates) the journal database
func NewSQLiteJobRepository(dbPath string) (*SQLiteJobRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteJobRepository{db: db}, nil
}

// Create creates a new job record
func (r *SQLiteJobRepository) Create(job *domain.JobRecord) error {
	return r.db.Create(job).Error
}

// Update updates an existing job record
func (r *SQLiteJobRepository) Update(job *domain.JobRecord) error {
	return r.db.Save(job).Error
}

// FindByID finds a job record by ID. Returns nil, nil when it does not exist.
func (r *SQLiteJobRepository) FindByID(id string) (*domain.JobRecord, error) {
	var job domain.JobRecord
	err := r.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindAll finds job records with optional filters, newest first.
// A limit of zero or less returns every match.
func (r *SQLiteJobRepository) FindAll(filters map[string]interface{}, limit int) ([]*domain.JobRecord, error) {
	var jobs []*domain.JobRecord
	query := r.db

	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// GetStats returns journal statistics
func (r *SQLiteJobRepository) GetStats() (*domain.JobStats, error) {
	stats := &domain.JobStats{}

	if err := r.db.Model(&domain.JobRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.JobStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.JobRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.JobQueued:
			stats.Queued = sc.Count
		case domain.JobProcessing:
			stats.Processing = sc.Count
		case domain.JobCompleted:
			stats.Completed = sc.Count
		case domain.JobFailed:
			stats.Failed = sc.Count
		}
	}

	return stats, nil
}

// FailInterrupted marks jobs left queued or processing by a previous run as
// failed. The in-memory queue does not survive a restart.
func (r *SQLiteJobRepository) FailInterrupted() (int64, error) {
	now := time.Now()
	result := r.db.Model(&domain.JobRecord{}).
		Where("status IN ?", []domain.JobStatus{domain.JobQueued, domain.JobProcessing}).
		Updates(map[string]interface{}{
			"status":        domain.JobFailed,
			"error_message": "interrupted by restart",
			"completed_at":  now,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

// Close closes the database connection
func (r *SQLiteJobRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
