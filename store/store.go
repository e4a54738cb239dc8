// Package store persists validation issues with gorm. Rows are only ever
// inserted; a job's issues are read back by job id.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SamuelRCrider/dqe-go/core"
)

const insertBatchSize = 200

// IssueRecord is the persisted form of core.IssueRow
type IssueRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	JobID        string    `gorm:"type:varchar(64);index;not null" json:"job_id"`
	RecordIndex  int       `gorm:"not null" json:"record_index"`
	RecordID     string    `gorm:"type:varchar(255)" json:"record_id"`
	FieldName    string    `gorm:"type:varchar(255)" json:"field_name"`
	ErrorType    string    `gorm:"type:varchar(32);index" json:"error_type"`
	ErrorMessage string    `gorm:"type:text" json:"error_message"`
	Suggestion   string    `gorm:"type:text" json:"suggestion"`
	Severity     string    `gorm:"type:varchar(16)" json:"severity"`
	AIGenerated  bool      `gorm:"default:false" json:"ai_generated"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName pins the table name
func (IssueRecord) TableName() string { return "validation_issues" }

// Store writes issue rows to a database
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the schema. DSNs starting with
// "postgres://", "postgresql://" or containing "host=" use postgres;
// anything else is a sqlite path (":memory:" included).
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open issue store: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&IssueRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate issue store: %w", err)
	}
	return &Store{db: db}, nil
}

func dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// WriteIssues inserts rows; existing rows are never updated
func (s *Store) WriteIssues(ctx context.Context, rows []core.IssueRow) error {
	if len(rows) == 0 {
		return nil
	}

	records := make([]IssueRecord, len(rows))
	for i, row := range rows {
		records[i] = IssueRecord{
			JobID:        row.JobID,
			RecordIndex:  row.RecordIndex,
			RecordID:     row.RecordID,
			FieldName:    row.FieldName,
			ErrorType:    row.ErrorType,
			ErrorMessage: row.ErrorMessage,
			Suggestion:   row.Suggestion,
			Severity:     row.Severity,
			AIGenerated:  row.AIGenerated,
			CreatedAt:    row.CreatedAt,
		}
	}

	if err := s.db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert %d issue rows: %w", len(records), err)
	}
	return nil
}

// ListIssues returns the issues of a job ordered by record index
func (s *Store) ListIssues(ctx context.Context, jobID string) ([]IssueRecord, error) {
	var records []IssueRecord
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("record_index ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list issues for job %s: %w", jobID, err)
	}
	return records, nil
}

// CountByType returns the number of issues of each error type in a job
func (s *Store) CountByType(ctx context.Context, jobID string) (map[string]int64, error) {
	var rows []struct {
		ErrorType string
		Count     int64
	}
	err := s.db.WithContext(ctx).
		Model(&IssueRecord{}).
		Select("error_type, count(*) as count").
		Where("job_id = ?", jobID).
		Group("error_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count issues for job %s: %w", jobID, err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ErrorType] = r.Count
	}
	return counts, nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
