package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// IssueRow is one persisted issue. Rows are append-only and keyed by job.
type IssueRow struct {
	JobID        string    `json:"job_id"`
	RecordIndex  int       `json:"record_index"`
	RecordID     string    `json:"record_id"`
	FieldName    string    `json:"field_name"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	Suggestion   string    `json:"suggestion,omitempty"`
	Severity     string    `json:"severity"`
	AIGenerated  bool      `json:"ai_generated,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IssueWriter persists issue rows
type IssueWriter interface {
	WriteIssues(ctx context.Context, rows []IssueRow) error
}

// IssueRows flattens the issues of one result into rows
func IssueRows(jobID string, recordIndex int, result RecordResult) []IssueRow {
	rows := make([]IssueRow, 0, len(result.Issues))
	now := time.Now().UTC()
	for _, issue := range result.Issues {
		rows = append(rows, IssueRow{
			JobID:        jobID,
			RecordIndex:  recordIndex,
			RecordID:     result.RecordID,
			FieldName:    issue.Field,
			ErrorType:    string(issue.Type),
			ErrorMessage: issue.Message,
			Suggestion:   issue.Suggestion,
			Severity:     string(issue.Severity),
			AIGenerated:  issue.AIGenerated,
			CreatedAt:    now,
		})
	}
	return rows
}

// IssueLogOptions configures an IssueLog
type IssueLogOptions struct {
	// Size in bytes after which the log rotates; zero disables rotation
	RotationSize int64

	// Days rotated files are kept; zero keeps them forever
	RetentionDays int
}

// IssueLog appends issue rows to a JSONL file
type IssueLog struct {
	mu          sync.Mutex
	path        string
	opts        IssueLogOptions
	file        *os.File
	currentSize int64
}

// OpenIssueLog opens (or creates) the log at path
func OpenIssueLog(path string, opts IssueLogOptions) (*IssueLog, error) {
	l := &IssueLog{path: path, opts: opts}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *IssueLog) open() error {
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create issue log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open issue log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat issue log: %w", err)
	}

	l.file = f
	l.currentSize = info.Size()
	return nil
}

// WriteIssues appends one JSON line per row
func (l *IssueLog) WriteIssues(ctx context.Context, rows []IssueRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("issue log %s is closed", l.path)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.maybeRotate(); err != nil {
			return err
		}

		entry, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal issue row: %w", err)
		}
		n, err := l.file.Write(append(entry, '\n'))
		if err != nil {
			return fmt.Errorf("failed to write issue row: %w", err)
		}
		l.currentSize += int64(n)
	}
	return nil
}

// Close closes the underlying file
func (l *IssueLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *IssueLog) maybeRotate() error {
	if l.opts.RotationSize <= 0 || l.currentSize < l.opts.RotationSize {
		return nil
	}

	l.file.Close()
	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().Format("20060102-150405.000000000"))
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("failed to rotate issue log: %w", err)
	}

	l.cleanupOld()
	return l.open()
}

// cleanupOld removes rotated files older than the retention period
func (l *IssueLog) cleanupOld() {
	if l.opts.RetentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -l.opts.RetentionDays)
	files, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return
	}
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
}

// MultiIssueWriter fans rows out to several writers, stopping at the first error
type MultiIssueWriter []IssueWriter

func (m MultiIssueWriter) WriteIssues(ctx context.Context, rows []IssueRow) error {
	for _, w := range m {
		if err := w.WriteIssues(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}
