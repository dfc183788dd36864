package exportmodule

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"storyreel/internal/database"
)

// SessionStore persists export job records. The encoded buffers themselves
// stay in memory; the store only records lifecycle and progress so finished
// and failed jobs survive inspection after the fact.
type SessionStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewSessionStore creates a session store
func NewSessionStore(db *gorm.DB, logger hclog.Logger) *SessionStore {
	return &SessionStore{
		db:     db,
		logger: logger.Named("session-store"),
	}
}

// CreateSession records a new running export job
func (s *SessionStore) CreateSession(id, title string, fps, totalFrames int) (*database.ExportSession, error) {
	session := &database.ExportSession{
		ID:          id,
		Title:       title,
		Status:      string(StatusRunning),
		FPS:         fps,
		TotalFrames: totalFrames,
		StartTime:   time.Now(),
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create export session: %w", err)
	}

	s.logger.Info("created export session", "session_id", id, "fps", fps, "total_frames", totalFrames)
	return session, nil
}

// UpdateProgress records per-frame progress
func (s *SessionStore) UpdateProgress(id string, framesDone int, progress float64) error {
	updates := map[string]interface{}{
		"frames_done": framesDone,
		"progress":    progress,
	}
	if err := s.db.Model(&database.ExportSession{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update export progress: %w", err)
	}
	return nil
}

// CompleteSession marks a session completed
func (s *SessionStore) CompleteSession(id string, sizeBytes int64) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     string(StatusCompleted),
		"progress":   1.0,
		"size_bytes": sizeBytes,
		"end_time":   &now,
	}
	if err := s.db.Model(&database.ExportSession{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to complete export session: %w", err)
	}
	s.logger.Info("export session completed", "session_id", id, "bytes", sizeBytes)
	return nil
}

// FailSession marks a session failed
func (s *SessionStore) FailSession(id string, cause error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":   string(StatusFailed),
		"error":    cause.Error(),
		"end_time": &now,
	}
	if err := s.db.Model(&database.ExportSession{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update export session: %w", err)
	}
	s.logger.Error("export session failed", "session_id", id, "error", cause)
	return nil
}

// CancelSession marks a session cancelled
func (s *SessionStore) CancelSession(id string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":   string(StatusCancelled),
		"end_time": &now,
	}
	if err := s.db.Model(&database.ExportSession{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to cancel export session: %w", err)
	}
	s.logger.Info("export session cancelled", "session_id", id)
	return nil
}

// GetSession retrieves a session record by ID
func (s *SessionStore) GetSession(id string) (*database.ExportSession, error) {
	var session database.ExportSession
	if err := s.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, fmt.Errorf("export session not found: %w", err)
	}
	return &session, nil
}

// ListSessions returns the most recent sessions, newest first
func (s *SessionStore) ListSessions(limit int) ([]*database.ExportSession, error) {
	if limit <= 0 {
		limit = 50
	}
	var sessions []*database.ExportSession
	if err := s.db.Order("start_time desc").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list export sessions: %w", err)
	}
	return sessions, nil
}
