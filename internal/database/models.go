package database

import (
	"time"
)

// ExportSession is the persisted record of an export job. The encoded buffer
// itself is never persisted; it lives in memory on the export manager until
// downloaded or discarded.
type ExportSession struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title       string     `gorm:"type:varchar(256)" json:"title"`
	Status      string     `gorm:"type:varchar(32);not null;index" json:"status"`
	FPS         int        `gorm:"not null" json:"fps"`
	TotalFrames int        `gorm:"not null" json:"total_frames"`
	FramesDone  int        `gorm:"not null" json:"frames_done"`
	Progress    float64    `gorm:"not null" json:"progress"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	SizeBytes   int64      `json:"size_bytes"`
	StartTime   time.Time  `gorm:"not null;index" json:"start_time"`
	EndTime     *time.Time `gorm:"index" json:"end_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the table name for GORM
func (ExportSession) TableName() string {
	return "export_sessions"
}
