package models

import (
	"time"

	"gorm.io/datatypes"
)

// SecurityEvent records one exam-security violation reported by the client.
type SecurityEvent struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	AssignmentID uint              `gorm:"not null;index" json:"assignment_id"`
	StudentID    uint              `gorm:"not null;index" json:"student_id"`
	Type         string            `gorm:"size:64;not null" json:"type"`
	Terminal     bool              `gorm:"not null;default:false" json:"terminal"`
	Details      datatypes.JSONMap `gorm:"type:json" json:"details"`
	OccurredAt   time.Time         `gorm:"not null" json:"occurred_at"`
	CreatedAt    time.Time         `json:"created_at"`
}
