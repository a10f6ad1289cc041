package models

import "time"

// AssignmentGradeHistory keeps every grade and regrade applied to an assignment.
type AssignmentGradeHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AssignmentID  uint      `gorm:"not null;index" json:"assignment_id"`
	GradedBy      uint      `gorm:"not null" json:"graded_by"`
	PreviousScore *float64  `json:"previous_score"`
	Score         float64   `gorm:"not null" json:"score"`
	Notes         string    `gorm:"type:text" json:"notes"`
	GradedAt      time.Time `gorm:"not null" json:"graded_at"`
}

// TableName pins the table name.
func (AssignmentGradeHistory) TableName() string {
	return "assignment_grade_histories"
}
