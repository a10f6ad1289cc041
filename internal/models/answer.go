package models

import "time"

// Answer stores one response row. Multi-select questions keep one row per selected choice.
type Answer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;index:idx_answer_assignment_question" json:"assignment_id"`
	QuestionID   uint      `gorm:"not null;index:idx_answer_assignment_question" json:"question_id"`
	ChoiceID     *uint     `gorm:"index" json:"choice_id"`
	AnswerText   *string   `gorm:"type:text" json:"answer_text"`
	FileName     string    `gorm:"size:255" json:"file_name,omitempty"`
	FilePath     string    `gorm:"size:512" json:"file_path,omitempty"`
	FileURL      string    `gorm:"size:1024" json:"file_url,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	FileMimeType string    `gorm:"size:128" json:"file_mime_type,omitempty"`
	Score        *float64  `json:"score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Question     Question  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// HasFile reports whether file metadata is populated.
func (a Answer) HasFile() bool {
	return a.FilePath != ""
}
