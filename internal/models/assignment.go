package models

import "time"

// AssignmentStatus is derived from the assignment timestamps and never stored.
type AssignmentStatus string

const (
	AssignmentStatusNotStarted AssignmentStatus = "not_started"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusSubmitted  AssignmentStatus = "submitted"
	AssignmentStatusGraded     AssignmentStatus = "graded"
)

// AssessmentAssignment tracks one student's attempt at one assessment.
type AssessmentAssignment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	AssessmentID      uint       `gorm:"not null;uniqueIndex:idx_assignment_student_assessment" json:"assessment_id"`
	StudentID         uint       `gorm:"not null;uniqueIndex:idx_assignment_student_assessment;index" json:"student_id"`
	EnrollmentID      *uint      `gorm:"index" json:"enrollment_id"`
	AssignedAt        time.Time  `gorm:"not null" json:"assigned_at"`
	StartedAt         *time.Time `json:"started_at"`
	SubmittedAt       *time.Time `gorm:"index" json:"submitted_at"`
	GradedAt          *time.Time `json:"graded_at"`
	Score             *float64   `json:"score"`
	AutoScore         *float64   `json:"auto_score"`
	ForcedSubmission  bool       `gorm:"not null;default:false" json:"forced_submission"`
	SecurityViolation *string    `gorm:"size:64" json:"security_violation"`
	TeacherNotes      string     `gorm:"type:text" json:"teacher_notes"`
	GradedBy          *uint      `json:"graded_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Assessment        Assessment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Answers           []Answer   `gorm:"foreignKey:AssignmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"answers,omitempty"`
}

// TableName pins the table name.
func (AssessmentAssignment) TableName() string {
	return "assessment_assignments"
}

// Status derives the lifecycle state from timestamp presence.
func (a AssessmentAssignment) Status() AssignmentStatus {
	switch {
	case a.GradedAt != nil:
		return AssignmentStatusGraded
	case a.SubmittedAt != nil:
		return AssignmentStatusSubmitted
	case a.StartedAt != nil:
		return AssignmentStatusInProgress
	default:
		return AssignmentStatusNotStarted
	}
}

// IsSubmitted reports whether the attempt has been handed in, graded or not.
func (a AssessmentAssignment) IsSubmitted() bool {
	return a.SubmittedAt != nil
}

// IsStarted reports whether the attempt clock has started.
func (a AssessmentAssignment) IsStarted() bool {
	return a.StartedAt != nil
}
