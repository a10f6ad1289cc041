package dto

import "time"

// Assignment event types.
const (
	EventAssignmentStarted        = "assignment.started"
	EventAssignmentSubmitted      = "assignment.submitted"
	EventAssignmentForceSubmitted = "assignment.force_submitted"
	EventAssignmentGraded         = "assignment.graded"
	EventSecurityViolation        = "assignment.security_violation"
)

// AssignmentEvent is broadcast to live monitors whenever an attempt changes.
type AssignmentEvent struct {
	Type         string    `json:"type"`
	AssignmentID uint      `json:"assignment_id"`
	AssessmentID uint      `json:"assessment_id"`
	StudentID    uint      `json:"student_id"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
