package dto

import (
	"time"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// ViolationRequest is reported by the exam client when it detects suspicious behaviour.
type ViolationRequest struct {
	Type    string                 `json:"type" validate:"required"`
	Details map[string]interface{} `json:"details"`
}

// ViolationResult tells the client whether the attempt was ended.
type ViolationResult struct {
	Type       string              `json:"type"`
	Terminal   bool                `json:"terminal"`
	Terminated bool                `json:"terminated"`
	Assignment *AssignmentResponse `json:"assignment,omitempty"`
}

// SecurityEventResponse serializes a stored violation.
type SecurityEventResponse struct {
	ID           uint                   `json:"id"`
	AssignmentID uint                   `json:"assignment_id"`
	StudentID    uint                   `json:"student_id"`
	Type         string                 `json:"type"`
	Terminal     bool                   `json:"terminal"`
	Details      map[string]interface{} `json:"details"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// NewSecurityEventResponse converts a model into a DTO.
func NewSecurityEventResponse(model models.SecurityEvent) SecurityEventResponse {
	details := map[string]interface{}{}
	for key, value := range model.Details {
		details[key] = value
	}
	return SecurityEventResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		Type:         model.Type,
		Terminal:     model.Terminal,
		Details:      details,
		OccurredAt:   model.OccurredAt,
	}
}
