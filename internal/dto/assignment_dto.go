package dto

import (
	"time"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// AnswerValue is the raw value a student sends for one question.
// Choice questions use ChoiceIDs (or ChoiceID), text questions use Text.
type AnswerValue struct {
	ChoiceID  *uint   `json:"choice_id,omitempty"`
	ChoiceIDs []uint  `json:"choice_ids,omitempty"`
	Text      *string `json:"text,omitempty"`
}

// Selection merges both choice fields into one list, preserving order and dropping duplicates.
func (v AnswerValue) Selection() []uint {
	seen := make(map[uint]struct{}, len(v.ChoiceIDs)+1)
	result := make([]uint, 0, len(v.ChoiceIDs)+1)
	add := func(id uint) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	if v.ChoiceID != nil {
		add(*v.ChoiceID)
	}
	for _, id := range v.ChoiceIDs {
		add(id)
	}
	return result
}

// RecordAnswersRequest carries answers keyed by question id.
type RecordAnswersRequest struct {
	Answers map[uint]AnswerValue `json:"answers" validate:"required"`
}

// SubmitRequest carries the final answers sent with a submit. It may be empty.
type SubmitRequest struct {
	Answers map[uint]AnswerValue `json:"answers"`
}

// ForceSubmitRequest is used by teachers to end an attempt.
type ForceSubmitRequest struct {
	Reason string `json:"reason" validate:"required,oneof=tab_switch copy_paste fullscreen_exit suspicious_activity browser_change network_disconnect time_expired teacher_intervention"`
}

// FileAnswerUpload describes an uploaded file answer.
type FileAnswerUpload struct {
	QuestionID uint
	FileName   string
	Size       int64
	Content    []byte
}

// AttemptTiming exposes the timing evaluation of an attempt.
type AttemptTiming struct {
	Timed             bool       `json:"timed"`
	Accessible        bool       `json:"accessible"`
	EndsAt            *time.Time `json:"ends_at"`
	RemainingSeconds  *int64     `json:"remaining_seconds"`
	Expired           bool       `json:"expired"`
	ElapsedPercentage float64    `json:"elapsed_percentage"`
}

// AnswerResponse serializes an answer row.
type AnswerResponse struct {
	ID         uint     `json:"id"`
	QuestionID uint     `json:"question_id"`
	ChoiceID   *uint    `json:"choice_id"`
	AnswerText *string  `json:"answer_text"`
	FileName   string   `json:"file_name,omitempty"`
	FileURL    string   `json:"file_url,omitempty"`
	FileSize   int64    `json:"file_size,omitempty"`
	FileMime   string   `json:"file_mime_type,omitempty"`
	Score      *float64 `json:"score"`
	Feedback   string   `json:"feedback,omitempty"`
}

// AssignmentResponse serializes an assessment assignment.
type AssignmentResponse struct {
	ID                uint             `json:"id"`
	AssessmentID      uint             `json:"assessment_id"`
	StudentID         uint             `json:"student_id"`
	Status            string           `json:"status"`
	AssignedAt        time.Time        `json:"assigned_at"`
	StartedAt         *time.Time       `json:"started_at"`
	SubmittedAt       *time.Time       `json:"submitted_at"`
	GradedAt          *time.Time       `json:"graded_at"`
	Score             *float64         `json:"score"`
	AutoScore         *float64         `json:"auto_score"`
	ForcedSubmission  bool             `json:"forced_submission"`
	SecurityViolation *string          `json:"security_violation"`
	TeacherNotes      string           `json:"teacher_notes,omitempty"`
	Answers           []AnswerResponse `json:"answers"`
	Timing            *AttemptTiming   `json:"timing,omitempty"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.AssessmentAssignment) AssignmentResponse {
	answers := make([]AnswerResponse, 0, len(model.Answers))
	for _, answer := range model.Answers {
		answers = append(answers, NewAnswerResponse(answer))
	}

	return AssignmentResponse{
		ID:                model.ID,
		AssessmentID:      model.AssessmentID,
		StudentID:         model.StudentID,
		Status:            string(model.Status()),
		AssignedAt:        model.AssignedAt,
		StartedAt:         model.StartedAt,
		SubmittedAt:       model.SubmittedAt,
		GradedAt:          model.GradedAt,
		Score:             model.Score,
		AutoScore:         model.AutoScore,
		ForcedSubmission:  model.ForcedSubmission,
		SecurityViolation: model.SecurityViolation,
		TeacherNotes:      model.TeacherNotes,
		Answers:           answers,
	}
}

// NewAnswerResponse converts an answer model into a DTO.
func NewAnswerResponse(model models.Answer) AnswerResponse {
	return AnswerResponse{
		ID:         model.ID,
		QuestionID: model.QuestionID,
		ChoiceID:   model.ChoiceID,
		AnswerText: model.AnswerText,
		FileName:   model.FileName,
		FileURL:    model.FileURL,
		FileSize:   model.FileSize,
		FileMime:   model.FileMimeType,
		Score:      model.Score,
		Feedback:   model.Feedback,
	}
}

// AssignmentViewResponse tells a student whether an attempt exists yet.
type AssignmentViewResponse struct {
	Persisted    bool                `json:"persisted"`
	AssessmentID uint                `json:"assessment_id"`
	StudentID    uint                `json:"student_id"`
	Status       string              `json:"status"`
	Accessible   bool                `json:"accessible"`
	Assignment   *AssignmentResponse `json:"assignment,omitempty"`
}
