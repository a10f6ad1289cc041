package dto

import (
	"time"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// ChoiceRequest describes one authored choice.
type ChoiceRequest struct {
	Content   string `json:"content" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionRequest describes one authored question.
type QuestionRequest struct {
	Content string          `json:"content" validate:"required"`
	Type    string          `json:"type" validate:"required,oneof=text one_choice multiple boolean file"`
	Points  float64         `json:"points" validate:"gte=0"`
	Choices []ChoiceRequest `json:"choices" validate:"omitempty,dive"`
}

// AssessmentCreateRequest is the payload a teacher sends to author an assessment.
type AssessmentCreateRequest struct {
	ClassSubjectID  uint              `json:"class_subject_id" validate:"required"`
	Title           string            `json:"title" validate:"required,min=3,max=255"`
	Description     string            `json:"description"`
	Type            string            `json:"type" validate:"required,oneof=exam quiz test homework project"`
	DeliveryMode    string            `json:"delivery_mode" validate:"required,oneof=supervised homework"`
	Coefficient     float64           `json:"coefficient" validate:"gt=0"`
	DurationMinutes *int              `json:"duration_minutes" validate:"omitempty,gte=0"`
	ScheduledAt     *time.Time        `json:"scheduled_at"`
	DueDate         *time.Time        `json:"due_date"`
	GroupIDs        []uint            `json:"group_ids"`
	Questions       []QuestionRequest `json:"questions" validate:"omitempty,dive"`
}

// AssessmentUpdateRequest replaces the editable parts of an assessment.
type AssessmentUpdateRequest = AssessmentCreateRequest

// ChoiceResponse serializes a choice. IsCorrect is omitted for students.
type ChoiceResponse struct {
	ID         uint   `json:"id"`
	Content    string `json:"content"`
	IsCorrect  *bool  `json:"is_correct,omitempty"`
	OrderIndex int    `json:"order_index"`
}

// QuestionResponse serializes a question.
type QuestionResponse struct {
	ID         uint             `json:"id"`
	Content    string           `json:"content"`
	Type       string           `json:"type"`
	Points     float64          `json:"points"`
	OrderIndex int              `json:"order_index"`
	Choices    []ChoiceResponse `json:"choices"`
}

// AssessmentResponse serializes an assessment.
type AssessmentResponse struct {
	ID              uint               `json:"id"`
	ClassSubjectID  uint               `json:"class_subject_id"`
	TeacherID       uint               `json:"teacher_id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Type            string             `json:"type"`
	DeliveryMode    string             `json:"delivery_mode"`
	Coefficient     float64            `json:"coefficient"`
	DurationMinutes *int               `json:"duration_minutes"`
	ScheduledAt     *time.Time         `json:"scheduled_at"`
	DueDate         *time.Time         `json:"due_date"`
	IsPublished     bool               `json:"is_published"`
	MaxPoints       float64            `json:"max_points"`
	GroupIDs        []uint             `json:"group_ids"`
	Questions       []QuestionResponse `json:"questions"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// NewAssessmentResponse converts a model into a DTO. revealAnswers controls whether correct choices are exposed.
func NewAssessmentResponse(model models.Assessment, revealAnswers bool) AssessmentResponse {
	questions := make([]QuestionResponse, 0, len(model.Questions))
	for _, question := range model.Questions {
		choices := make([]ChoiceResponse, 0, len(question.Choices))
		for _, choice := range question.Choices {
			item := ChoiceResponse{ID: choice.ID, Content: choice.Content, OrderIndex: choice.OrderIndex}
			if revealAnswers {
				correct := choice.IsCorrect
				item.IsCorrect = &correct
			}
			choices = append(choices, item)
		}
		questions = append(questions, QuestionResponse{
			ID:         question.ID,
			Content:    question.Content,
			Type:       string(question.Type),
			Points:     question.Points,
			OrderIndex: question.OrderIndex,
			Choices:    choices,
		})
	}

	groupIDs := make([]uint, 0, len(model.Groups))
	for _, group := range model.Groups {
		groupIDs = append(groupIDs, group.ID)
	}

	return AssessmentResponse{
		ID:              model.ID,
		ClassSubjectID:  model.ClassSubjectID,
		TeacherID:       model.TeacherID,
		Title:           model.Title,
		Description:     model.Description,
		Type:            string(model.Type),
		DeliveryMode:    string(model.DeliveryMode),
		Coefficient:     model.Coefficient,
		DurationMinutes: model.DurationMinutes,
		ScheduledAt:     model.ScheduledAt,
		DueDate:         model.DueDate,
		IsPublished:     model.IsPublished,
		MaxPoints:       model.MaxPoints(),
		GroupIDs:        groupIDs,
		Questions:       questions,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}
