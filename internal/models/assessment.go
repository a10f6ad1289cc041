package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// AssessmentType categorises an assessment for display and reporting.
type AssessmentType string

const (
	AssessmentTypeExam     AssessmentType = "exam"
	AssessmentTypeQuiz     AssessmentType = "quiz"
	AssessmentTypeTest     AssessmentType = "test"
	AssessmentTypeHomework AssessmentType = "homework"
	AssessmentTypeProject  AssessmentType = "project"
)

// DeliveryMode tells whether an assessment is taken under supervision with a timer or at home.
type DeliveryMode string

const (
	DeliveryModeSupervised DeliveryMode = "supervised"
	DeliveryModeHomework   DeliveryMode = "homework"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeText      QuestionType = "text"
	QuestionTypeOneChoice QuestionType = "one_choice"
	QuestionTypeMultiple  QuestionType = "multiple"
	QuestionTypeBoolean   QuestionType = "boolean"
	QuestionTypeFile      QuestionType = "file"
)

// Valid reports whether the type is one of the known question kinds.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeText, QuestionTypeOneChoice, QuestionTypeMultiple, QuestionTypeBoolean, QuestionTypeFile:
		return true
	default:
		return false
	}
}

// HasChoices reports whether answers reference choices.
func (t QuestionType) HasChoices() bool {
	return t == QuestionTypeOneChoice || t == QuestionTypeMultiple || t == QuestionTypeBoolean
}

// IsManual reports whether the question needs a teacher to score it.
func (t QuestionType) IsManual() bool {
	return t == QuestionTypeText || t == QuestionTypeFile
}

// Assessment is a gradable unit of work authored by a teacher for one class subject.
type Assessment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ClassSubjectID  uint           `gorm:"not null;index" json:"class_subject_id"`
	TeacherID       uint           `gorm:"not null;index" json:"teacher_id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	Type            AssessmentType `gorm:"size:32;not null" json:"type"`
	DeliveryMode    DeliveryMode   `gorm:"size:32;not null;default:supervised" json:"delivery_mode"`
	Coefficient     float64        `gorm:"not null;default:1" json:"coefficient"`
	DurationMinutes *int           `json:"duration_minutes"`
	ScheduledAt     *time.Time     `gorm:"index" json:"scheduled_at"`
	DueDate         *time.Time     `gorm:"index" json:"due_date"`
	IsPublished     bool           `gorm:"index" json:"is_published"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	ClassSubject    ClassSubject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Questions       []Question     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
	Groups          []Group        `gorm:"many2many:assessment_groups;" json:"groups,omitempty"`
}

// IsAccessible reports whether reference falls inside the scheduled window. Open bounds are unbounded.
func (a Assessment) IsAccessible(reference time.Time) bool {
	if a.ScheduledAt != nil && reference.Before(*a.ScheduledAt) {
		return false
	}
	if a.DueDate != nil && reference.After(*a.DueDate) {
		return false
	}
	return true
}

// IsTimed reports whether attempts run against a countdown.
func (a Assessment) IsTimed() bool {
	return a.DeliveryMode != DeliveryModeHomework && a.DurationMinutes != nil
}

// HasManualQuestions reports whether any question requires teacher grading.
func (a Assessment) HasManualQuestions() bool {
	for _, question := range a.Questions {
		if question.Type.IsManual() {
			return true
		}
	}
	return false
}

// QuestionByID finds a question of the assessment.
func (a Assessment) QuestionByID(id uint) (Question, bool) {
	for _, question := range a.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// MaxPoints sums the point value of every question.
func (a Assessment) MaxPoints() float64 {
	total := 0.0
	for _, question := range a.Questions {
		total += question.Points
	}
	return total
}

// Validate checks the authoring invariants of the assessment and its questions.
func (a Assessment) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("title is required")
	}
	if a.Coefficient <= 0 {
		return errors.New("coefficient must be greater than zero")
	}
	if a.ScheduledAt != nil && a.DueDate != nil && a.DueDate.Before(*a.ScheduledAt) {
		return errors.New("due date must not precede the scheduled start")
	}
	for idx, question := range a.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", idx+1, err)
		}
	}
	return nil
}

// Question belongs to exactly one assessment.
type Question struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	AssessmentID uint         `gorm:"not null;index" json:"assessment_id"`
	Content      string       `gorm:"type:text;not null" json:"content"`
	Type         QuestionType `gorm:"size:32;not null" json:"type"`
	Points       float64      `gorm:"not null;default:0" json:"points"`
	OrderIndex   int          `gorm:"not null;default:0" json:"order_index"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Choices      []Choice     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"choices,omitempty"`
}

// Validate enforces the per-type choice invariants.
func (q Question) Validate() error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if strings.TrimSpace(q.Content) == "" {
		return errors.New("content is required")
	}
	if q.Points < 0 {
		return errors.New("points must not be negative")
	}

	if !q.Type.HasChoices() {
		if len(q.Choices) > 0 {
			return fmt.Errorf("%s questions do not take choices", q.Type)
		}
		return nil
	}

	correct := len(q.CorrectChoiceIDs())
	if correct == 0 {
		correct = q.correctFlagCount()
	}

	switch q.Type {
	case QuestionTypeBoolean:
		if len(q.Choices) != 2 {
			return errors.New("boolean questions need exactly two choices")
		}
		labels := map[string]bool{}
		for _, choice := range q.Choices {
			labels[strings.ToLower(strings.TrimSpace(choice.Content))] = true
		}
		if !labels["true"] || !labels["false"] {
			return errors.New("boolean choices must be true and false")
		}
		if correct != 1 {
			return errors.New("boolean questions need exactly one correct choice")
		}
	case QuestionTypeOneChoice:
		if len(q.Choices) < 2 {
			return errors.New("one_choice questions need at least two choices")
		}
		if correct != 1 {
			return errors.New("one_choice questions need exactly one correct choice")
		}
	case QuestionTypeMultiple:
		if len(q.Choices) < 2 {
			return errors.New("multiple questions need at least two choices")
		}
		if correct < 2 {
			return errors.New("multiple questions need at least two correct choices")
		}
	}

	return nil
}

// HasChoice reports whether the choice belongs to the question.
func (q Question) HasChoice(choiceID uint) bool {
	for _, choice := range q.Choices {
		if choice.ID == choiceID {
			return true
		}
	}
	return false
}

// CorrectChoiceIDs lists the identifiers of the correct choices.
func (q Question) CorrectChoiceIDs() []uint {
	ids := make([]uint, 0, len(q.Choices))
	for _, choice := range q.Choices {
		if choice.IsCorrect && choice.ID != 0 {
			ids = append(ids, choice.ID)
		}
	}
	return ids
}

func (q Question) correctFlagCount() int {
	count := 0
	for _, choice := range q.Choices {
		if choice.IsCorrect {
			count++
		}
	}
	return count
}

// Choice belongs to one question.
type Choice struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsCorrect  bool      `gorm:"not null;default:false" json:"is_correct"`
	OrderIndex int       `gorm:"not null;default:0" json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
