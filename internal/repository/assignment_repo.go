package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// SubmissionUpdate holds the columns written when an attempt is handed in.
type SubmissionUpdate struct {
	SubmittedAt       time.Time
	GradedAt          *time.Time
	AutoScore         *float64
	Score             *float64
	Forced            bool
	SecurityViolation *string
}

// GradeUpdate holds the columns written when an attempt is graded.
type GradeUpdate struct {
	GradedAt     time.Time
	Score        float64
	TeacherNotes string
	GradedBy     uint
}

// AnswerScoreUpdate sets the score and feedback of one answer row.
type AnswerScoreUpdate struct {
	AnswerID uint
	Score    *float64
	Feedback string
}

// AssignmentRepository defines persistence operations for assessment assignments and their answers.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.AssessmentAssignment, error)
	FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID uint) (models.AssessmentAssignment, error)
	FirstOrCreate(ctx context.Context, assignment *models.AssessmentAssignment) error
	MarkStarted(ctx context.Context, id uint, at time.Time) (bool, error)
	LockOpen(ctx context.Context, id uint, at time.Time) (bool, error)
	ListAnswers(ctx context.Context, assignmentID uint) ([]models.Answer, error)
	ReplaceAnswers(ctx context.Context, assignmentID, questionID uint, answers []models.Answer) ([]models.Answer, error)
	MarkSubmitted(ctx context.Context, id uint, update SubmissionUpdate) (bool, error)
	UpdateAnswerScores(ctx context.Context, updates []AnswerScoreUpdate) error
	MarkGraded(ctx context.Context, id uint, update GradeUpdate) error
	CreateGradeHistory(ctx context.Context, entry *models.AssignmentGradeHistory) error
	ListGradeHistory(ctx context.Context, assignmentID uint) ([]models.AssignmentGradeHistory, error)
	ListByAssessment(ctx context.Context, assessmentID uint) ([]models.AssessmentAssignment, error)
	ListByStudent(ctx context.Context, studentID uint, assessmentIDs []uint) ([]models.AssessmentAssignment, error)
	Transaction(ctx context.Context, fn func(repo AssignmentRepository) error) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) withAnswers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Answers", func(db *gorm.DB) *gorm.DB {
		return db.Order("question_id ASC, id ASC")
	})
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.AssessmentAssignment, error) {
	var assignment models.AssessmentAssignment
	if err := r.withAnswers(ctx).First(&assignment, id).Error; err != nil {
		return models.AssessmentAssignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) FindByStudentAndAssessment(ctx context.Context, studentID, assessmentID uint) (models.AssessmentAssignment, error) {
	var assignment models.AssessmentAssignment
	err := r.withAnswers(ctx).
		Where("student_id = ? AND assessment_id = ?", studentID, assessmentID).
		First(&assignment).Error
	if err != nil {
		return models.AssessmentAssignment{}, err
	}
	return assignment, nil
}

// FirstOrCreate inserts the assignment unless one already exists for the (student, assessment) pair,
// then loads the stored row into assignment.
func (r *assignmentRepository) FirstOrCreate(ctx context.Context, assignment *models.AssessmentAssignment) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "assessment_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(assignment).Error
	if err != nil {
		return err
	}

	stored, err := r.FindByStudentAndAssessment(ctx, assignment.StudentID, assignment.AssessmentID)
	if err != nil {
		return err
	}
	*assignment = stored
	return nil
}

func (r *assignmentRepository) MarkStarted(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND started_at IS NULL AND submitted_at IS NULL", id).
		Update("started_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// LockOpen touches the row while it is still unsubmitted. Inside a transaction this holds the row
// lock until commit, so a concurrent submit waits for the pending answer writes.
func (r *assignmentRepository) LockOpen(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND submitted_at IS NULL", id).
		Update("updated_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *assignmentRepository) ListAnswers(ctx context.Context, assignmentID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("question_id ASC, id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

// ReplaceAnswers deletes every answer row of the question and inserts the given rows.
// It returns the removed rows so callers can clean up attached files.
func (r *assignmentRepository) ReplaceAnswers(ctx context.Context, assignmentID, questionID uint, answers []models.Answer) ([]models.Answer, error) {
	var previous []models.Answer
	db := r.db.WithContext(ctx)
	if err := db.Where("assignment_id = ? AND question_id = ?", assignmentID, questionID).Find(&previous).Error; err != nil {
		return nil, err
	}
	if len(previous) > 0 {
		if err := db.Where("assignment_id = ? AND question_id = ?", assignmentID, questionID).Delete(&models.Answer{}).Error; err != nil {
			return nil, err
		}
	}

	if len(answers) == 0 {
		return previous, nil
	}
	for idx := range answers {
		answers[idx].ID = 0
		answers[idx].AssignmentID = assignmentID
		answers[idx].QuestionID = questionID
	}
	if err := db.Omit(clause.Associations).Create(&answers).Error; err != nil {
		return nil, err
	}
	return previous, nil
}

// MarkSubmitted sets submitted_at only while it is still NULL. It reports false when another
// request already submitted the attempt.
func (r *assignmentRepository) MarkSubmitted(ctx context.Context, id uint, update SubmissionUpdate) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND submitted_at IS NULL", id).
		Updates(map[string]interface{}{
			"submitted_at":       update.SubmittedAt,
			"graded_at":          update.GradedAt,
			"auto_score":         update.AutoScore,
			"score":              update.Score,
			"forced_submission":  update.Forced,
			"security_violation": update.SecurityViolation,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *assignmentRepository) UpdateAnswerScores(ctx context.Context, updates []AnswerScoreUpdate) error {
	db := r.db.WithContext(ctx)
	for _, update := range updates {
		if err := db.Model(&models.Answer{}).Where("id = ?", update.AnswerID).Updates(map[string]interface{}{
			"score":    update.Score,
			"feedback": update.Feedback,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *assignmentRepository) MarkGraded(ctx context.Context, id uint, update GradeUpdate) error {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND submitted_at IS NOT NULL", id).
		Updates(map[string]interface{}{
			"graded_at":     update.GradedAt,
			"score":         update.Score,
			"teacher_notes": update.TeacherNotes,
			"graded_by":     update.GradedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assignmentRepository) CreateGradeHistory(ctx context.Context, entry *models.AssignmentGradeHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *assignmentRepository) ListGradeHistory(ctx context.Context, assignmentID uint) ([]models.AssignmentGradeHistory, error) {
	var entries []models.AssignmentGradeHistory
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("graded_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *assignmentRepository) ListByAssessment(ctx context.Context, assessmentID uint) ([]models.AssessmentAssignment, error) {
	var assignments []models.AssessmentAssignment
	if err := r.withAnswers(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("student_id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepository) ListByStudent(ctx context.Context, studentID uint, assessmentIDs []uint) ([]models.AssessmentAssignment, error) {
	if len(assessmentIDs) == 0 {
		return []models.AssessmentAssignment{}, nil
	}
	var assignments []models.AssessmentAssignment
	if err := r.withAnswers(ctx).
		Where("student_id = ? AND assessment_id IN ?", studentID, assessmentIDs).
		Order("assessment_id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

// Transaction runs fn with a repository bound to a single database transaction.
func (r *assignmentRepository) Transaction(ctx context.Context, fn func(repo AssignmentRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&assignmentRepository{db: tx})
	})
}
