package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// AssessmentRepository defines persistence operations for assessments and their questions.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	GetByID(ctx context.Context, id uint) (models.Assessment, error)
	Update(ctx context.Context, assessment *models.Assessment) error
	SetPublished(ctx context.Context, id uint, published bool) error
	Delete(ctx context.Context, id uint) error
	HasSubmissions(ctx context.Context, id uint) (bool, error)
	ListPublishedByClassroom(ctx context.Context, classroomID uint) ([]models.Assessment, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates a GORM-backed repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func preloadAssessment(query *gorm.DB) *gorm.DB {
	return query.
		Preload("ClassSubject").
		Preload("Groups").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		})
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	if err := preloadAssessment(r.db.WithContext(ctx)).First(&assessment, id).Error; err != nil {
		return models.Assessment{}, err
	}
	return assessment, nil
}

// Update saves the scalar fields, replaces the question tree and the group links.
func (r *assessmentRepository) Update(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Assessment{}).Where("id = ?", assessment.ID).Updates(map[string]interface{}{
			"title":            assessment.Title,
			"description":      assessment.Description,
			"type":             assessment.Type,
			"delivery_mode":    assessment.DeliveryMode,
			"coefficient":      assessment.Coefficient,
			"duration_minutes": assessment.DurationMinutes,
			"scheduled_at":     assessment.ScheduledAt,
			"due_date":         assessment.DueDate,
			"class_subject_id": assessment.ClassSubjectID,
		}).Error; err != nil {
			return err
		}

		var questionIDs []uint
		if err := tx.Model(&models.Question{}).Where("assessment_id = ?", assessment.ID).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.Choice{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", questionIDs).Delete(&models.Question{}).Error; err != nil {
				return err
			}
		}

		for idx := range assessment.Questions {
			assessment.Questions[idx].ID = 0
			assessment.Questions[idx].AssessmentID = assessment.ID
			for cidx := range assessment.Questions[idx].Choices {
				assessment.Questions[idx].Choices[cidx].ID = 0
			}
		}
		if len(assessment.Questions) > 0 {
			if err := tx.Create(&assessment.Questions).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Assessment{ID: assessment.ID}).Association("Groups").Replace(assessment.Groups)
	})
}

func (r *assessmentRepository) SetPublished(ctx context.Context, id uint, published bool) error {
	result := r.db.WithContext(ctx).Model(&models.Assessment{}).Where("id = ?", id).Update("is_published", published)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assessmentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Assessment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assessmentRepository) HasSubmissions(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("assessment_id = ? AND submitted_at IS NOT NULL", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *assessmentRepository) ListPublishedByClassroom(ctx context.Context, classroomID uint) ([]models.Assessment, error) {
	var assessments []models.Assessment
	err := r.db.WithContext(ctx).
		Joins("JOIN class_subjects ON class_subjects.id = assessments.class_subject_id").
		Where("class_subjects.classroom_id = ? AND assessments.is_published = ?", classroomID, true).
		Order("assessments.id ASC").
		Find(&assessments).Error
	if err != nil {
		return nil, err
	}
	return assessments, nil
}
