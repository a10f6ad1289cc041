package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// AssessmentScore pairs an assessment weight with a student's score on it. Score is nil when ungraded.
type AssessmentScore struct {
	AssessmentID uint
	Coefficient  float64
	Score        *float64
}

// GradeRepository reads the records the grade aggregator works from. It never writes.
type GradeRepository interface {
	AssessmentScores(ctx context.Context, studentID, classSubjectID uint) ([]AssessmentScore, error)
	ClassSubjectsForYear(ctx context.Context, studentID, academicYearID uint) ([]models.ClassSubject, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates a GORM-backed repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

// AssessmentScores lists every assessment of the class subject, soft-deleted ones included, with the
// student's graded score when there is one.
func (r *gradeRepository) AssessmentScores(ctx context.Context, studentID, classSubjectID uint) ([]AssessmentScore, error) {
	var assessments []models.Assessment
	if err := r.db.WithContext(ctx).Unscoped().
		Select("id", "coefficient").
		Where("class_subject_id = ?", classSubjectID).
		Order("id ASC").
		Find(&assessments).Error; err != nil {
		return nil, err
	}
	if len(assessments) == 0 {
		return []AssessmentScore{}, nil
	}

	ids := make([]uint, 0, len(assessments))
	for _, assessment := range assessments {
		ids = append(ids, assessment.ID)
	}

	var assignments []models.AssessmentAssignment
	if err := r.db.WithContext(ctx).
		Select("assessment_id", "score").
		Where("student_id = ? AND assessment_id IN ? AND graded_at IS NOT NULL", studentID, ids).
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	scores := make(map[uint]*float64, len(assignments))
	for _, assignment := range assignments {
		scores[assignment.AssessmentID] = assignment.Score
	}

	result := make([]AssessmentScore, 0, len(assessments))
	for _, assessment := range assessments {
		result = append(result, AssessmentScore{
			AssessmentID: assessment.ID,
			Coefficient:  assessment.Coefficient,
			Score:        scores[assessment.ID],
		})
	}
	return result, nil
}

// ClassSubjectsForYear lists the class subjects of every classroom of the year in which the student
// holds an active or completed enrollment.
func (r *gradeRepository) ClassSubjectsForYear(ctx context.Context, studentID, academicYearID uint) ([]models.ClassSubject, error) {
	var classroomIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Joins("JOIN classrooms ON classrooms.id = enrollments.classroom_id").
		Where("enrollments.student_id = ? AND classrooms.academic_year_id = ?", studentID, academicYearID).
		Where("enrollments.status IN ?", []models.EnrollmentStatus{models.EnrollmentStatusActive, models.EnrollmentStatusCompleted}).
		Pluck("enrollments.classroom_id", &classroomIDs).Error; err != nil {
		return nil, err
	}
	if len(classroomIDs) == 0 {
		return []models.ClassSubject{}, nil
	}

	var classSubjects []models.ClassSubject
	if err := r.db.WithContext(ctx).
		Preload("Subject").
		Where("classroom_id IN ?", classroomIDs).
		Order("id ASC").
		Find(&classSubjects).Error; err != nil {
		return nil, err
	}
	return classSubjects, nil
}
