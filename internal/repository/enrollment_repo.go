package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// EnrollmentRepository answers population and eligibility questions about classrooms and groups.
type EnrollmentRepository interface {
	FindActive(ctx context.Context, studentID, classroomID uint) (models.Enrollment, error)
	IsGroupMember(ctx context.Context, studentID uint, groupIDs []uint) (bool, error)
	ActiveStudentIDs(ctx context.Context, classroomID uint) ([]uint, error)
	GroupMemberIDs(ctx context.Context, groupID uint) ([]uint, error)
	GetGroup(ctx context.Context, id uint) (models.Group, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository instantiates a GORM-backed repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) FindActive(ctx context.Context, studentID, classroomID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND classroom_id = ? AND status = ?", studentID, classroomID, models.EnrollmentStatusActive).
		First(&enrollment).Error
	if err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *enrollmentRepository) IsGroupMember(ctx context.Context, studentID uint, groupIDs []uint) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("student_id = ? AND group_id IN ?", studentID, groupIDs).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *enrollmentRepository) ActiveStudentIDs(ctx context.Context, classroomID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("classroom_id = ? AND status = ?", classroomID, models.EnrollmentStatusActive).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *enrollmentRepository) GroupMemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *enrollmentRepository) GetGroup(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return models.Group{}, err
	}
	return group, nil
}
