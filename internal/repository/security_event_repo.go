package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/models"
)

// SecurityEventRepository persists exam-security violations.
type SecurityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.SecurityEvent, error)
}

type securityEventRepository struct {
	db *gorm.DB
}

// NewSecurityEventRepository instantiates a GORM-backed repository.
func NewSecurityEventRepository(db *gorm.DB) SecurityEventRepository {
	return &securityEventRepository{db: db}
}

func (r *securityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *securityEventRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
