package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

// Audited actions.
const (
	AuditAssessmentCreated   = "assessment.created"
	AuditAssessmentUpdated   = "assessment.updated"
	AuditAssessmentPublished = "assessment.published"
	AuditAssessmentDeleted   = "assessment.deleted"
	AuditAssignmentGraded    = "assignment.graded"
	AuditAssignmentForced    = "assignment.force_submitted"
)

// ActivityEntry captures the details required to persist an audit entry.
type ActivityEntry struct {
	Actor      Actor
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error)
}

// ActivityService records and lists the audit trail.
type ActivityService interface {
	AuditRecorder
	List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs the audit trail service.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityService {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	switch {
	case action == "":
		return dto.ActivityResponse{}, fmt.Errorf("action is required")
	case entityType == "":
		return dto.ActivityResponse{}, fmt.Errorf("entity type is required")
	}

	log := models.ActivityLog{
		ActorID:    entry.Actor.ID,
		ActorRole:  auditRole(entry.Actor.Role),
		Action:     action,
		EntityType: entityType,
		EntityID:   entry.EntityID,
		Metadata:   redactMetadata(entry.Metadata),
	}
	if err := s.repo.Create(ctx, &log); err != nil {
		s.logger.Error().Err(err).Str("action", action).Str("entity_type", entityType).Msg("failed to persist activity log")
		return dto.ActivityResponse{}, err
	}
	return dto.NewActivityResponse(log), nil
}

func (s *activityService) List(ctx context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	filter := repository.ActivityLogFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}
	if req.EntityID > 0 {
		filter.EntityID = &req.EntityID
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityResponse, len(logs))
	for i, log := range logs {
		items[i] = dto.NewActivityResponse(log)
	}
	return dto.ActivityListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// recordAudit writes an audit entry and only logs failures; the audited action has already committed.
func recordAudit(ctx context.Context, recorder AuditRecorder, logger zerolog.Logger, entry ActivityEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record audit entry")
	}
}

// Metadata keys containing one of these fragments are masked before they reach the audit table.
var redactedMetadataKeys = []string{"email", "token", "password", "secret"}

func redactMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	redacted := make(datatypes.JSONMap, len(metadata))
	for key, value := range metadata {
		if isRedactedKey(key) {
			value = "***"
		}
		redacted[key] = value
	}
	return redacted
}

func isRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range redactedMetadataKeys {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// auditRole records actions triggered without a caller, such as timer expiries, as "system".
func auditRole(role string) string {
	if r := normalizeRole(role); r != "" {
		return r
	}
	return "system"
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
