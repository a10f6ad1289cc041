package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

// AssessmentService manages the authoring side of assessments.
type AssessmentService interface {
	Create(ctx context.Context, actor Actor, req dto.AssessmentCreateRequest) (dto.AssessmentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.AssessmentResponse, error)
	Update(ctx context.Context, actor Actor, id uint, req dto.AssessmentUpdateRequest) (dto.AssessmentResponse, error)
	Publish(ctx context.Context, actor Actor, id uint, published bool) (dto.AssessmentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type assessmentService struct {
	assessments repository.AssessmentRepository
	enrollments repository.EnrollmentRepository
	validator   *validator.Validate
	cache       ResultCache
	audit       AuditRecorder
	authorizer  Authorizer
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssessmentService constructs the authoring service.
func NewAssessmentService(assessments repository.AssessmentRepository, enrollments repository.EnrollmentRepository, validate *validator.Validate, cache ResultCache, audit AuditRecorder, authorizer Authorizer, logger zerolog.Logger) AssessmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if cache == nil {
		cache = noopResultCache{}
	}
	if authorizer == nil {
		authorizer = NewRoleAuthorizer()
	}
	return &assessmentService{
		assessments: assessments,
		enrollments: enrollments,
		validator:   validate,
		cache:       cache,
		audit:       audit,
		authorizer:  authorizer,
		policy:      bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "assessment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assessmentService) Create(ctx context.Context, actor Actor, req dto.AssessmentCreateRequest) (dto.AssessmentResponse, error) {
	if !s.authorizer.Can(actor, ActionAssessmentManage) {
		return dto.AssessmentResponse{}, ErrForbidden
	}
	assessment, err := s.build(ctx, req)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	assessment.TeacherID = actor.ID

	if err := s.assessments.Create(ctx, &assessment); err != nil {
		s.logger.Error().Err(err).Uint("teacher_id", actor.ID).Msg("failed to create assessment")
		return dto.AssessmentResponse{}, err
	}

	stored, err := s.assessments.GetByID(ctx, assessment.ID)
	if err != nil {
		return dto.AssessmentResponse{}, mapNotFound(err, ErrAssessmentNotFound)
	}
	s.record(ctx, actor, AuditAssessmentCreated, stored, nil)
	return dto.NewAssessmentResponse(stored, true), nil
}

// Get returns the assessment. Students only see published assessments they are eligible for, without
// the correct choices.
func (s *assessmentService) Get(ctx context.Context, actor Actor, id uint) (dto.AssessmentResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, mapNotFound(err, ErrAssessmentNotFound)
	}

	if s.authorizer.Can(actor, ActionAssessmentManage) {
		return dto.NewAssessmentResponse(assessment, true), nil
	}
	if !s.authorizer.Can(actor, ActionAssignmentAttempt) {
		return dto.AssessmentResponse{}, ErrForbidden
	}
	if _, err := checkEligibility(ctx, s.enrollments, actor.ID, assessment); err != nil {
		return dto.AssessmentResponse{}, err
	}
	return dto.NewAssessmentResponse(assessment, false), nil
}

func (s *assessmentService) Update(ctx context.Context, actor Actor, id uint, req dto.AssessmentUpdateRequest) (dto.AssessmentResponse, error) {
	current, err := s.owned(ctx, actor, id)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	locked, err := s.assessments.HasSubmissions(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	if locked {
		return dto.AssessmentResponse{}, ErrAssessmentLocked
	}

	assessment, err := s.build(ctx, req)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	assessment.ID = current.ID
	assessment.TeacherID = current.TeacherID
	assessment.IsPublished = current.IsPublished

	if err := s.assessments.Update(ctx, &assessment); err != nil {
		s.logger.Error().Err(err).Uint("assessment_id", id).Msg("failed to update assessment")
		return dto.AssessmentResponse{}, err
	}

	stored, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, mapNotFound(err, ErrAssessmentNotFound)
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, AuditAssessmentUpdated, stored, nil)
	return dto.NewAssessmentResponse(stored, true), nil
}

func (s *assessmentService) Publish(ctx context.Context, actor Actor, id uint, published bool) (dto.AssessmentResponse, error) {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return dto.AssessmentResponse{}, err
	}
	if err := s.assessments.SetPublished(ctx, id, published); err != nil {
		return dto.AssessmentResponse{}, mapNotFound(err, ErrAssessmentNotFound)
	}

	stored, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, mapNotFound(err, ErrAssessmentNotFound)
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, AuditAssessmentPublished, stored, map[string]interface{}{"published": published})
	return dto.NewAssessmentResponse(stored, true), nil
}

// Delete soft-deletes the assessment. Its graded assignments keep counting in grade averages.
func (s *assessmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	assessment, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.assessments.Delete(ctx, id); err != nil {
		return mapNotFound(err, ErrAssessmentNotFound)
	}
	s.invalidate(ctx, id)
	s.record(ctx, actor, AuditAssessmentDeleted, assessment, nil)
	return nil
}

// owned loads the assessment and checks that the actor may manage it. Teachers manage their own
// assessments; admins manage all of them.
func (s *assessmentService) owned(ctx context.Context, actor Actor, id uint) (models.Assessment, error) {
	if !s.authorizer.Can(actor, ActionAssessmentManage) {
		return models.Assessment{}, ErrForbidden
	}
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return models.Assessment{}, mapNotFound(err, ErrAssessmentNotFound)
	}
	if normalizeRole(actor.Role) != RoleAdmin && assessment.TeacherID != actor.ID {
		return models.Assessment{}, ErrForbidden
	}
	return assessment, nil
}

func (s *assessmentService) build(ctx context.Context, req dto.AssessmentCreateRequest) (models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Assessment{}, err
	}

	assessment := models.Assessment{
		ClassSubjectID:  req.ClassSubjectID,
		Title:           strings.TrimSpace(req.Title),
		Description:     s.policy.Sanitize(strings.TrimSpace(req.Description)),
		Type:            models.AssessmentType(req.Type),
		DeliveryMode:    models.DeliveryMode(req.DeliveryMode),
		Coefficient:     req.Coefficient,
		DurationMinutes: req.DurationMinutes,
		ScheduledAt:     req.ScheduledAt,
		DueDate:         req.DueDate,
		Questions:       make([]models.Question, 0, len(req.Questions)),
	}
	for qidx, item := range req.Questions {
		question := models.Question{
			Content:    s.policy.Sanitize(strings.TrimSpace(item.Content)),
			Type:       models.QuestionType(item.Type),
			Points:     item.Points,
			OrderIndex: qidx + 1,
			Choices:    make([]models.Choice, 0, len(item.Choices)),
		}
		for cidx, choice := range item.Choices {
			question.Choices = append(question.Choices, models.Choice{
				Content:    s.policy.Sanitize(strings.TrimSpace(choice.Content)),
				IsCorrect:  choice.IsCorrect,
				OrderIndex: cidx + 1,
			})
		}
		assessment.Questions = append(assessment.Questions, question)
	}

	if err := assessment.Validate(); err != nil {
		return models.Assessment{}, ErrInvalidAssessment.Withf("%v", err)
	}

	seen := make(map[uint]struct{}, len(req.GroupIDs))
	for _, groupID := range req.GroupIDs {
		if _, ok := seen[groupID]; ok {
			continue
		}
		seen[groupID] = struct{}{}
		group, err := s.enrollments.GetGroup(ctx, groupID)
		if err != nil {
			return models.Assessment{}, mapNotFound(err, ErrGroupNotFound)
		}
		assessment.Groups = append(assessment.Groups, group)
	}

	return assessment, nil
}

func (s *assessmentService) invalidate(ctx context.Context, assessmentID uint) {
	if err := s.cache.InvalidateTags(ctx, AssessmentTag(assessmentID)); err != nil {
		s.logger.Warn().Err(err).Uint("assessment_id", assessmentID).Msg("failed to invalidate cached results")
	}
}

func (s *assessmentService) record(ctx context.Context, actor Actor, action string, assessment models.Assessment, extra map[string]interface{}) {
	metadata := map[string]interface{}{
		"title":            assessment.Title,
		"class_subject_id": assessment.ClassSubjectID,
		"questions":        len(assessment.Questions),
	}
	for key, value := range extra {
		metadata[key] = value
	}
	entityID := assessment.ID
	recordAudit(ctx, s.audit, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "assessment",
		EntityID:   &entityID,
		Metadata:   metadata,
	})
}
