package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/observability"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

const scoreTolerance = 1e-9

// GradingService applies teacher grades to submitted assignments.
type GradingService interface {
	Grade(ctx context.Context, actor Actor, assignmentID uint, req dto.GradeRequest) (dto.AssignmentResponse, error)
	History(ctx context.Context, actor Actor, assignmentID uint) ([]models.AssignmentGradeHistory, error)
}

// GradingServiceDeps groups the collaborators of the grading service.
type GradingServiceDeps struct {
	Assessments repository.AssessmentRepository
	Assignments repository.AssignmentRepository
	Validator   *validator.Validate
	Cache       ResultCache
	Events      AssignmentEventBus
	Audit       AuditRecorder
	Authorizer  Authorizer
}

type gradingService struct {
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	cache       ResultCache
	events      AssignmentEventBus
	audit       AuditRecorder
	authorizer  Authorizer
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(deps GradingServiceDeps, logger zerolog.Logger) GradingService {
	validate := deps.Validator
	if validate == nil {
		validate = NewValidator()
	}
	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = NewRoleAuthorizer()
	}
	cache := deps.Cache
	if cache == nil {
		cache = noopResultCache{}
	}
	return &gradingService{
		assessments: deps.Assessments,
		assignments: deps.Assignments,
		validator:   validate,
		cache:       cache,
		events:      deps.Events,
		audit:       deps.Audit,
		authorizer:  authorizer,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) Grade(ctx context.Context, actor Actor, assignmentID uint, req dto.GradeRequest) (dto.AssignmentResponse, error) {
	tracer := otel.Tracer("github.com/Soule73/evalium-sub002/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.grade")
	span.SetAttributes(
		attribute.Int64("grading.assignment_id", int64(assignmentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	fail := func(err error, status string) (dto.AssignmentResponse, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return dto.AssignmentResponse{}, err
	}

	if !s.authorizer.Can(actor, ActionAssignmentGrade) {
		return fail(ErrForbidden, "forbidden")
	}
	if err := s.validator.Struct(req); err != nil {
		return fail(err, "validation_failed")
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return fail(mapNotFound(err, ErrAssignmentNotFound), "assignment_lookup_failed")
	}
	if assignment.SubmittedAt == nil {
		return fail(ErrNotSubmittedYet, "not_submitted")
	}
	assessment, err := s.assessments.GetByID(ctx, assignment.AssessmentID)
	if err != nil {
		return fail(mapNotFound(err, ErrAssessmentNotFound), "assessment_lookup_failed")
	}

	updates, total, err := s.plan(assessment, assignment, req)
	if err != nil {
		return fail(err, "invalid_scores")
	}

	gradedAt := s.now()
	notes := strings.TrimSpace(s.policy.Sanitize(req.TeacherNotes))
	previous := assignment.Score
	err = s.assignments.Transaction(ctx, func(tx repository.AssignmentRepository) error {
		if err := tx.UpdateAnswerScores(ctx, updates); err != nil {
			return err
		}
		if err := tx.MarkGraded(ctx, assignment.ID, repository.GradeUpdate{
			GradedAt:     gradedAt,
			Score:        total,
			TeacherNotes: notes,
			GradedBy:     actor.ID,
		}); err != nil {
			return mapNotFound(err, ErrNotSubmittedYet)
		}
		return tx.CreateGradeHistory(ctx, &models.AssignmentGradeHistory{
			AssignmentID:  assignment.ID,
			GradedBy:      actor.ID,
			PreviousScore: previous,
			Score:         total,
			Notes:         notes,
			GradedAt:      gradedAt,
		})
	})
	if err != nil {
		return fail(err, "grading_failed")
	}

	assignment, err = s.assignments.GetByID(ctx, assignment.ID)
	if err != nil {
		return fail(mapNotFound(err, ErrAssignmentNotFound), "assignment_reload_failed")
	}

	observability.Transitions().WithLabelValues(string(models.AssignmentStatusGraded)).Inc()
	invalidateAssignment(ctx, s.cache, s.logger, assignment)
	publishAssignmentEvent(ctx, s.events, dto.EventAssignmentGraded, assignment, "", gradedAt)

	entityID := assignment.ID
	metadata := map[string]interface{}{
		"assessment_id": assignment.AssessmentID,
		"student_id":    assignment.StudentID,
		"score":         total,
		"regrade":       previous != nil,
	}
	recordAudit(ctx, s.audit, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     AuditAssignmentGraded,
		EntityType: "assignment",
		EntityID:   &entityID,
		Metadata:   metadata,
	})

	span.SetAttributes(
		attribute.Float64("grading.score", total),
		attribute.Bool("grading.regrade", previous != nil),
	)

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *gradingService) History(ctx context.Context, actor Actor, assignmentID uint) ([]models.AssignmentGradeHistory, error) {
	if !s.authorizer.Can(actor, ActionAssignmentGrade) {
		return nil, ErrForbidden
	}
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		return nil, mapNotFound(err, ErrAssignmentNotFound)
	}
	return s.assignments.ListGradeHistory(ctx, assignmentID)
}

// plan validates the requested scores against the assessment and builds the per-answer writes.
// It returns the answer updates and the new assignment total.
func (s *gradingService) plan(assessment models.Assessment, assignment models.AssessmentAssignment, req dto.GradeRequest) ([]repository.AnswerScoreUpdate, float64, error) {
	for questionID := range req.Scores {
		if _, ok := assessment.QuestionByID(questionID); !ok {
			return nil, 0, ErrQuestionNotFound.Withf("question %d does not belong to this assessment", questionID)
		}
	}
	for questionID := range req.Feedback {
		if _, ok := assessment.QuestionByID(questionID); !ok {
			return nil, 0, ErrQuestionNotFound.Withf("question %d does not belong to this assessment", questionID)
		}
	}

	grouped := groupAnswersByQuestion(assignment.Answers)
	questions := append([]models.Question(nil), assessment.Questions...)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })

	total := 0.0
	var updates []repository.AnswerScoreUpdate
	for _, question := range questions {
		rows := grouped[question.ID]
		requested, hasRequested := req.Scores[question.ID]

		if hasRequested {
			if requested < 0 || requested > question.Points+scoreTolerance {
				return nil, 0, ErrInvalidScore.Withf("score for question %d must be between 0 and %g", question.ID, question.Points)
			}
			if len(rows) == 0 && requested != 0 {
				return nil, 0, ErrInvalidScore.Withf("question %d was not answered", question.ID)
			}
		}
		if len(rows) == 0 {
			continue
		}

		value, known := currentQuestionScore(rows)
		if hasRequested {
			value, known = requested, true
		}
		if !known {
			if question.Type.IsManual() {
				return nil, 0, ErrInvalidScore.Withf("question %d must be scored", question.ID)
			}
			result := ScoreQuestion(question, rows)
			if result.Value != nil {
				value = *result.Value
			}
		}
		total += value

		feedback, hasFeedback := req.Feedback[question.ID]
		if hasFeedback {
			feedback = strings.TrimSpace(s.policy.Sanitize(feedback))
		}
		for idx, share := range DistributeScore(rows, value) {
			score := share
			update := repository.AnswerScoreUpdate{
				AnswerID: rows[idx].ID,
				Score:    &score,
				Feedback: rows[idx].Feedback,
			}
			if hasFeedback && idx == 0 {
				update.Feedback = feedback
			}
			updates = append(updates, update)
		}
	}

	return updates, total, nil
}

// currentQuestionScore sums the stored answer scores of a question. It reports false when none is set.
func currentQuestionScore(rows []models.Answer) (float64, bool) {
	known := false
	scores := make([]*float64, 0, len(rows))
	for _, row := range rows {
		if row.Score != nil {
			known = true
		}
		scores = append(scores, row.Score)
	}
	return SumScores(scores), known
}
