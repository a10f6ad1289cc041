package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/observability"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

// Force-submit reasons that are not client-reported violations.
const (
	ReasonTimeExpired         = "time_expired"
	ReasonTeacherIntervention = "teacher_intervention"
)

// AssignmentView is either a stored attempt or a virtual one that will be created on first access.
type AssignmentView interface {
	isAssignmentView()
}

// PersistedAssignment wraps an attempt that exists in storage.
type PersistedAssignment struct {
	Assignment models.AssessmentAssignment
	Accessible bool
}

// VirtualAssignment describes an attempt the student may open but has not yet.
type VirtualAssignment struct {
	AssessmentID uint
	StudentID    uint
	Accessible   bool
}

func (PersistedAssignment) isAssignmentView() {}
func (VirtualAssignment) isAssignmentView()   {}

// NewAssignmentViewResponse converts a view into its transport form.
func NewAssignmentViewResponse(view AssignmentView) dto.AssignmentViewResponse {
	switch v := view.(type) {
	case PersistedAssignment:
		response := dto.NewAssignmentResponse(v.Assignment)
		return dto.AssignmentViewResponse{
			Persisted:    true,
			AssessmentID: v.Assignment.AssessmentID,
			StudentID:    v.Assignment.StudentID,
			Status:       response.Status,
			Accessible:   v.Accessible,
			Assignment:   &response,
		}
	case VirtualAssignment:
		return dto.AssignmentViewResponse{
			AssessmentID: v.AssessmentID,
			StudentID:    v.StudentID,
			Status:       string(models.AssignmentStatusNotStarted),
			Accessible:   v.Accessible,
		}
	default:
		return dto.AssignmentViewResponse{}
	}
}

// AssignmentService owns the attempt lifecycle: not_started, in_progress, submitted, graded.
type AssignmentService interface {
	GetOrCreate(ctx context.Context, studentID, assessmentID uint) (dto.AssignmentResponse, error)
	Peek(ctx context.Context, studentID, assessmentID uint) (AssignmentView, error)
	Get(ctx context.Context, assignmentID uint) (dto.AssignmentResponse, error)
	GetForStudent(ctx context.Context, studentID, assignmentID uint) (dto.AssignmentResponse, error)
	Start(ctx context.Context, studentID, assignmentID uint) (dto.AssignmentResponse, error)
	RecordAnswers(ctx context.Context, studentID, assignmentID uint, req dto.RecordAnswersRequest) (dto.AssignmentResponse, error)
	RecordFileAnswer(ctx context.Context, studentID, assignmentID uint, upload dto.FileAnswerUpload) (dto.AnswerResponse, error)
	Submit(ctx context.Context, studentID, assignmentID uint, req dto.SubmitRequest) (dto.AssignmentResponse, error)
	ForceSubmit(ctx context.Context, assignmentID uint, reason string) (dto.AssignmentResponse, error)
	ForceSubmitAs(ctx context.Context, actor Actor, assignmentID uint, reason string) (dto.AssignmentResponse, error)
	ExpireIfOverdue(ctx context.Context, assignmentID uint) (bool, error)
	Timing(ctx context.Context, studentID, assignmentID uint) (dto.AttemptTiming, error)
}

// AssignmentServiceDeps groups the collaborators of the assignment service.
type AssignmentServiceDeps struct {
	Assessments repository.AssessmentRepository
	Assignments repository.AssignmentRepository
	Enrollments repository.EnrollmentRepository
	Recorder    AnswerRecorder
	Timing      TimingEvaluator
	Cache       ResultCache
	Events      AssignmentEventBus
	Audit       AuditRecorder
	Authorizer  Authorizer
}

type assignmentService struct {
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	enrollments repository.EnrollmentRepository
	recorder    AnswerRecorder
	timing      TimingEvaluator
	cache       ResultCache
	events      AssignmentEventBus
	audit       AuditRecorder
	authorizer  Authorizer
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAssignmentService constructs the assignment state machine.
func NewAssignmentService(deps AssignmentServiceDeps, logger zerolog.Logger) AssignmentService {
	cache := deps.Cache
	if cache == nil {
		cache = noopResultCache{}
	}
	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = NewRoleAuthorizer()
	}
	return &assignmentService{
		assessments: deps.Assessments,
		assignments: deps.Assignments,
		enrollments: deps.Enrollments,
		recorder:    deps.Recorder,
		timing:      deps.Timing,
		cache:       cache,
		events:      deps.Events,
		audit:       deps.Audit,
		authorizer:  authorizer,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		tracer:      otel.Tracer("github.com/Soule73/evalium-sub002/internal/service/assignment"),
		now:         time.Now,
	}
}

func (s *assignmentService) GetOrCreate(ctx context.Context, studentID, assessmentID uint) (dto.AssignmentResponse, error) {
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	enrollmentID, err := s.eligibility(ctx, studentID, assessment)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.AssessmentAssignment{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		EnrollmentID: enrollmentID,
		AssignedAt:   s.now(),
	}
	if err := s.assignments.FirstOrCreate(ctx, &assignment); err != nil {
		s.logger.Error().Err(err).Uint("assessment_id", assessmentID).Uint("student_id", studentID).Msg("failed to create assignment")
		return dto.AssignmentResponse{}, err
	}

	return s.respond(assignment, assessment), nil
}

func (s *assignmentService) Peek(ctx context.Context, studentID, assessmentID uint) (AssignmentView, error) {
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.eligibility(ctx, studentID, assessment); err != nil {
		return nil, err
	}

	accessible := s.timing.IsAccessible(assessment, s.now())
	assignment, err := s.assignments.FindByStudentAndAssessment(ctx, studentID, assessmentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return VirtualAssignment{AssessmentID: assessmentID, StudentID: studentID, Accessible: accessible}, nil
	}
	if err != nil {
		return nil, err
	}
	return PersistedAssignment{Assignment: assignment, Accessible: accessible}, nil
}

func (s *assignmentService) Get(ctx context.Context, assignmentID uint) (dto.AssignmentResponse, error) {
	assignment, assessment, err := s.load(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return s.respond(assignment, assessment), nil
}

func (s *assignmentService) GetForStudent(ctx context.Context, studentID, assignmentID uint) (dto.AssignmentResponse, error) {
	assignment, assessment, err := s.loadOwned(ctx, studentID, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return s.respond(assignment, assessment), nil
}

func (s *assignmentService) Start(ctx context.Context, studentID, assignmentID uint) (dto.AssignmentResponse, error) {
	assignment, assessment, err := s.loadOwned(ctx, studentID, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if assignment.SubmittedAt != nil {
		return dto.AssignmentResponse{}, ErrAlreadySubmitted
	}
	if assignment.StartedAt != nil {
		return s.respond(assignment, assessment), nil
	}

	now := s.now()
	if !s.timing.IsAccessible(assessment, now) {
		return dto.AssignmentResponse{}, ErrAssessmentNotAccessible
	}

	started, err := s.assignments.MarkStarted(ctx, assignment.ID, now)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err = s.reload(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if started {
		observability.Transitions().WithLabelValues(string(models.AssignmentStatusInProgress)).Inc()
		s.publish(ctx, dto.EventAssignmentStarted, assignment, "")
		s.invalidate(ctx, assignment)
	}
	return s.respond(assignment, assessment), nil
}

func (s *assignmentService) RecordAnswers(ctx context.Context, studentID, assignmentID uint, req dto.RecordAnswersRequest) (dto.AssignmentResponse, error) {
	assignment, assessment, err := s.loadOwned(ctx, studentID, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	now := s.now()
	implicitStart, err := s.checkWritable(assignment, assessment, now)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	var orphans []string
	err = s.assignments.Transaction(ctx, func(tx repository.AssignmentRepository) error {
		if err := s.openForWrite(ctx, tx, assignment, implicitStart, now); err != nil {
			return err
		}
		removed, err := s.recorder.SaveAnswers(ctx, tx, assignment, assessment, req.Answers)
		if err != nil {
			return err
		}
		orphans = removed
		return nil
	})
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	s.recorder.DiscardFiles(ctx, orphans)

	assignment, err = s.reload(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return s.respond(assignment, assessment), nil
}

func (s *assignmentService) RecordFileAnswer(ctx context.Context, studentID, assignmentID uint, upload dto.FileAnswerUpload) (dto.AnswerResponse, error) {
	assignment, assessment, err := s.loadOwned(ctx, studentID, assignmentID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	now := s.now()
	implicitStart, err := s.checkWritable(assignment, assessment, now)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	question, ok := assessment.QuestionByID(upload.QuestionID)
	if !ok {
		return dto.AnswerResponse{}, ErrQuestionNotFound
	}

	answer, err := s.recorder.StoreFile(ctx, assignment, question, upload)
	if err != nil {
		return dto.AnswerResponse{}, err
	}

	var orphans []string
	err = s.assignments.Transaction(ctx, func(tx repository.AssignmentRepository) error {
		if err := s.openForWrite(ctx, tx, assignment, implicitStart, now); err != nil {
			return err
		}
		removed, err := s.recorder.SaveFileAnswer(ctx, tx, assignment, question, answer)
		if err != nil {
			return err
		}
		orphans = removed
		return nil
	})
	if err != nil {
		s.recorder.DiscardFiles(ctx, []string{answer.FilePath})
		return dto.AnswerResponse{}, err
	}
	s.recorder.DiscardFiles(ctx, orphans)

	answers, err := s.assignments.ListAnswers(ctx, assignment.ID)
	if err != nil {
		return dto.AnswerResponse{}, err
	}
	for _, stored := range answers {
		if stored.QuestionID == question.ID {
			return dto.NewAnswerResponse(stored), nil
		}
	}
	return dto.NewAnswerResponse(answer), nil
}

func (s *assignmentService) Submit(ctx context.Context, studentID, assignmentID uint, req dto.SubmitRequest) (dto.AssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.submit", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignmentID)),
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	started := time.Now()
	defer func() {
		observability.SubmitLatency().Observe(time.Since(started).Seconds())
	}()

	assignment, assessment, err := s.loadOwned(ctx, studentID, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, s.fail(span, err)
	}
	if assignment.SubmittedAt != nil {
		return dto.AssignmentResponse{}, s.fail(span, ErrAlreadySubmitted)
	}

	now := s.now()
	implicitStart := false
	if assignment.StartedAt == nil {
		if assessment.DeliveryMode != models.DeliveryModeHomework {
			return dto.AssignmentResponse{}, s.fail(span, ErrNotStarted)
		}
		if !s.timing.IsAccessible(assessment, now) {
			return dto.AssignmentResponse{}, s.fail(span, ErrAssessmentNotAccessible)
		}
		implicitStart = true
	}

	closed := !implicitStart && s.timing.IsClosed(assessment, assignment, now)
	if closed && len(req.Answers) > 0 {
		s.logger.Warn().
			Uint("assignment_id", assignment.ID).
			Int("answers", len(req.Answers)).
			Msg("ignoring answers sent after the attempt closed")
	}

	var orphans []string
	autoGraded := false
	err = s.assignments.Transaction(ctx, func(tx repository.AssignmentRepository) error {
		if err := s.openForWrite(ctx, tx, assignment, implicitStart, now); err != nil {
			return err
		}
		if !closed && len(req.Answers) > 0 {
			removed, err := s.recorder.SaveAnswers(ctx, tx, assignment, assessment, req.Answers)
			if err != nil {
				return err
			}
			orphans = removed
		}

		autoScore, err := s.scoreAndStore(ctx, tx, assignment.ID, assessment)
		if err != nil {
			return err
		}

		update := repository.SubmissionUpdate{SubmittedAt: now, AutoScore: &autoScore}
		if !assessment.HasManualQuestions() {
			final := autoScore
			update.Score = &final
			update.GradedAt = &now
			autoGraded = true
		}

		ok, err := tx.MarkSubmitted(ctx, assignment.ID, update)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadySubmitted
		}
		return nil
	})
	if err != nil {
		return dto.AssignmentResponse{}, s.fail(span, err)
	}
	s.recorder.DiscardFiles(ctx, orphans)

	assignment, err = s.reload(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, s.fail(span, err)
	}

	observability.Transitions().WithLabelValues(string(models.AssignmentStatusSubmitted)).Inc()
	if autoGraded {
		observability.Transitions().WithLabelValues(string(models.AssignmentStatusGraded)).Inc()
	}
	s.invalidate(ctx, assignment)
	s.publish(ctx, dto.EventAssignmentSubmitted, assignment, "")

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("student_id", assignment.StudentID).
		Bool("auto_graded", autoGraded).
		Msg("assignment submitted")

	return s.respond(assignment, assessment), nil
}

func (s *assignmentService) ForceSubmit(ctx context.Context, assignmentID uint, reason string) (dto.AssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.force_submit", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignmentID)),
		attribute.String("assignment.reason", reason),
	))
	defer span.End()

	assignment, assessment, err := s.load(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentResponse{}, s.fail(span, err)
	}
	if assignment.SubmittedAt != nil {
		return dto.AssignmentResponse{}, s.fail(span, ErrAlreadySubmitted)
	}
	if assignment.StartedAt == nil {
		return dto.AssignmentResponse{}, s.fail(span, ErrNotStarted)
	}

	now := s.now()
	violation := reason
	err = s.assignments.Transaction(ctx, func(tx repository.AssignmentRepository) error {
		autoScore, err := s.scoreAndStore(ctx, tx, assignment.ID, assessment)
		if err != nil {
			return err
		}
		ok, err := tx.MarkSubmitted(ctx, assignment.ID, repository.SubmissionUpdate{
			SubmittedAt:       now,
			AutoScore:         &autoScore,
			Forced:            true,
			SecurityViolation: &violation,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadySubmitted
		}
		return nil
	})
	if err != nil {
		return dto.AssignmentResponse{}, s.fail(span, err)
	}

	assignment, err = s.reload(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, s.fail(span, err)
	}

	observability.Transitions().WithLabelValues("force_submitted").Inc()
	s.invalidate(ctx, assignment)
	s.publish(ctx, dto.EventAssignmentForceSubmitted, assignment, reason)

	s.logger.Warn().
		Uint("assignment_id", assignment.ID).
		Uint("student_id", assignment.StudentID).
		Str("reason", reason).
		Msg("assignment force submitted")

	return s.respond(assignment, assessment), nil
}

func (s *assignmentService) ForceSubmitAs(ctx context.Context, actor Actor, assignmentID uint, reason string) (dto.AssignmentResponse, error) {
	if !s.authorizer.Can(actor, ActionAssignmentForce) {
		return dto.AssignmentResponse{}, ErrForbidden
	}
	response, err := s.ForceSubmit(ctx, assignmentID, reason)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	entityID := response.ID
	recordAudit(ctx, s.audit, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     AuditAssignmentForced,
		EntityType: "assignment",
		EntityID:   &entityID,
		Metadata:   map[string]interface{}{"reason": reason, "student_id": response.StudentID},
	})
	return response, nil
}

func (s *assignmentService) ExpireIfOverdue(ctx context.Context, assignmentID uint) (bool, error) {
	assignment, assessment, err := s.load(ctx, assignmentID)
	if err != nil {
		return false, err
	}
	if assignment.SubmittedAt != nil || assignment.StartedAt == nil {
		return false, nil
	}
	if !s.timing.IsExpired(assessment, assignment, s.now()) {
		return false, nil
	}

	if _, err := s.ForceSubmit(ctx, assignmentID, ReasonTimeExpired); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *assignmentService) Timing(ctx context.Context, studentID, assignmentID uint) (dto.AttemptTiming, error) {
	assignment, assessment, err := s.loadOwned(ctx, studentID, assignmentID)
	if err != nil {
		return dto.AttemptTiming{}, err
	}
	return s.timing.Evaluate(assessment, assignment, s.now()), nil
}

// checkWritable validates that answers may still be written and reports whether the attempt must be
// started implicitly (homework delivery).
func (s *assignmentService) checkWritable(assignment models.AssessmentAssignment, assessment models.Assessment, now time.Time) (bool, error) {
	if assignment.SubmittedAt != nil {
		return false, ErrAlreadySubmitted
	}
	if assignment.StartedAt == nil {
		if assessment.DeliveryMode != models.DeliveryModeHomework {
			return false, ErrNotStarted
		}
		if !s.timing.IsAccessible(assessment, now) {
			return false, ErrAssessmentNotAccessible
		}
		return true, nil
	}
	if s.timing.IsClosed(assessment, assignment, now) {
		return false, ErrTimeExpired
	}
	return false, nil
}

// openForWrite starts the attempt or takes the row lock, failing when it was submitted meanwhile.
// now is the caller's single clock reading for the operation.
func (s *assignmentService) openForWrite(ctx context.Context, tx repository.AssignmentRepository, assignment models.AssessmentAssignment, implicitStart bool, now time.Time) error {
	if implicitStart {
		if _, err := tx.MarkStarted(ctx, assignment.ID, now); err != nil {
			return err
		}
	}
	ok, err := tx.LockOpen(ctx, assignment.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadySubmitted
	}
	return nil
}

// scoreAndStore auto-scores every objective question from the stored answers, writes per-answer
// scores and returns the objective total.
func (s *assignmentService) scoreAndStore(ctx context.Context, tx repository.AssignmentRepository, assignmentID uint, assessment models.Assessment) (float64, error) {
	answers, err := tx.ListAnswers(ctx, assignmentID)
	if err != nil {
		return 0, err
	}
	grouped := groupAnswersByQuestion(answers)

	total := 0.0
	var updates []repository.AnswerScoreUpdate
	for _, question := range assessment.Questions {
		rows := grouped[question.ID]
		result := ScoreQuestion(question, rows)
		if result.Value == nil {
			continue
		}
		if result.Duplicates > 0 {
			observability.ScoringDuplicates().Add(float64(result.Duplicates))
			s.logger.Error().
				Uint("assignment_id", assignmentID).
				Uint("question_id", question.ID).
				Int("duplicates", result.Duplicates).
				Msg("several answers stored for a single-choice question; only the first is scored")
		}
		total += *result.Value
		for idx, value := range DistributeScore(rows, *result.Value) {
			score := value
			updates = append(updates, repository.AnswerScoreUpdate{
				AnswerID: rows[idx].ID,
				Score:    &score,
				Feedback: rows[idx].Feedback,
			})
		}
	}

	if err := tx.UpdateAnswerScores(ctx, updates); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *assignmentService) eligibility(ctx context.Context, studentID uint, assessment models.Assessment) (*uint, error) {
	return checkEligibility(ctx, s.enrollments, studentID, assessment)
}

// checkEligibility decides whether a student may take an assessment: it must be published and the
// student must hold an active enrollment in its classroom or belong to one of its groups. The
// enrollment id is returned when eligibility comes from an enrollment.
func checkEligibility(ctx context.Context, enrollments repository.EnrollmentRepository, studentID uint, assessment models.Assessment) (*uint, error) {
	if !assessment.IsPublished {
		return nil, ErrAssessmentNotFound
	}

	enrollment, err := enrollments.FindActive(ctx, studentID, assessment.ClassSubject.ClassroomID)
	if err == nil {
		id := enrollment.ID
		return &id, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	groupIDs := make([]uint, 0, len(assessment.Groups))
	for _, group := range assessment.Groups {
		groupIDs = append(groupIDs, group.ID)
	}
	member, err := enrollments.IsGroupMember(ctx, studentID, groupIDs)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotEnrolled
	}
	return nil, nil
}

func (s *assignmentService) loadAssessment(ctx context.Context, assessmentID uint) (models.Assessment, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return models.Assessment{}, mapNotFound(err, ErrAssessmentNotFound)
	}
	return assessment, nil
}

func (s *assignmentService) load(ctx context.Context, assignmentID uint) (models.AssessmentAssignment, models.Assessment, error) {
	assignment, err := s.reload(ctx, assignmentID)
	if err != nil {
		return models.AssessmentAssignment{}, models.Assessment{}, err
	}
	assessment, err := s.loadAssessment(ctx, assignment.AssessmentID)
	if err != nil {
		return models.AssessmentAssignment{}, models.Assessment{}, err
	}
	return assignment, assessment, nil
}

func (s *assignmentService) loadOwned(ctx context.Context, studentID, assignmentID uint) (models.AssessmentAssignment, models.Assessment, error) {
	assignment, assessment, err := s.load(ctx, assignmentID)
	if err != nil {
		return models.AssessmentAssignment{}, models.Assessment{}, err
	}
	if assignment.StudentID != studentID {
		return models.AssessmentAssignment{}, models.Assessment{}, ErrAssignmentNotFound
	}
	return assignment, assessment, nil
}

func (s *assignmentService) reload(ctx context.Context, assignmentID uint) (models.AssessmentAssignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return models.AssessmentAssignment{}, mapNotFound(err, ErrAssignmentNotFound)
	}
	return assignment, nil
}

func (s *assignmentService) respond(assignment models.AssessmentAssignment, assessment models.Assessment) dto.AssignmentResponse {
	response := dto.NewAssignmentResponse(assignment)
	timing := s.timing.Evaluate(assessment, assignment, s.now())
	response.Timing = &timing
	return response
}

func (s *assignmentService) invalidate(ctx context.Context, assignment models.AssessmentAssignment) {
	invalidateAssignment(ctx, s.cache, s.logger, assignment)
}

func (s *assignmentService) publish(ctx context.Context, eventType string, assignment models.AssessmentAssignment, detail string) {
	publishAssignmentEvent(ctx, s.events, eventType, assignment, detail, s.now())
}

// invalidateAssignment drops cached stats and grades touched by a change to the assignment.
func invalidateAssignment(ctx context.Context, cache ResultCache, logger zerolog.Logger, assignment models.AssessmentAssignment) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateTags(ctx, AssessmentTag(assignment.AssessmentID), StudentTag(assignment.StudentID)); err != nil {
		logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to invalidate cached results")
	}
}

func publishAssignmentEvent(ctx context.Context, bus AssignmentEventBus, eventType string, assignment models.AssessmentAssignment, detail string, at time.Time) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, dto.AssignmentEvent{
		Type:         eventType,
		AssignmentID: assignment.ID,
		AssessmentID: assignment.AssessmentID,
		StudentID:    assignment.StudentID,
		Status:       string(assignment.Status()),
		Detail:       detail,
		OccurredAt:   at.UTC(),
	})
}

func (s *assignmentService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
