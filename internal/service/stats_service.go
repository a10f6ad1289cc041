package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

// StatsService reports progress on assessments. The population of an assessment is the set of
// enrolled students and group members, not the set of assignment rows.
type StatsService interface {
	AssessmentStats(ctx context.Context, assessmentID uint) (dto.AssessmentStats, error)
	GroupStats(ctx context.Context, assessmentID, groupID uint) (dto.GroupStats, error)
	ExamStatsWithGroups(ctx context.Context, assessmentID uint) (dto.ExamStatsWithGroups, error)
	StudentStats(ctx context.Context, studentID, classroomID uint) (dto.StudentStats, error)
}

type statsService struct {
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	enrollments repository.EnrollmentRepository
	cache       ResultCache
	logger      zerolog.Logger
}

// NewStatsService constructs the statistics service. A nil cache disables caching.
func NewStatsService(assessments repository.AssessmentRepository, assignments repository.AssignmentRepository, enrollments repository.EnrollmentRepository, cache ResultCache, logger zerolog.Logger) StatsService {
	if cache == nil {
		cache = noopResultCache{}
	}
	return &statsService{
		assessments: assessments,
		assignments: assignments,
		enrollments: enrollments,
		cache:       cache,
		logger:      logger.With().Str("component", "stats_service").Logger(),
	}
}

func (s *statsService) AssessmentStats(ctx context.Context, assessmentID uint) (dto.AssessmentStats, error) {
	tracer := otel.Tracer("github.com/Soule73/evalium-sub002/internal/service/stats")
	ctx, span := tracer.Start(ctx, "stats.assessment")
	span.SetAttributes(attribute.Int64("stats.assessment_id", int64(assessmentID)))
	defer span.End()

	key := fmt.Sprintf("stats:assessment:%d", assessmentID)
	var cached dto.AssessmentStats
	if cachedLookup(ctx, s.cache, s.logger, key, &cached) {
		return cached, nil
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		err = mapNotFound(err, ErrAssessmentNotFound)
		span.RecordError(err)
		span.SetStatus(codes.Error, "assessment_lookup_failed")
		return dto.AssessmentStats{}, err
	}

	population, err := s.population(ctx, assessment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "population_lookup_failed")
		return dto.AssessmentStats{}, err
	}
	assignments, err := s.assignments.ListByAssessment(ctx, assessmentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_lookup_failed")
		return dto.AssessmentStats{}, err
	}

	stats := computeStats(assessmentID, population, assignments)
	span.SetAttributes(attribute.Int("stats.total_assigned", stats.TotalAssigned))
	cachedStore(ctx, s.cache, s.logger, key, stats, AssessmentTag(assessmentID))
	return stats, nil
}

func (s *statsService) GroupStats(ctx context.Context, assessmentID, groupID uint) (dto.GroupStats, error) {
	key := fmt.Sprintf("stats:assessment:%d:group:%d", assessmentID, groupID)
	var cached dto.GroupStats
	if cachedLookup(ctx, s.cache, s.logger, key, &cached) {
		return cached, nil
	}

	if _, err := s.assessments.GetByID(ctx, assessmentID); err != nil {
		return dto.GroupStats{}, mapNotFound(err, ErrAssessmentNotFound)
	}
	group, err := s.enrollments.GetGroup(ctx, groupID)
	if err != nil {
		return dto.GroupStats{}, mapNotFound(err, ErrGroupNotFound)
	}
	assignments, err := s.assignments.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return dto.GroupStats{}, err
	}

	stats, err := s.groupStats(ctx, assessmentID, group, assignments)
	if err != nil {
		return dto.GroupStats{}, err
	}
	cachedStore(ctx, s.cache, s.logger, key, stats, AssessmentTag(assessmentID))
	return stats, nil
}

func (s *statsService) ExamStatsWithGroups(ctx context.Context, assessmentID uint) (dto.ExamStatsWithGroups, error) {
	key := fmt.Sprintf("stats:assessment:%d:groups", assessmentID)
	var cached dto.ExamStatsWithGroups
	if cachedLookup(ctx, s.cache, s.logger, key, &cached) {
		return cached, nil
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return dto.ExamStatsWithGroups{}, mapNotFound(err, ErrAssessmentNotFound)
	}
	population, err := s.population(ctx, assessment)
	if err != nil {
		return dto.ExamStatsWithGroups{}, err
	}
	assignments, err := s.assignments.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return dto.ExamStatsWithGroups{}, err
	}

	result := dto.ExamStatsWithGroups{
		Overall: computeStats(assessmentID, population, assignments),
		Groups:  make([]dto.GroupStats, 0, len(assessment.Groups)),
	}
	for _, group := range assessment.Groups {
		stats, err := s.groupStats(ctx, assessmentID, group, assignments)
		if err != nil {
			return dto.ExamStatsWithGroups{}, err
		}
		result.Groups = append(result.Groups, stats)
	}

	cachedStore(ctx, s.cache, s.logger, key, result, AssessmentTag(assessmentID))
	return result, nil
}

func (s *statsService) StudentStats(ctx context.Context, studentID, classroomID uint) (dto.StudentStats, error) {
	key := fmt.Sprintf("stats:student:%d:classroom:%d", studentID, classroomID)
	var cached dto.StudentStats
	if cachedLookup(ctx, s.cache, s.logger, key, &cached) {
		return cached, nil
	}

	assessments, err := s.assessments.ListPublishedByClassroom(ctx, classroomID)
	if err != nil {
		return dto.StudentStats{}, err
	}
	ids := make([]uint, 0, len(assessments))
	tags := []string{StudentTag(studentID)}
	for _, assessment := range assessments {
		ids = append(ids, assessment.ID)
		tags = append(tags, AssessmentTag(assessment.ID))
	}
	assignments, err := s.assignments.ListByStudent(ctx, studentID, ids)
	if err != nil {
		return dto.StudentStats{}, err
	}

	byAssessment := make(map[uint]models.AssessmentAssignment, len(assignments))
	for _, assignment := range assignments {
		byAssessment[assignment.AssessmentID] = assignment
	}

	stats := dto.StudentStats{StudentID: studentID, ClassroomID: classroomID, Total: len(ids)}
	var graded []float64
	for _, id := range ids {
		assignment, ok := byAssessment[id]
		if !ok {
			stats.NotStarted++
			continue
		}
		switch assignment.Status() {
		case models.AssignmentStatusGraded:
			stats.Graded++
			graded = append(graded, summedAnswerScore(assignment))
		case models.AssignmentStatusSubmitted:
			stats.Submitted++
		case models.AssignmentStatusInProgress:
			stats.InProgress++
		default:
			stats.NotStarted++
		}
	}
	stats.AverageScore = mean(graded)
	stats.CompletionRate = completionRate(stats.Graded, stats.Total)

	cachedStore(ctx, s.cache, s.logger, key, stats, tags...)
	return stats, nil
}

func (s *statsService) groupStats(ctx context.Context, assessmentID uint, group models.Group, assignments []models.AssessmentAssignment) (dto.GroupStats, error) {
	members, err := s.enrollments.GroupMemberIDs(ctx, group.ID)
	if err != nil {
		return dto.GroupStats{}, err
	}
	return dto.GroupStats{
		GroupID:   group.ID,
		GroupName: group.Name,
		Stats:     computeStats(assessmentID, members, assignments),
	}, nil
}

// population returns the students an assessment is addressed to: the active enrollments of its
// classroom plus the members of every group it is assigned to.
func (s *statsService) population(ctx context.Context, assessment models.Assessment) ([]uint, error) {
	enrolled, err := s.enrollments.ActiveStudentIDs(ctx, assessment.ClassSubject.ClassroomID)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint]struct{}, len(enrolled))
	population := make([]uint, 0, len(enrolled))
	add := func(ids []uint) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			population = append(population, id)
		}
	}
	add(enrolled)
	for _, group := range assessment.Groups {
		members, err := s.enrollments.GroupMemberIDs(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		add(members)
	}
	sort.Slice(population, func(i, j int) bool { return population[i] < population[j] })
	return population, nil
}

// computeStats counts each member of the population by the state of its assignment. Members with
// no assignment row count as not started; rows of students outside the population are ignored.
func computeStats(assessmentID uint, population []uint, assignments []models.AssessmentAssignment) dto.AssessmentStats {
	byStudent := make(map[uint]models.AssessmentAssignment, len(assignments))
	for _, assignment := range assignments {
		byStudent[assignment.StudentID] = assignment
	}

	stats := dto.AssessmentStats{AssessmentID: assessmentID}
	var graded []float64
	seen := make(map[uint]struct{}, len(population))
	for _, studentID := range population {
		if _, ok := seen[studentID]; ok {
			continue
		}
		seen[studentID] = struct{}{}
		stats.TotalAssigned++

		assignment, ok := byStudent[studentID]
		if !ok {
			stats.NotStarted++
			continue
		}
		switch assignment.Status() {
		case models.AssignmentStatusGraded:
			stats.Graded++
			graded = append(graded, summedAnswerScore(assignment))
		case models.AssignmentStatusSubmitted:
			stats.Submitted++
		case models.AssignmentStatusInProgress:
			stats.InProgress++
		default:
			stats.NotStarted++
		}
	}

	stats.AverageScore = mean(graded)
	stats.CompletionRate = completionRate(stats.Graded, stats.TotalAssigned)
	return stats
}

func summedAnswerScore(assignment models.AssessmentAssignment) float64 {
	scores := make([]*float64, 0, len(assignment.Answers))
	for _, answer := range assignment.Answers {
		scores = append(scores, answer.Score)
	}
	return SumScores(scores)
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	total := 0.0
	for _, value := range values {
		total += value
	}
	average := total / float64(len(values))
	return &average
}

func completionRate(graded, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(graded) / float64(total) * 100
}
