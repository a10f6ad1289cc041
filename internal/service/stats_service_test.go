package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
)

func (e *serviceEnv) stats() StatsService {
	return NewStatsService(e.assessments, e.assignments, e.enrollments, nil, testLogger())
}

// submitPerfect starts and submits a fully correct objective attempt.
func (e *serviceEnv) submitPerfect(t *testing.T, studentID uint, assessment models.Assessment) {
	t.Helper()
	attempt := e.startedAttempt(t, studentID, assessment.ID)
	single, multiple := assessment.Questions[0], assessment.Questions[1]
	_, err := e.lifecycle.Submit(context.Background(), studentID, attempt.ID, dto.SubmitRequest{
		Answers: map[uint]dto.AnswerValue{
			single.ID:   choice(single.Choices[0].ID),
			multiple.ID: choices(multiple.Choices[2].ID, multiple.Choices[3].ID),
		},
	})
	require.NoError(t, err)
}

func TestAssessmentStatsCountsStudentsWithoutRows(t *testing.T) {
	env := newServiceEnv(t, 5)
	assessment := createAssessment(t, env.db, objectiveAssessment(env.school.ClassSubject.ID))
	ctx := context.Background()

	for _, idx := range []int{0, 1} {
		_, err := env.lifecycle.GetOrCreate(ctx, env.student(idx), assessment.ID)
		require.NoError(t, err)
	}

	stats, err := env.stats().AssessmentStats(ctx, assessment.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stats.TotalAssigned)
	require.Equal(t, 5, stats.NotStarted)
	require.Zero(t, stats.InProgress)
	require.Zero(t, stats.Graded)
	require.Nil(t, stats.AverageScore)
	require.Zero(t, stats.CompletionRate)
}

func TestAssessmentStatsTracksProgress(t *testing.T) {
	env := newServiceEnv(t, 5)
	assessment := createAssessment(t, env.db, objectiveAssessment(env.school.ClassSubject.ID))
	ctx := context.Background()

	env.submitPerfect(t, env.student(0), assessment)

	empty := env.startedAttempt(t, env.student(1), assessment.ID)
	_, err := env.lifecycle.Submit(ctx, env.student(1), empty.ID, dto.SubmitRequest{})
	require.NoError(t, err)

	env.startedAttempt(t, env.student(2), assessment.ID)

	stats, err := env.stats().AssessmentStats(ctx, assessment.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stats.TotalAssigned)
	require.Equal(t, 2, stats.Graded)
	require.Equal(t, 1, stats.InProgress)
	require.Equal(t, 2, stats.NotStarted)
	require.NotNil(t, stats.AverageScore)
	require.InDelta(t, 10.0, *stats.AverageScore, 1e-9)
	require.InDelta(t, 40.0, stats.CompletionRate, 1e-9)
}

func TestAssessmentStatsUnknownAssessment(t *testing.T) {
	env := newServiceEnv(t, 1)
	_, err := env.stats().AssessmentStats(context.Background(), 4242)
	require.True(t, errors.Is(err, ErrAssessmentNotFound))
}

func TestComputeStatsIgnoresRowsOutsidePopulation(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	score := 5.0
	assignments := []models.AssessmentAssignment{
		{StudentID: 1, StartedAt: &at, SubmittedAt: &at},
		{StudentID: 2, StartedAt: &at},
		{StudentID: 3, StartedAt: &at, SubmittedAt: &at, GradedAt: &at, Answers: []models.Answer{{Score: &score}, {Score: &score}}},
		{StudentID: 99, StartedAt: &at, SubmittedAt: &at, GradedAt: &at},
	}

	stats := computeStats(7, []uint{1, 2, 3, 3, 4}, assignments)
	require.Equal(t, dto.AssessmentStats{
		AssessmentID:   7,
		TotalAssigned:  4,
		NotStarted:     1,
		InProgress:     1,
		Submitted:      1,
		Graded:         1,
		AverageScore:   stats.AverageScore,
		CompletionRate: 25,
	}, stats)
	require.InDelta(t, 10.0, *stats.AverageScore, 1e-9)

	empty := computeStats(7, nil, assignments)
	require.Zero(t, empty.TotalAssigned)
	require.Zero(t, empty.CompletionRate)
	require.Nil(t, empty.AverageScore)
}

func TestGroupStatsIncludeMembersOutsideClassroom(t *testing.T) {
	env := newServiceEnv(t, 3)
	ctx := context.Background()

	outsider := models.Student{Name: "Visiting learner", Email: "visitor@example.com"}
	require.NoError(t, env.db.Create(&outsider).Error)
	group := models.Group{Name: "Science club"}
	require.NoError(t, env.db.Create(&group).Error)
	for _, studentID := range []uint{env.student(0), outsider.ID} {
		require.NoError(t, env.db.Create(&models.GroupMember{GroupID: group.ID, StudentID: studentID}).Error)
	}

	draft := objectiveAssessment(env.school.ClassSubject.ID)
	draft.Groups = []models.Group{group}
	assessment := createAssessment(t, env.db, draft)
	env.submitPerfect(t, outsider.ID, assessment)

	stats := env.stats()
	overall, err := stats.AssessmentStats(ctx, assessment.ID)
	require.NoError(t, err)
	require.Equal(t, 4, overall.TotalAssigned)
	require.Equal(t, 1, overall.Graded)

	groupStats, err := stats.GroupStats(ctx, assessment.ID, group.ID)
	require.NoError(t, err)
	require.Equal(t, "Science club", groupStats.GroupName)
	require.Equal(t, 2, groupStats.Stats.TotalAssigned)
	require.Equal(t, 1, groupStats.Stats.Graded)
	require.InDelta(t, 50.0, groupStats.Stats.CompletionRate, 1e-9)

	combined, err := stats.ExamStatsWithGroups(ctx, assessment.ID)
	require.NoError(t, err)
	require.Equal(t, overall, combined.Overall)
	require.Len(t, combined.Groups, 1)
	require.Equal(t, groupStats, combined.Groups[0])

	_, err = stats.GroupStats(ctx, assessment.ID, group.ID+50)
	require.True(t, errors.Is(err, ErrGroupNotFound))
}

func TestStudentStatsCoverPublishedAssessments(t *testing.T) {
	env := newServiceEnv(t, 1)
	objective := createAssessment(t, env.db, objectiveAssessment(env.school.ClassSubject.ID))
	createAssessment(t, env.db, mixedAssessment(env.school.ClassSubject.ID))
	draft := objectiveAssessment(env.school.ClassSubject.ID)
	draft.IsPublished = false
	hidden := createAssessment(t, env.db, draft)
	require.NoError(t, env.assessments.SetPublished(context.Background(), hidden.ID, false))

	env.submitPerfect(t, env.student(0), objective)

	stats, err := env.stats().StudentStats(context.Background(), env.student(0), env.school.Classroom.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Graded)
	require.Equal(t, 1, stats.NotStarted)
	require.InDelta(t, 20.0, *stats.AverageScore, 1e-9)
	require.InDelta(t, 50.0, stats.CompletionRate, 1e-9)
}
