package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Soule73/evalium-sub002/internal/models"
)

func TestGradeRepositoryAssessmentScoresIncludeDeletedAssessments(t *testing.T) {
	db := newTestDB(t)
	school := seedSchool(t, db, 1)
	ctx := context.Background()
	assessments := NewAssessmentRepository(db)
	student := school.Students[0]

	graded := sampleAssessment(school.ClassSubject.ID)
	pending := sampleAssessment(school.ClassSubject.ID)
	removed := sampleAssessment(school.ClassSubject.ID)
	removed.Coefficient = 4
	for _, item := range []*models.Assessment{&graded, &pending, &removed} {
		require.NoError(t, assessments.Create(ctx, item))
	}

	now := time.Now()
	score := 14.0
	other := 8.0
	require.NoError(t, db.Create(&models.AssessmentAssignment{AssessmentID: graded.ID, StudentID: student.ID, AssignedAt: now, SubmittedAt: &now, GradedAt: &now, Score: &score}).Error)
	require.NoError(t, db.Create(&models.AssessmentAssignment{AssessmentID: pending.ID, StudentID: student.ID, AssignedAt: now, SubmittedAt: &now, Score: &other}).Error)
	require.NoError(t, db.Create(&models.AssessmentAssignment{AssessmentID: removed.ID, StudentID: student.ID, AssignedAt: now, SubmittedAt: &now, GradedAt: &now, Score: &other}).Error)
	require.NoError(t, assessments.Delete(ctx, removed.ID))

	scores, err := NewGradeRepository(db).AssessmentScores(ctx, student.ID, school.ClassSubject.ID)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	require.Equal(t, graded.ID, scores[0].AssessmentID)
	require.InDelta(t, 14.0, *scores[0].Score, 0.0001)
	require.Nil(t, scores[1].Score, "submitted but ungraded score must not be reported")
	require.Equal(t, 4.0, scores[2].Coefficient)
	require.NotNil(t, scores[2].Score)
}

func TestGradeRepositoryClassSubjectsForYear(t *testing.T) {
	db := newTestDB(t)
	school := seedSchool(t, db, 2)
	ctx := context.Background()
	repo := NewGradeRepository(db)

	require.NoError(t, db.Model(&models.Enrollment{}).
		Where("student_id = ?", school.Students[1].ID).
		Update("status", models.EnrollmentStatusWithdrawn).Error)

	items, err := repo.ClassSubjectsForYear(ctx, school.Students[0].ID, school.Year.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "MATH", items[0].Subject.Code)

	items, err = repo.ClassSubjectsForYear(ctx, school.Students[1].ID, school.Year.ID)
	require.NoError(t, err)
	require.Empty(t, items)

	items, err = repo.ClassSubjectsForYear(ctx, school.Students[0].ID, school.Year.ID+1)
	require.NoError(t, err)
	require.Empty(t, items)
}
