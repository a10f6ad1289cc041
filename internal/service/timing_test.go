package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Soule73/evalium-sub002/internal/models"
)

func TestTimingZeroDurationFallsBackToDefault(t *testing.T) {
	evaluator := NewTimingEvaluator(DefaultDurationMinutes)
	startedAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	assessment := models.Assessment{DeliveryMode: models.DeliveryModeSupervised, DurationMinutes: ptrInt(0)}
	assignment := models.AssessmentAssignment{StartedAt: &startedAt}

	end := evaluator.ComputeEndTime(assessment, assignment)
	require.NotNil(t, end)
	require.Equal(t, startedAt.Add(60*time.Minute), *end)

	remaining := evaluator.RemainingSeconds(assessment, assignment, startedAt.Add(61*time.Minute))
	require.NotNil(t, remaining)
	require.Equal(t, int64(0), *remaining)
	require.True(t, evaluator.IsExpired(assessment, assignment, startedAt.Add(61*time.Minute)))
}

func TestTimingUntimedAssessments(t *testing.T) {
	evaluator := NewTimingEvaluator(DefaultDurationMinutes)
	startedAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	assignment := models.AssessmentAssignment{StartedAt: &startedAt}

	cases := map[string]models.Assessment{
		"no duration":   {DeliveryMode: models.DeliveryModeSupervised},
		"homework mode": {DeliveryMode: models.DeliveryModeHomework, DurationMinutes: ptrInt(45)},
	}
	for name, assessment := range cases {
		t.Run(name, func(t *testing.T) {
			require.Nil(t, evaluator.ComputeEndTime(assessment, assignment))
			require.Nil(t, evaluator.RemainingSeconds(assessment, assignment, startedAt.Add(48*time.Hour)))
			require.False(t, evaluator.IsExpired(assessment, assignment, startedAt.Add(48*time.Hour)))
			require.Zero(t, evaluator.ElapsedPercentage(assessment, assignment, startedAt.Add(time.Hour)))
		})
	}
}

func TestTimingRemainingRoundsUp(t *testing.T) {
	evaluator := NewTimingEvaluator(DefaultDurationMinutes)
	startedAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	assessment := models.Assessment{DurationMinutes: ptrInt(1)}
	assignment := models.AssessmentAssignment{StartedAt: &startedAt}

	remaining := evaluator.RemainingSeconds(assessment, assignment, startedAt.Add(59500*time.Millisecond))
	require.Equal(t, int64(1), *remaining)
	require.False(t, evaluator.IsExpired(assessment, assignment, startedAt.Add(59500*time.Millisecond)))
}

func TestTimingNotStartedHasNoEndTime(t *testing.T) {
	evaluator := NewTimingEvaluator(DefaultDurationMinutes)
	assessment := models.Assessment{DurationMinutes: ptrInt(20)}

	require.Nil(t, evaluator.ComputeEndTime(assessment, models.AssessmentAssignment{}))
	require.False(t, evaluator.IsExpired(assessment, models.AssessmentAssignment{}, time.Now()))
}

func TestTimingElapsedPercentageIsClamped(t *testing.T) {
	evaluator := NewTimingEvaluator(DefaultDurationMinutes)
	startedAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	assessment := models.Assessment{DurationMinutes: ptrInt(40)}
	assignment := models.AssessmentAssignment{StartedAt: &startedAt}

	require.InDelta(t, 25.0, evaluator.ElapsedPercentage(assessment, assignment, startedAt.Add(10*time.Minute)), 1e-9)
	require.Equal(t, 100.0, evaluator.ElapsedPercentage(assessment, assignment, startedAt.Add(3*time.Hour)))
	require.Equal(t, 0.0, evaluator.ElapsedPercentage(assessment, assignment, startedAt.Add(-time.Minute)))
}

func TestTimingAccessWindowIsInclusive(t *testing.T) {
	evaluator := NewTimingEvaluator(DefaultDurationMinutes)
	opens := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	closes := opens.Add(2 * time.Hour)
	assessment := models.Assessment{ScheduledAt: &opens, DueDate: &closes}

	require.False(t, evaluator.IsAccessible(assessment, opens.Add(-time.Second)))
	require.True(t, evaluator.IsAccessible(assessment, opens))
	require.True(t, evaluator.IsAccessible(assessment, closes))
	require.False(t, evaluator.IsAccessible(assessment, closes.Add(time.Second)))
	require.True(t, evaluator.IsAccessible(models.Assessment{}, opens))
}

func TestTimingUntimedClosesAtDueDate(t *testing.T) {
	evaluator := NewTimingEvaluator(DefaultDurationMinutes)
	startedAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	due := startedAt.Add(24 * time.Hour)
	assessment := models.Assessment{DeliveryMode: models.DeliveryModeHomework, DueDate: &due}
	assignment := models.AssessmentAssignment{StartedAt: &startedAt}

	require.False(t, evaluator.IsClosed(assessment, assignment, due))
	require.True(t, evaluator.IsClosed(assessment, assignment, due.Add(time.Minute)))
}

func TestTimingConfiguredFallback(t *testing.T) {
	evaluator := NewTimingEvaluator(90)
	startedAt := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	assessment := models.Assessment{DurationMinutes: ptrInt(-5)}

	timing := evaluator.Evaluate(assessment, models.AssessmentAssignment{StartedAt: &startedAt}, startedAt)
	require.True(t, timing.Timed)
	require.Equal(t, startedAt.Add(90*time.Minute), *timing.EndsAt)
	require.Equal(t, int64(90*60), *timing.RemainingSeconds)
}
