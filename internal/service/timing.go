package service

import (
	"math"
	"time"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
)

// DefaultDurationMinutes is used when a timed assessment carries a non-positive duration.
const DefaultDurationMinutes = 60

// TimingEvaluator computes attempt windows from timestamps. All methods are pure.
type TimingEvaluator struct {
	fallbackMinutes int
}

// NewTimingEvaluator builds an evaluator. Non-positive fallbacks resolve to DefaultDurationMinutes.
func NewTimingEvaluator(fallbackMinutes int) TimingEvaluator {
	if fallbackMinutes <= 0 {
		fallbackMinutes = DefaultDurationMinutes
	}
	return TimingEvaluator{fallbackMinutes: fallbackMinutes}
}

// IsAccessible reports whether now falls inside the inclusive scheduled window.
func (TimingEvaluator) IsAccessible(assessment models.Assessment, now time.Time) bool {
	return assessment.IsAccessible(now)
}

// Duration returns the attempt length, and false when the assessment is untimed.
func (e TimingEvaluator) Duration(assessment models.Assessment) (time.Duration, bool) {
	if !assessment.IsTimed() {
		return 0, false
	}
	minutes := *assessment.DurationMinutes
	if minutes <= 0 {
		minutes = e.fallback()
	}
	return time.Duration(minutes) * time.Minute, true
}

// ComputeEndTime returns started_at plus the duration, or nil when untimed or not started.
func (e TimingEvaluator) ComputeEndTime(assessment models.Assessment, assignment models.AssessmentAssignment) *time.Time {
	duration, timed := e.Duration(assessment)
	if !timed || assignment.StartedAt == nil {
		return nil
	}
	end := assignment.StartedAt.Add(duration)
	return &end
}

// RemainingSeconds is nil when untimed or not started, otherwise clamped at zero.
func (e TimingEvaluator) RemainingSeconds(assessment models.Assessment, assignment models.AssessmentAssignment, now time.Time) *int64 {
	end := e.ComputeEndTime(assessment, assignment)
	if end == nil {
		return nil
	}
	remaining := int64(math.Ceil(end.Sub(now).Seconds()))
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// IsExpired is true once a timed attempt has no time left. Untimed attempts never expire.
func (e TimingEvaluator) IsExpired(assessment models.Assessment, assignment models.AssessmentAssignment, now time.Time) bool {
	remaining := e.RemainingSeconds(assessment, assignment, now)
	return remaining != nil && *remaining == 0
}

// ElapsedPercentage is clamped to [0,100] and is 0 when untimed or not started.
func (e TimingEvaluator) ElapsedPercentage(assessment models.Assessment, assignment models.AssessmentAssignment, now time.Time) float64 {
	duration, timed := e.Duration(assessment)
	if !timed || assignment.StartedAt == nil {
		return 0
	}
	elapsed := now.Sub(*assignment.StartedAt)
	percentage := float64(elapsed) / float64(duration) * 100
	switch {
	case percentage < 0:
		return 0
	case percentage > 100:
		return 100
	default:
		return percentage
	}
}

// IsClosed reports whether an attempt can no longer accept answers: the countdown ran out, or for
// untimed assessments, the due date has passed.
func (e TimingEvaluator) IsClosed(assessment models.Assessment, assignment models.AssessmentAssignment, now time.Time) bool {
	if _, timed := e.Duration(assessment); timed {
		return e.IsExpired(assessment, assignment, now)
	}
	return assessment.DueDate != nil && now.After(*assessment.DueDate)
}

// Evaluate bundles every timing figure for one attempt.
func (e TimingEvaluator) Evaluate(assessment models.Assessment, assignment models.AssessmentAssignment, now time.Time) dto.AttemptTiming {
	_, timed := e.Duration(assessment)
	return dto.AttemptTiming{
		Timed:             timed,
		Accessible:        e.IsAccessible(assessment, now),
		EndsAt:            e.ComputeEndTime(assessment, assignment),
		RemainingSeconds:  e.RemainingSeconds(assessment, assignment, now),
		Expired:           e.IsExpired(assessment, assignment, now),
		ElapsedPercentage: e.ElapsedPercentage(assessment, assignment, now),
	}
}

func (e TimingEvaluator) fallback() int {
	if e.fallbackMinutes <= 0 {
		return DefaultDurationMinutes
	}
	return e.fallbackMinutes
}
