package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

// WeightedValue is one term of a weighted average. A nil Value is excluded from both sums.
type WeightedValue struct {
	Weight float64
	Value  *float64
}

// WeightedAverage returns Σ(weight × value) / Σ(weight) over the non-nil values, or nil when none qualify.
func WeightedAverage(values []WeightedValue) *float64 {
	numerator, denominator := 0.0, 0.0
	for _, term := range values {
		if term.Value == nil || term.Weight <= 0 {
			continue
		}
		numerator += term.Weight * *term.Value
		denominator += term.Weight
	}
	if denominator == 0 {
		return nil
	}
	average := numerator / denominator
	return &average
}

// GradeAggregator computes weighted subject grades and annual averages. It never writes.
type GradeAggregator interface {
	SubjectGrade(ctx context.Context, studentID, classSubjectID uint) (dto.SubjectGradeResponse, error)
	AnnualAverage(ctx context.Context, studentID, academicYearID uint) (dto.AnnualAverageResponse, error)
	StudentReport(ctx context.Context, studentID, academicYearID uint) (dto.StudentReport, error)
}

type gradeAggregator struct {
	grades repository.GradeRepository
	cache  ResultCache
	logger zerolog.Logger
}

// NewGradeAggregator constructs the aggregator. A nil cache disables caching.
func NewGradeAggregator(grades repository.GradeRepository, cache ResultCache, logger zerolog.Logger) GradeAggregator {
	if cache == nil {
		cache = noopResultCache{}
	}
	return &gradeAggregator{
		grades: grades,
		cache:  cache,
		logger: logger.With().Str("component", "grade_aggregator").Logger(),
	}
}

func (a *gradeAggregator) SubjectGrade(ctx context.Context, studentID, classSubjectID uint) (dto.SubjectGradeResponse, error) {
	key := fmt.Sprintf("grades:subject:%d:%d", studentID, classSubjectID)
	var cached dto.SubjectGradeResponse
	if a.lookup(ctx, key, &cached) {
		return cached, nil
	}

	grade, err := a.subjectGrade(ctx, studentID, classSubjectID)
	if err != nil {
		return dto.SubjectGradeResponse{}, err
	}
	response := dto.SubjectGradeResponse{StudentID: studentID, ClassSubjectID: classSubjectID, Grade: grade}
	a.store(ctx, key, response, StudentTag(studentID))
	return response, nil
}

func (a *gradeAggregator) AnnualAverage(ctx context.Context, studentID, academicYearID uint) (dto.AnnualAverageResponse, error) {
	report, err := a.StudentReport(ctx, studentID, academicYearID)
	if err != nil {
		return dto.AnnualAverageResponse{}, err
	}
	return dto.AnnualAverageResponse{
		StudentID:      studentID,
		AcademicYearID: academicYearID,
		Average:        report.Average,
	}, nil
}

func (a *gradeAggregator) StudentReport(ctx context.Context, studentID, academicYearID uint) (dto.StudentReport, error) {
	tracer := otel.Tracer("github.com/Soule73/evalium-sub002/internal/service/grades")
	ctx, span := tracer.Start(ctx, "grades.student_report")
	span.SetAttributes(
		attribute.Int64("grades.student_id", int64(studentID)),
		attribute.Int64("grades.academic_year_id", int64(academicYearID)),
	)
	defer span.End()

	key := fmt.Sprintf("grades:report:%d:%d", studentID, academicYearID)
	var cached dto.StudentReport
	if a.lookup(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("grades.cached", true))
		return cached, nil
	}

	classSubjects, err := a.grades.ClassSubjectsForYear(ctx, studentID, academicYearID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "class_subject_lookup_failed")
		return dto.StudentReport{}, err
	}

	report := dto.StudentReport{
		StudentID:      studentID,
		AcademicYearID: academicYearID,
		Subjects:       make([]dto.SubjectReportLine, 0, len(classSubjects)),
	}
	terms := make([]WeightedValue, 0, len(classSubjects))
	for _, classSubject := range classSubjects {
		grade, err := a.subjectGrade(ctx, studentID, classSubject.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "subject_grade_failed")
			return dto.StudentReport{}, err
		}
		report.Subjects = append(report.Subjects, dto.SubjectReportLine{
			ClassSubjectID: classSubject.ID,
			SubjectCode:    classSubject.Subject.Code,
			SubjectName:    classSubject.Subject.Name,
			Coefficient:    classSubject.Coefficient,
			Grade:          grade,
		})
		terms = append(terms, WeightedValue{Weight: classSubject.Coefficient, Value: grade})
	}
	report.Average = WeightedAverage(terms)

	a.store(ctx, key, report, StudentTag(studentID))
	return report, nil
}

func (a *gradeAggregator) subjectGrade(ctx context.Context, studentID, classSubjectID uint) (*float64, error) {
	scores, err := a.grades.AssessmentScores(ctx, studentID, classSubjectID)
	if err != nil {
		return nil, err
	}
	terms := make([]WeightedValue, 0, len(scores))
	for _, score := range scores {
		terms = append(terms, WeightedValue{Weight: score.Coefficient, Value: score.Score})
	}
	return WeightedAverage(terms), nil
}

func (a *gradeAggregator) lookup(ctx context.Context, key string, target interface{}) bool {
	return cachedLookup(ctx, a.cache, a.logger, key, target)
}

func (a *gradeAggregator) store(ctx context.Context, key string, value interface{}, tags ...string) {
	cachedStore(ctx, a.cache, a.logger, key, value, tags...)
}
