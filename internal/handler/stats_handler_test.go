package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
)

func (e *apiEnv) submitObjective(t *testing.T, studentIdx int, exam models.Assessment) dto.AssignmentResponse {
	t.Helper()
	started := e.startAttempt(t, studentIdx, exam.ID)
	body := map[string]interface{}{
		"answers": map[string]interface{}{
			fmt.Sprint(exam.Questions[0].ID): map[string]interface{}{"choice_id": exam.Questions[0].Choices[0].ID},
		},
	}
	status, payload := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/student/assignments/%d/submit", started.ID), e.studentToken(t, studentIdx), body)
	require.Equal(t, fiber.StatusOK, status, payload.Message)

	var submitted dto.AssignmentResponse
	decodeData(t, payload, &submitted)
	return submitted
}

func TestAssessmentStatsCountEveryEnrolledStudent(t *testing.T) {
	env := newAPIEnv(t, 4)
	exam := env.objective(t)
	env.submitObjective(t, 0, exam)
	env.startAttempt(t, 1, exam.ID)

	status, payload := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/teacher/stats/assessments/%d", exam.ID), teacherToken(t), nil)
	require.Equal(t, fiber.StatusOK, status, payload.Message)

	var stats dto.AssessmentStats
	decodeData(t, payload, &stats)
	require.Equal(t, exam.ID, stats.AssessmentID)
	require.Equal(t, 4, stats.TotalAssigned)
	require.Equal(t, 2, stats.NotStarted)
	require.Equal(t, 1, stats.InProgress)
	require.Equal(t, 1, stats.Graded)
	require.NotNil(t, stats.AverageScore)
	require.InDelta(t, 10, *stats.AverageScore, 0.001)
	require.InDelta(t, 25, stats.CompletionRate, 0.001)

	status, payload = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/teacher/stats/assessments/%d/groups", exam.ID), teacherToken(t), nil)
	require.Equal(t, fiber.StatusOK, status)
	var grouped dto.ExamStatsWithGroups
	decodeData(t, payload, &grouped)
	require.Equal(t, 4, grouped.Overall.TotalAssigned)
	require.Empty(t, grouped.Groups)
}

func TestStatsRoutesRejectUnknownTargets(t *testing.T) {
	env := newAPIEnv(t, 1)
	exam := env.objective(t)

	status, payload := env.do(t, http.MethodGet, "/api/v1/teacher/stats/assessments/777", teacherToken(t), nil)
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "assessment_not_found", payload.Code)

	status, payload = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/teacher/stats/assessments/%d/groups/55", exam.ID), teacherToken(t), nil)
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "group_not_found", payload.Code)

	status, payload = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/teacher/stats/assessments/%d", exam.ID), env.studentToken(t, 0), nil)
	require.Equal(t, fiber.StatusForbidden, status)
	require.Equal(t, "forbidden", payload.Code)
}

func TestStudentStatsSummariseClassroom(t *testing.T) {
	env := newAPIEnv(t, 1)
	exam := env.objective(t)
	env.quiz(t)
	env.submitObjective(t, 0, exam)

	path := fmt.Sprintf("/api/v1/teacher/stats/students/%d/classrooms/%d", env.students[0].ID, env.classSubject.ClassroomID)
	status, payload := env.do(t, http.MethodGet, path, teacherToken(t), nil)
	require.Equal(t, fiber.StatusOK, status, payload.Message)

	var stats dto.StudentStats
	decodeData(t, payload, &stats)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Graded)
	require.Equal(t, 1, stats.NotStarted)
	require.InDelta(t, 50, stats.CompletionRate, 0.001)
}

func TestGradesForStaffAndSelf(t *testing.T) {
	env := newAPIEnv(t, 1)
	exam := env.objective(t)
	env.submitObjective(t, 0, exam)
	studentID := env.students[0].ID

	status, payload := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/teacher/grades/students/%d/class-subjects/%d", studentID, env.classSubject.ID), teacherToken(t), nil)
	require.Equal(t, fiber.StatusOK, status, payload.Message)
	var subject dto.SubjectGradeResponse
	decodeData(t, payload, &subject)
	require.NotNil(t, subject.Grade)
	require.InDelta(t, 10, *subject.Grade, 0.001)

	status, payload = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/student/grades/years/%d/average", env.year.ID), env.studentToken(t, 0), nil)
	require.Equal(t, fiber.StatusOK, status, payload.Message)
	var annual dto.AnnualAverageResponse
	decodeData(t, payload, &annual)
	require.Equal(t, studentID, annual.StudentID)
	require.NotNil(t, annual.Average)
	require.InDelta(t, 10, *annual.Average, 0.001)

	status, payload = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/teacher/grades/students/%d/years/%d/report", studentID, env.year.ID), teacherToken(t), nil)
	require.Equal(t, fiber.StatusOK, status)
	var report dto.StudentReport
	decodeData(t, payload, &report)
	require.Len(t, report.Subjects, 1)
	require.Equal(t, "BIO", report.Subjects[0].SubjectCode)
}
