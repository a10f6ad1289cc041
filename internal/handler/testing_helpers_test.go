package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/config"
	"github.com/Soule73/evalium-sub002/internal/middleware"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/repository"
	"github.com/Soule73/evalium-sub002/internal/service"
)

const (
	testSecret    = "handler-secret"
	testTeacherID = 900
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Data    json.RawMessage        `json:"data"`
	Details map[string]interface{} `json:"details"`
}

type memoryFileStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryFileStore) Save(_ context.Context, name string, reader io.Reader, _ int64, _ string) (string, string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = buf.Bytes()
	return name, "https://files.test/" + name, nil
}

func (m *memoryFileStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

type apiEnv struct {
	app          *fiber.App
	db           *gorm.DB
	classSubject models.ClassSubject
	year         models.AcademicYear
	students     []models.Student
	files        *memoryFileStore
	bus          service.AssignmentEventBus
}

func newAPIEnv(t *testing.T, students int) *apiEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	env := &apiEnv{db: db, files: &memoryFileStore{objects: map[string][]byte{}}}
	env.seedSchool(t, students)

	validate := service.NewValidator()
	assessmentRepo := repository.NewAssessmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	authorizer := service.NewRoleAuthorizer()
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	env.bus = service.NewAssignmentEventBus(nil, nil, "", logger)

	assessments := service.NewAssessmentService(assessmentRepo, enrollmentRepo, validate, nil, activity, authorizer, logger)
	assignments := service.NewAssignmentService(service.AssignmentServiceDeps{
		Assessments: assessmentRepo,
		Assignments: assignmentRepo,
		Enrollments: enrollmentRepo,
		Recorder:    service.NewAnswerRecorder(env.files, 1024*1024, logger),
		Timing:      service.NewTimingEvaluator(service.DefaultDurationMinutes),
		Events:      env.bus,
		Audit:       activity,
		Authorizer:  authorizer,
	}, logger)
	grading := service.NewGradingService(service.GradingServiceDeps{
		Assessments: assessmentRepo,
		Assignments: assignmentRepo,
		Validator:   validate,
		Events:      env.bus,
		Audit:       activity,
		Authorizer:  authorizer,
	}, logger)
	monitor, err := service.NewSecurityMonitor(repository.NewSecurityEventRepository(db), assignmentRepo, assignments, env.bus, logger)
	require.NoError(t, err)
	stats := service.NewStatsService(assessmentRepo, assignmentRepo, enrollmentRepo, nil, logger)
	grades := service.NewGradeAggregator(repository.NewGradeRepository(db), nil, logger)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Get("/health", HealthCheck(config.Config{AppName: "evalium", AppEnv: "test"}, nil))

	student := api.Group("/student", middleware.JWTProtected(testSecret), middleware.RequireRole(service.RoleStudent))
	NewAttemptHandler(assignments, assessments, monitor, validate, 1024*1024, logger).Register(student)
	gradesHandler := NewGradesHandler(grades, logger)
	gradesHandler.RegisterSelf(student.Group("/grades"))

	teacher := api.Group("/teacher", middleware.JWTProtected(testSecret), middleware.RequireRole(service.RoleTeacher, service.RoleAdmin))
	NewAssessmentHandler(assessments, logger).Register(teacher.Group("/assessments"))
	NewGradingHandler(assignments, grading, monitor, validate, logger).Register(teacher.Group("/assignments"))
	NewStatsHandler(stats, authorizer, logger).Register(teacher.Group("/stats"))
	gradesHandler.Register(teacher.Group("/grades"))
	NewMonitorHandler(assessments, stats, env.bus, logger).Register(teacher.Group("/monitor"))
	NewActivityHandler(activity, logger).Register(teacher.Group("/activity"))

	env.app = app
	return env
}

func (e *apiEnv) seedSchool(t *testing.T, students int) {
	t.Helper()
	year := models.AcademicYear{
		Name:      "2025-2026",
		StartsOn:  time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndsOn:    time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		IsCurrent: true,
	}
	require.NoError(t, e.db.Create(&year).Error)
	classroom := models.Classroom{AcademicYearID: year.ID, Name: "4A", Level: "4"}
	require.NoError(t, e.db.Create(&classroom).Error)
	subject := models.Subject{Code: "BIO", Name: "Biology"}
	require.NoError(t, e.db.Create(&subject).Error)
	classSubject := models.ClassSubject{ClassroomID: classroom.ID, SubjectID: subject.ID, Coefficient: 3}
	require.NoError(t, e.db.Create(&classSubject).Error)

	e.year = year
	e.classSubject = classSubject
	for i := 0; i < students; i++ {
		student := models.Student{Name: fmt.Sprintf("Pupil %d", i+1), Email: fmt.Sprintf("pupil%d@example.com", i+1)}
		require.NoError(t, e.db.Create(&student).Error)
		require.NoError(t, e.db.Create(&models.Enrollment{
			StudentID:   student.ID,
			ClassroomID: classroom.ID,
			Status:      models.EnrollmentStatusActive,
			EnrolledAt:  year.StartsOn,
		}).Error)
		e.students = append(e.students, student)
	}
}

// quiz stores a published supervised assessment: a one_choice question whose first choice is
// correct and a text question, 10 points each.
func (e *apiEnv) quiz(t *testing.T) models.Assessment {
	t.Helper()
	duration := 45
	assessment := models.Assessment{
		ClassSubjectID:  e.classSubject.ID,
		TeacherID:       testTeacherID,
		Title:           "Ecosystems",
		Type:            models.AssessmentTypeQuiz,
		DeliveryMode:    models.DeliveryModeSupervised,
		Coefficient:     1,
		DurationMinutes: &duration,
		IsPublished:     true,
		Questions: []models.Question{
			{Content: "Primary producers?", Type: models.QuestionTypeOneChoice, Points: 10, OrderIndex: 1, Choices: []models.Choice{
				{Content: "Plants", IsCorrect: true, OrderIndex: 1},
				{Content: "Wolves", OrderIndex: 2},
			}},
			{Content: "Describe a food chain", Type: models.QuestionTypeText, Points: 10, OrderIndex: 2},
		},
	}
	return e.store(t, assessment)
}

// objective stores a published assessment with a single one_choice question.
func (e *apiEnv) objective(t *testing.T) models.Assessment {
	t.Helper()
	duration := 20
	return e.store(t, models.Assessment{
		ClassSubjectID:  e.classSubject.ID,
		TeacherID:       testTeacherID,
		Title:           "Food webs",
		Type:            models.AssessmentTypeExam,
		DeliveryMode:    models.DeliveryModeSupervised,
		Coefficient:     2,
		DurationMinutes: &duration,
		IsPublished:     true,
		Questions: []models.Question{
			{Content: "Top predator?", Type: models.QuestionTypeOneChoice, Points: 10, OrderIndex: 1, Choices: []models.Choice{
				{Content: "Eagle", IsCorrect: true, OrderIndex: 1},
				{Content: "Grass", OrderIndex: 2},
			}},
		},
	})
}

// homework stores a published homework assessment with one file question.
func (e *apiEnv) homework(t *testing.T) models.Assessment {
	t.Helper()
	return e.store(t, models.Assessment{
		ClassSubjectID: e.classSubject.ID,
		TeacherID:      testTeacherID,
		Title:          "Field notes",
		Type:           models.AssessmentTypeHomework,
		DeliveryMode:   models.DeliveryModeHomework,
		Coefficient:    1,
		IsPublished:    true,
		Questions: []models.Question{
			{Content: "Upload your notes", Type: models.QuestionTypeFile, Points: 10, OrderIndex: 1},
		},
	})
}

func (e *apiEnv) store(t *testing.T, assessment models.Assessment) models.Assessment {
	t.Helper()
	repo := repository.NewAssessmentRepository(e.db)
	require.NoError(t, repo.Create(context.Background(), &assessment))
	stored, err := repo.GetByID(context.Background(), assessment.ID)
	require.NoError(t, err)
	return stored
}

func token(t *testing.T, subject uint, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", subject),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *apiEnv) studentToken(t *testing.T, idx int) string {
	return token(t, e.students[idx].ID, service.RoleStudent)
}

func teacherToken(t *testing.T) string {
	return token(t, testTeacherID, service.RoleTeacher)
}

// do sends a JSON request and decodes the response envelope.
func (e *apiEnv) do(t *testing.T, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return e.send(t, req)
}

func (e *apiEnv) send(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	return resp.StatusCode, payload
}

func decodeData(t *testing.T, payload envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(payload.Data, target))
}
