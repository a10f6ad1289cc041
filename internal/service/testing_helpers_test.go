package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrString(v string) *string {
	return &v
}

func ptrInt(v int) *int {
	return &v
}

type testClock struct {
	mu      sync.Mutex
	current time.Time
	tick    time.Duration
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.tick)
	return now
}

// Tick makes every later read move the clock forward by d.
func (c *testClock) Tick(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = d
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

type memoryFileStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryFileStore() *memoryFileStore {
	return &memoryFileStore{objects: map[string][]byte{}}
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
	m.deleted = append(m.deleted, path)
	return nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []dto.AssignmentEvent
}

func (b *recordingBus) Publish(_ context.Context, event dto.AssignmentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) Subscribe(uint) (<-chan dto.AssignmentEvent, func()) {
	ch := make(chan dto.AssignmentEvent)
	return ch, func() {}
}

func (b *recordingBus) Start(context.Context) {}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.events))
	for _, event := range b.events {
		types = append(types, event.Type)
	}
	return types
}

type recordingAudit struct {
	entries []ActivityEntry
}

func (r *recordingAudit) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{Action: entry.Action}, nil
}

type countingCache struct {
	invalidated []string
}

func (c *countingCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }

func (c *countingCache) Set(context.Context, string, interface{}, ...string) error { return nil }

func (c *countingCache) InvalidateTags(_ context.Context, tags ...string) error {
	c.invalidated = append(c.invalidated, tags...)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type schoolFixture struct {
	Year         models.AcademicYear
	Classroom    models.Classroom
	ClassSubject models.ClassSubject
	Students     []models.Student
}

func seedSchool(t *testing.T, db *gorm.DB, students int) schoolFixture {
	t.Helper()

	year := models.AcademicYear{
		Name:      "2025-2026",
		StartsOn:  time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndsOn:    time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		IsCurrent: true,
	}
	require.NoError(t, db.Create(&year).Error)

	classroom := models.Classroom{AcademicYearID: year.ID, Name: "5B", Level: "5"}
	require.NoError(t, db.Create(&classroom).Error)

	subject := models.Subject{Code: "SCI", Name: "Science"}
	require.NoError(t, db.Create(&subject).Error)

	classSubject := models.ClassSubject{ClassroomID: classroom.ID, SubjectID: subject.ID, Coefficient: 2}
	require.NoError(t, db.Create(&classSubject).Error)

	fixture := schoolFixture{Year: year, Classroom: classroom, ClassSubject: classSubject}
	for i := 0; i < students; i++ {
		student := models.Student{Name: fmt.Sprintf("Learner %d", i+1), Email: fmt.Sprintf("learner%d@example.com", i+1)}
		require.NoError(t, db.Create(&student).Error)
		require.NoError(t, db.Create(&models.Enrollment{
			StudentID:   student.ID,
			ClassroomID: classroom.ID,
			Status:      models.EnrollmentStatusActive,
			EnrolledAt:  year.StartsOn,
		}).Error)
		fixture.Students = append(fixture.Students, student)
	}
	return fixture
}

// objectiveAssessment has a one_choice question (first choice correct) and a multiple question whose
// third and fourth choices are correct, both worth 10 points.
func objectiveAssessment(classSubjectID uint) models.Assessment {
	return models.Assessment{
		ClassSubjectID:  classSubjectID,
		TeacherID:       900,
		Title:           "Cells and tissues",
		Type:            models.AssessmentTypeExam,
		DeliveryMode:    models.DeliveryModeSupervised,
		Coefficient:     2,
		DurationMinutes: ptrInt(30),
		IsPublished:     true,
		Questions: []models.Question{
			{Content: "Unit of life?", Type: models.QuestionTypeOneChoice, Points: 10, OrderIndex: 1, Choices: []models.Choice{
				{Content: "Cell", IsCorrect: true, OrderIndex: 1},
				{Content: "Atom", OrderIndex: 2},
			}},
			{Content: "Organelles?", Type: models.QuestionTypeMultiple, Points: 10, OrderIndex: 2, Choices: []models.Choice{
				{Content: "Sand", OrderIndex: 1},
				{Content: "Rock", OrderIndex: 2},
				{Content: "Nucleus", IsCorrect: true, OrderIndex: 3},
				{Content: "Ribosome", IsCorrect: true, OrderIndex: 4},
			}},
		},
	}
}

// mixedAssessment adds a text and a file question to an objective boolean question.
func mixedAssessment(classSubjectID uint) models.Assessment {
	return models.Assessment{
		ClassSubjectID: classSubjectID,
		TeacherID:      900,
		Title:          "Lab report",
		Type:           models.AssessmentTypeHomework,
		DeliveryMode:   models.DeliveryModeHomework,
		Coefficient:    1,
		IsPublished:    true,
		Questions: []models.Question{
			{Content: "Water boils at 100C at sea level", Type: models.QuestionTypeBoolean, Points: 4, OrderIndex: 1, Choices: []models.Choice{
				{Content: "true", IsCorrect: true, OrderIndex: 1},
				{Content: "false", OrderIndex: 2},
			}},
			{Content: "Describe the experiment", Type: models.QuestionTypeText, Points: 6, OrderIndex: 2},
			{Content: "Attach your notes", Type: models.QuestionTypeFile, Points: 10, OrderIndex: 3},
		},
	}
}

func createAssessment(t *testing.T, db *gorm.DB, assessment models.Assessment) models.Assessment {
	t.Helper()
	repo := repository.NewAssessmentRepository(db)
	require.NoError(t, repo.Create(context.Background(), &assessment))
	stored, err := repo.GetByID(context.Background(), assessment.ID)
	require.NoError(t, err)
	return stored
}

type serviceEnv struct {
	db          *gorm.DB
	school      schoolFixture
	clock       *testClock
	files       *memoryFileStore
	bus         *recordingBus
	audit       *recordingAudit
	cache       *countingCache
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	enrollments repository.EnrollmentRepository
	lifecycle   AssignmentService
}

func newServiceEnv(t *testing.T, students int) *serviceEnv {
	t.Helper()
	db := newTestDB(t)
	env := &serviceEnv{
		db:          db,
		school:      seedSchool(t, db, students),
		clock:       newTestClock(),
		files:       newMemoryFileStore(),
		bus:         &recordingBus{},
		audit:       &recordingAudit{},
		cache:       &countingCache{},
		assessments: repository.NewAssessmentRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
	}

	lifecycle := NewAssignmentService(AssignmentServiceDeps{
		Assessments: env.assessments,
		Assignments: env.assignments,
		Enrollments: env.enrollments,
		Recorder:    NewAnswerRecorder(env.files, 1024, testLogger()),
		Timing:      NewTimingEvaluator(DefaultDurationMinutes),
		Cache:       env.cache,
		Events:      env.bus,
		Audit:       env.audit,
	}, testLogger())
	lifecycle.(*assignmentService).now = env.clock.Now
	env.lifecycle = lifecycle
	return env
}

func (e *serviceEnv) student(idx int) uint {
	return e.school.Students[idx].ID
}

func (e *serviceEnv) grading() GradingService {
	svc := NewGradingService(GradingServiceDeps{
		Assessments: e.assessments,
		Assignments: e.assignments,
		Cache:       e.cache,
		Events:      e.bus,
		Audit:       e.audit,
	}, testLogger())
	svc.(*gradingService).now = e.clock.Now
	return svc
}

// startedAttempt creates and starts an attempt for the student.
func (e *serviceEnv) startedAttempt(t *testing.T, studentID, assessmentID uint) dto.AssignmentResponse {
	t.Helper()
	ctx := context.Background()
	created, err := e.lifecycle.GetOrCreate(ctx, studentID, assessmentID)
	require.NoError(t, err)
	started, err := e.lifecycle.Start(ctx, studentID, created.ID)
	require.NoError(t, err)
	return started
}

func choice(id uint) dto.AnswerValue {
	return dto.AnswerValue{ChoiceID: &id}
}

func choices(ids ...uint) dto.AnswerValue {
	return dto.AnswerValue{ChoiceIDs: ids}
}

func text(value string) dto.AnswerValue {
	return dto.AnswerValue{Text: &value}
}

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
