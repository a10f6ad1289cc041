package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/models"
)

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

	classroom := models.Classroom{AcademicYearID: year.ID, Name: "6A", Level: "6"}
	require.NoError(t, db.Create(&classroom).Error)

	subject := models.Subject{Code: "MATH", Name: "Mathematics"}
	require.NoError(t, db.Create(&subject).Error)

	classSubject := models.ClassSubject{ClassroomID: classroom.ID, SubjectID: subject.ID, Coefficient: 3}
	require.NoError(t, db.Create(&classSubject).Error)

	fixture := schoolFixture{Year: year, Classroom: classroom, ClassSubject: classSubject}
	for i := 0; i < students; i++ {
		student := models.Student{Name: fmt.Sprintf("Student %d", i+1), Email: fmt.Sprintf("student%d@example.com", i+1)}
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

func sampleAssessment(classSubjectID uint) models.Assessment {
	duration := 30
	return models.Assessment{
		ClassSubjectID:  classSubjectID,
		TeacherID:       7,
		Title:           "Fractions quiz",
		Type:            models.AssessmentTypeQuiz,
		DeliveryMode:    models.DeliveryModeSupervised,
		Coefficient:     2,
		DurationMinutes: &duration,
		IsPublished:     true,
		Questions: []models.Question{
			{Content: "Second", Type: models.QuestionTypeText, Points: 5, OrderIndex: 2},
			{Content: "First", Type: models.QuestionTypeOneChoice, Points: 10, OrderIndex: 1, Choices: []models.Choice{
				{Content: "1/2", IsCorrect: true, OrderIndex: 1},
				{Content: "1/3", OrderIndex: 2},
			}},
		},
	}
}
