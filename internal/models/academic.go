package models

import "time"

// EnrollmentStatus describes the lifecycle of a student's place in a classroom.
type EnrollmentStatus string

const (
	// EnrollmentStatusActive marks a student currently attending the classroom.
	EnrollmentStatusActive EnrollmentStatus = "active"
	// EnrollmentStatusCompleted marks an enrollment closed at the end of the year.
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	// EnrollmentStatusWithdrawn marks a student who left the classroom.
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
)

// AcademicYear groups classrooms of one school year.
type AcademicYear struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	StartsOn  time.Time `gorm:"not null" json:"starts_on"`
	EndsOn    time.Time `gorm:"not null" json:"ends_on"`
	IsCurrent bool      `gorm:"index" json:"is_current"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Classroom is a class of one academic year.
type Classroom struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	AcademicYearID uint         `gorm:"not null;index" json:"academic_year_id"`
	Name           string       `gorm:"size:128;not null" json:"name"`
	Level          string       `gorm:"size:64" json:"level"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	AcademicYear   AcademicYear `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

// Subject is a discipline taught across classrooms.
type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassSubject binds a subject to a classroom with its weight in the annual average.
type ClassSubject struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClassroomID uint      `gorm:"not null;uniqueIndex:idx_class_subject" json:"classroom_id"`
	SubjectID   uint      `gorm:"not null;uniqueIndex:idx_class_subject" json:"subject_id"`
	TeacherID   *uint     `gorm:"index" json:"teacher_id"`
	Coefficient float64   `gorm:"not null;default:1" json:"coefficient"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Classroom   Classroom `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Subject     Subject   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"subject"`
}

// Enrollment places a student in a classroom.
type Enrollment struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	StudentID   uint             `gorm:"not null;uniqueIndex:idx_enrollment_student_classroom" json:"student_id"`
	ClassroomID uint             `gorm:"not null;uniqueIndex:idx_enrollment_student_classroom;index" json:"classroom_id"`
	Status      EnrollmentStatus `gorm:"size:16;not null;default:active;index" json:"status"`
	EnrolledAt  time.Time        `gorm:"not null" json:"enrolled_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsActive reports whether the enrollment counts towards current populations.
func (e Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive
}

// Group is a cohort of students an assessment can be assigned to.
type Group struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:128;not null" json:"name"`
	ClassroomID *uint         `gorm:"index" json:"classroom_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Members     []GroupMember `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"members,omitempty"`
}

// GroupMember links a student to a group.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_group_member" json:"group_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_group_member;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
