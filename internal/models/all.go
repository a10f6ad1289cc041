package models

// All lists every model managed by the migrator, in dependency order.
func All() []interface{} {
	return []interface{}{
		&Student{},
		&AcademicYear{},
		&Classroom{},
		&Subject{},
		&ClassSubject{},
		&Enrollment{},
		&Group{},
		&GroupMember{},
		&Assessment{},
		&Question{},
		&Choice{},
		&AssessmentAssignment{},
		&Answer{},
		&SecurityEvent{},
		&AssignmentGradeHistory{},
		&ActivityLog{},
	}
}
