package dto

// GradeRequest carries per-question scores and feedback for an assignment.
type GradeRequest struct {
	Scores       map[uint]float64 `json:"scores"`
	Feedback     map[uint]string  `json:"feedback"`
	TeacherNotes string           `json:"teacher_notes" validate:"max=5000"`
}
