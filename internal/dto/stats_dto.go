package dto

// AssessmentStats summarises the progress of a population on one assessment.
type AssessmentStats struct {
	AssessmentID   uint     `json:"assessment_id"`
	TotalAssigned  int      `json:"total_assigned"`
	NotStarted     int      `json:"not_started"`
	InProgress     int      `json:"in_progress"`
	Submitted      int      `json:"submitted"`
	Graded         int      `json:"graded"`
	AverageScore   *float64 `json:"average_score"`
	CompletionRate float64  `json:"completion_rate"`
}

// GroupStats is AssessmentStats restricted to one group.
type GroupStats struct {
	GroupID   uint            `json:"group_id"`
	GroupName string          `json:"group_name"`
	Stats     AssessmentStats `json:"stats"`
}

// ExamStatsWithGroups combines the overall population with a per-group breakdown.
type ExamStatsWithGroups struct {
	Overall AssessmentStats `json:"overall"`
	Groups  []GroupStats    `json:"groups"`
}

// StudentStats summarises one student's progress across a classroom's published assessments.
type StudentStats struct {
	StudentID      uint     `json:"student_id"`
	ClassroomID    uint     `json:"classroom_id"`
	Total          int      `json:"total"`
	NotStarted     int      `json:"not_started"`
	InProgress     int      `json:"in_progress"`
	Submitted      int      `json:"submitted"`
	Graded         int      `json:"graded"`
	AverageScore   *float64 `json:"average_score"`
	CompletionRate float64  `json:"completion_rate"`
}
