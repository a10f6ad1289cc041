package dto

// SubjectGradeResponse carries the weighted grade of a student in one class subject.
type SubjectGradeResponse struct {
	StudentID      uint     `json:"student_id"`
	ClassSubjectID uint     `json:"class_subject_id"`
	Grade          *float64 `json:"grade"`
}

// AnnualAverageResponse carries the weighted yearly average of a student.
type AnnualAverageResponse struct {
	StudentID      uint     `json:"student_id"`
	AcademicYearID uint     `json:"academic_year_id"`
	Average        *float64 `json:"average"`
}

// SubjectReportLine is one row of a student report.
type SubjectReportLine struct {
	ClassSubjectID uint     `json:"class_subject_id"`
	SubjectCode    string   `json:"subject_code"`
	SubjectName    string   `json:"subject_name"`
	Coefficient    float64  `json:"coefficient"`
	Grade          *float64 `json:"grade"`
}

// StudentReport gives the per-subject breakdown behind an annual average.
type StudentReport struct {
	StudentID      uint                `json:"student_id"`
	AcademicYearID uint                `json:"academic_year_id"`
	Subjects       []SubjectReportLine `json:"subjects"`
	Average        *float64            `json:"average"`
}
