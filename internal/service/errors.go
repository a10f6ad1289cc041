package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// ErrorKind classifies domain errors so transports can map them without knowing every sentinel.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindStateConflict ErrorKind = "state_conflict"
	KindAccessDenied  ErrorKind = "access_denied"
	KindNotFound      ErrorKind = "not_found"
)

// DomainError is a typed, inspectable failure. Two DomainErrors match under errors.Is when their codes match.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on the error code so detailed variants still match their sentinel.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Withf returns a copy of the error with a more specific message.
func (e *DomainError) Withf(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func newDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

var (
	ErrAssessmentNotFound = newDomainError(KindNotFound, "assessment_not_found", "assessment not found")
	ErrAssignmentNotFound = newDomainError(KindNotFound, "assignment_not_found", "assignment not found")
	ErrQuestionNotFound   = newDomainError(KindNotFound, "question_not_found", "question does not belong to this assessment")
	ErrChoiceNotFound     = newDomainError(KindNotFound, "choice_not_found", "choice does not belong to this question")
	ErrGroupNotFound      = newDomainError(KindNotFound, "group_not_found", "group not found")

	ErrAssessmentNotAccessible = newDomainError(KindAccessDenied, "assessment_not_accessible", "assessment is not accessible at this time")
	ErrNotEnrolled             = newDomainError(KindAccessDenied, "not_enrolled", "student is not assigned to this assessment")
	ErrTimeExpired             = newDomainError(KindAccessDenied, "time_expired", "time allowed for this assessment has expired")
	ErrForbidden               = newDomainError(KindAccessDenied, "forbidden", "action not permitted")

	// ErrAlreadySubmitted is also what the losing side of two concurrent submits receives.
	ErrAlreadySubmitted = newDomainError(KindStateConflict, "already_submitted", "assignment already submitted")
	ErrNotStarted       = newDomainError(KindStateConflict, "not_started", "assignment has not been started")
	ErrNotSubmittedYet  = newDomainError(KindStateConflict, "not_submitted_yet", "assignment has not been submitted yet")
	ErrAssessmentLocked = newDomainError(KindStateConflict, "assessment_locked", "assessment already has submissions")

	ErrInvalidAssessment       = newDomainError(KindValidation, "invalid_assessment", "invalid assessment")
	ErrInvalidAnswer           = newDomainError(KindValidation, "invalid_answer", "invalid answer")
	ErrInvalidScore            = newDomainError(KindValidation, "invalid_score", "invalid score")
	ErrUnknownViolation        = newDomainError(KindValidation, "unknown_violation", "unknown violation type")
	ErrInvalidViolationDetails = newDomainError(KindValidation, "invalid_violation_details", "invalid violation details")
	ErrFileTooLarge            = newDomainError(KindValidation, "file_too_large", "file exceeds maximum allowed size")
	ErrFileTypeNotAllowed      = newDomainError(KindValidation, "file_type_not_allowed", "file type not allowed")

	// ErrFileStorageUnavailable is returned when a file answer arrives but no file store is configured.
	ErrFileStorageUnavailable = newDomainError(KindStateConflict, "file_storage_unavailable", "file storage is not configured")
)

// KindOf reports the domain kind of err, or an empty kind for infrastructure failures.
func KindOf(err error) ErrorKind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return KindValidation
	}
	return ""
}

// CodeOf reports the domain code of err, if any.
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	if KindOf(err) == KindValidation {
		return "validation_failed"
	}
	return ""
}

func mapNotFound(err error, sentinel *DomainError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
