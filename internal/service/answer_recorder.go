package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/observability"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

// FileStore saves and removes the binary content of file answers.
type FileStore interface {
	Save(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (path string, url string, err error)
	Delete(ctx context.Context, path string) error
}

var allowedAnswerMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"application/zip": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"application/vnd.oasis.opendocument.text":                                   {},
	"image/png":  {},
	"image/jpeg": {},
	"text/plain": {},
}

// AnswerRecorder writes a learner's answers, replacing any previous rows of the same question.
// Callers pass a repository bound to their transaction. The returned paths are files that are no
// longer referenced; remove them with DiscardFiles once the transaction has committed.
type AnswerRecorder interface {
	SaveAnswer(ctx context.Context, repo repository.AssignmentRepository, assignment models.AssessmentAssignment, question models.Question, value dto.AnswerValue) ([]string, error)
	SaveAnswers(ctx context.Context, repo repository.AssignmentRepository, assignment models.AssessmentAssignment, assessment models.Assessment, values map[uint]dto.AnswerValue) ([]string, error)
	StoreFile(ctx context.Context, assignment models.AssessmentAssignment, question models.Question, upload dto.FileAnswerUpload) (models.Answer, error)
	SaveFileAnswer(ctx context.Context, repo repository.AssignmentRepository, assignment models.AssessmentAssignment, question models.Question, answer models.Answer) ([]string, error)
	DiscardFiles(ctx context.Context, paths []string)
}

type answerRecorder struct {
	files     FileStore
	sanitizer *bluemonday.Policy
	maxSize   int64
	logger    zerolog.Logger
}

// NewAnswerRecorder constructs the recorder. files may be nil when file questions are not used.
func NewAnswerRecorder(files FileStore, maxFileBytes int64, logger zerolog.Logger) AnswerRecorder {
	if maxFileBytes <= 0 {
		maxFileBytes = 10 * 1024 * 1024
	}
	return &answerRecorder{
		files:     files,
		sanitizer: bluemonday.UGCPolicy(),
		maxSize:   maxFileBytes,
		logger:    logger.With().Str("component", "answer_recorder").Logger(),
	}
}

func (r *answerRecorder) SaveAnswers(ctx context.Context, repo repository.AssignmentRepository, assignment models.AssessmentAssignment, assessment models.Assessment, values map[uint]dto.AnswerValue) ([]string, error) {
	if assignment.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}

	for questionID := range values {
		if _, ok := assessment.QuestionByID(questionID); !ok {
			return nil, ErrQuestionNotFound.Withf("question %d does not belong to this assessment", questionID)
		}
	}

	var orphans []string
	for _, question := range assessment.Questions {
		value, ok := values[question.ID]
		if !ok {
			continue
		}
		removed, err := r.SaveAnswer(ctx, repo, assignment, question, value)
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, removed...)
	}

	return orphans, nil
}

func (r *answerRecorder) SaveAnswer(ctx context.Context, repo repository.AssignmentRepository, assignment models.AssessmentAssignment, question models.Question, value dto.AnswerValue) ([]string, error) {
	if assignment.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}
	if question.AssessmentID != 0 && question.AssessmentID != assignment.AssessmentID {
		return nil, ErrQuestionNotFound
	}

	rows, err := r.buildRows(question, value)
	if err != nil {
		return nil, err
	}

	previous, err := repo.ReplaceAnswers(ctx, assignment.ID, question.ID, rows)
	if err != nil {
		return nil, err
	}
	observability.AnswersRecorded().WithLabelValues(string(question.Type)).Inc()

	return filePaths(previous), nil
}

func (r *answerRecorder) buildRows(question models.Question, value dto.AnswerValue) ([]models.Answer, error) {
	selection := value.Selection()

	switch question.Type {
	case models.QuestionTypeMultiple:
		if value.Text != nil {
			return nil, ErrInvalidAnswer.Withf("question %d expects choices", question.ID)
		}
		rows := make([]models.Answer, 0, len(selection))
		for _, id := range selection {
			if !question.HasChoice(id) {
				return nil, ErrChoiceNotFound.Withf("choice %d does not belong to question %d", id, question.ID)
			}
			choiceID := id
			rows = append(rows, models.Answer{ChoiceID: &choiceID})
		}
		return rows, nil
	case models.QuestionTypeOneChoice, models.QuestionTypeBoolean:
		if value.Text != nil {
			return nil, ErrInvalidAnswer.Withf("question %d expects a choice", question.ID)
		}
		if len(selection) == 0 {
			return nil, nil
		}
		if len(selection) > 1 {
			return nil, ErrInvalidAnswer.Withf("question %d accepts a single choice", question.ID)
		}
		if !question.HasChoice(selection[0]) {
			return nil, ErrChoiceNotFound.Withf("choice %d does not belong to question %d", selection[0], question.ID)
		}
		choiceID := selection[0]
		return []models.Answer{{ChoiceID: &choiceID}}, nil
	case models.QuestionTypeText:
		if len(selection) > 0 {
			return nil, ErrInvalidAnswer.Withf("question %d expects text", question.ID)
		}
		if value.Text == nil {
			return nil, nil
		}
		text := strings.TrimSpace(r.sanitizer.Sanitize(*value.Text))
		if text == "" {
			return nil, nil
		}
		return []models.Answer{{AnswerText: &text}}, nil
	case models.QuestionTypeFile:
		if len(selection) > 0 || (value.Text != nil && strings.TrimSpace(*value.Text) != "") {
			return nil, ErrInvalidAnswer.Withf("question %d expects an uploaded file", question.ID)
		}
		return nil, nil
	default:
		return nil, ErrInvalidAnswer.Withf("unsupported question type %q", question.Type)
	}
}

// StoreFile validates the upload and writes it to the file store. It does not touch the database.
func (r *answerRecorder) StoreFile(ctx context.Context, assignment models.AssessmentAssignment, question models.Question, upload dto.FileAnswerUpload) (models.Answer, error) {
	if question.Type != models.QuestionTypeFile {
		return models.Answer{}, ErrInvalidAnswer.Withf("question %d does not accept files", question.ID)
	}
	if r.files == nil {
		return models.Answer{}, ErrFileStorageUnavailable
	}
	if len(upload.Content) == 0 {
		return models.Answer{}, ErrInvalidAnswer.Withf("file is empty")
	}

	size := int64(len(upload.Content))
	if size > r.maxSize || upload.Size > r.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return models.Answer{}, ErrFileTooLarge
	}

	mimeType := normalizeMime(mimetype.Detect(upload.Content).String())
	if _, ok := allowedAnswerMimeTypes[mimeType]; !ok {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return models.Answer{}, ErrFileTypeNotAllowed.Withf("file type %s not allowed", mimeType)
	}

	name := sanitizeFileName(upload.FileName)
	key := fmt.Sprintf("answers/%d/%d/%s%s", assignment.ID, question.ID, uuid.NewString(), strings.ToLower(filepath.Ext(name)))
	path, url, err := r.files.Save(ctx, key, bytes.NewReader(upload.Content), size, mimeType)
	if err != nil {
		r.logger.Error().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to store answer file")
		return models.Answer{}, err
	}

	return models.Answer{
		AssignmentID: assignment.ID,
		QuestionID:   question.ID,
		FileName:     name,
		FilePath:     path,
		FileURL:      url,
		FileSize:     size,
		FileMimeType: mimeType,
	}, nil
}

func (r *answerRecorder) SaveFileAnswer(ctx context.Context, repo repository.AssignmentRepository, assignment models.AssessmentAssignment, question models.Question, answer models.Answer) ([]string, error) {
	if assignment.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}
	if question.Type != models.QuestionTypeFile {
		return nil, ErrInvalidAnswer.Withf("question %d does not accept files", question.ID)
	}

	previous, err := repo.ReplaceAnswers(ctx, assignment.ID, question.ID, []models.Answer{answer})
	if err != nil {
		return nil, err
	}
	observability.AnswersRecorded().WithLabelValues(string(question.Type)).Inc()
	return filePaths(previous), nil
}

func (r *answerRecorder) DiscardFiles(ctx context.Context, paths []string) {
	if r.files == nil {
		return
	}
	for _, path := range paths {
		if err := r.files.Delete(ctx, path); err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("failed to delete stale answer file")
		}
	}
}

func filePaths(answers []models.Answer) []string {
	var paths []string
	for _, answer := range answers {
		if answer.HasFile() {
			paths = append(paths, answer.FilePath)
		}
	}
	return paths
}

func normalizeMime(value string) string {
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-.")
	if base == "" {
		return "answer"
	}
	return base
}
