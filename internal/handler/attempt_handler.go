package handler

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/service"
	"github.com/Soule73/evalium-sub002/internal/utils"
)

// AttemptHandler exposes the student side of an assessment attempt.
type AttemptHandler struct {
	assignments  service.AssignmentService
	assessments  service.AssessmentService
	monitor      service.SecurityMonitor
	validator    *validator.Validate
	maxFileBytes int64
	logger       zerolog.Logger
}

// NewAttemptHandler constructs the handler. maxFileBytes bounds how much of an uploaded file is read.
func NewAttemptHandler(assignments service.AssignmentService, assessments service.AssessmentService, monitor service.SecurityMonitor, validate *validator.Validate, maxFileBytes int64, logger zerolog.Logger) *AttemptHandler {
	if validate == nil {
		validate = service.NewValidator()
	}
	return &AttemptHandler{
		assignments:  assignments,
		assessments:  assessments,
		monitor:      monitor,
		validator:    validate,
		maxFileBytes: maxFileBytes,
		logger:       logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches the student attempt endpoints to the router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Get("/assessments/:assessmentId", h.assessment)
	router.Get("/assessments/:assessmentId/assignment", h.peek)
	router.Post("/assessments/:assessmentId/assignment", h.open)

	router.Get("/assignments/:id", h.get)
	router.Post("/assignments/:id/start", h.start)
	router.Put("/assignments/:id/answers", h.saveAnswers)
	router.Post("/assignments/:id/files", h.uploadFile)
	router.Post("/assignments/:id/submit", h.submit)
	router.Get("/assignments/:id/timing", h.timing)
	if h.monitor != nil {
		router.Post("/assignments/:id/violations", h.violation)
	}
}

func (h *AttemptHandler) assessment(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "assessmentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.assessments.Get(requestContext(c), actorFromContext(c), assessmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assessment retrieved", response)
}

func (h *AttemptHandler) peek(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "assessmentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.assignments.Peek(requestContext(c), userIDFromContext(c), assessmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment view", service.NewAssignmentViewResponse(view))
}

func (h *AttemptHandler) open(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "assessmentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.assignments.GetOrCreate(requestContext(c), userIDFromContext(c), assessmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment ready", response)
}

func (h *AttemptHandler) get(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.assignments.GetForStudent(requestContext(c), userIDFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment retrieved", response)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	response, err := h.assignments.Start(requestContext(c), userIDFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment started", response)
}

func (h *AttemptHandler) saveAnswers(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.RecordAnswersRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	response, err := h.assignments.RecordAnswers(requestContext(c), userIDFromContext(c), assignmentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "answers saved", response)
}

func (h *AttemptHandler) uploadFile(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	questionID, err := strconv.ParseUint(c.FormValue("question_id"), 10, 64)
	if err != nil || questionID == 0 {
		return badRequest(c, "question_id required")
	}
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file required")
	}

	file, err := header.Open()
	if err != nil {
		return respondError(c, h.logger, fmt.Errorf("open upload: %w", err))
	}
	defer file.Close()

	reader := io.Reader(file)
	if h.maxFileBytes > 0 {
		reader = io.LimitReader(file, h.maxFileBytes+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return respondError(c, h.logger, fmt.Errorf("read upload: %w", err))
	}

	upload := dto.FileAnswerUpload{
		QuestionID: uint(questionID),
		FileName:   header.Filename,
		Size:       header.Size,
		Content:    content,
	}
	answer, err := h.assignments.RecordFileAnswer(requestContext(c), userIDFromContext(c), assignmentID, upload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file answer stored", answer)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.SubmitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return badRequest(c, "invalid payload")
		}
	}

	response, err := h.assignments.Submit(requestContext(c), userIDFromContext(c), assignmentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment submitted", response)
}

func (h *AttemptHandler) timing(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	timing, err := h.assignments.Timing(requestContext(c), userIDFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment timing", timing)
}

func (h *AttemptHandler) violation(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.ViolationRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.monitor.HandleViolation(requestContext(c), userIDFromContext(c), assignmentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "violation recorded", result)
}
