package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/service"
	"github.com/Soule73/evalium-sub002/internal/utils"
)

// GradesHandler exposes weighted subject grades and annual averages. Staff read any student;
// students read their own through RegisterSelf.
type GradesHandler struct {
	aggregator service.GradeAggregator
	logger     zerolog.Logger
}

// NewGradesHandler constructs the handler.
func NewGradesHandler(aggregator service.GradeAggregator, logger zerolog.Logger) *GradesHandler {
	return &GradesHandler{
		aggregator: aggregator,
		logger:     logger.With().Str("component", "grades_handler").Logger(),
	}
}

// Register attaches the staff grade endpoints, keyed by student.
func (h *GradesHandler) Register(router fiber.Router) {
	router.Get("/students/:studentId/class-subjects/:classSubjectId", h.subject(studentFromParam))
	router.Get("/students/:studentId/years/:yearId/average", h.annual(studentFromParam))
	router.Get("/students/:studentId/years/:yearId/report", h.report(studentFromParam))
}

// RegisterSelf attaches the same endpoints for the authenticated student.
func (h *GradesHandler) RegisterSelf(router fiber.Router) {
	router.Get("/class-subjects/:classSubjectId", h.subject(studentFromToken))
	router.Get("/years/:yearId/average", h.annual(studentFromToken))
	router.Get("/years/:yearId/report", h.report(studentFromToken))
}

type studentResolver func(c *fiber.Ctx) (uint, error)

func studentFromParam(c *fiber.Ctx) (uint, error) {
	return parseUintParam(c, "studentId")
}

func studentFromToken(c *fiber.Ctx) (uint, error) {
	id := userIDFromContext(c)
	if id == 0 {
		return 0, errInvalidIdentifier
	}
	return id, nil
}

func (h *GradesHandler) subject(resolve studentResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		studentID, err := resolve(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		classSubjectID, err := parseUintParam(c, "classSubjectId")
		if err != nil {
			return badRequest(c, err.Error())
		}

		grade, err := h.aggregator.SubjectGrade(requestContext(c), studentID, classSubjectID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "subject grade", grade)
	}
}

func (h *GradesHandler) annual(resolve studentResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		studentID, err := resolve(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		yearID, err := parseUintParam(c, "yearId")
		if err != nil {
			return badRequest(c, err.Error())
		}

		average, err := h.aggregator.AnnualAverage(requestContext(c), studentID, yearID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "annual average", average)
	}
}

func (h *GradesHandler) report(resolve studentResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		studentID, err := resolve(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		yearID, err := parseUintParam(c, "yearId")
		if err != nil {
			return badRequest(c, err.Error())
		}

		report, err := h.aggregator.StudentReport(requestContext(c), studentID, yearID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "student report", report)
	}
}
