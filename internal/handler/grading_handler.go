package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/service"
	"github.com/Soule73/evalium-sub002/internal/utils"
)

// GradingHandler exposes the teacher side of an assignment: review, grading and intervention.
type GradingHandler struct {
	assignments service.AssignmentService
	grading     service.GradingService
	monitor     service.SecurityMonitor
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(assignments service.AssignmentService, grading service.GradingService, monitor service.SecurityMonitor, validate *validator.Validate, logger zerolog.Logger) *GradingHandler {
	if validate == nil {
		validate = service.NewValidator()
	}
	return &GradingHandler{
		assignments: assignments,
		grading:     grading,
		monitor:     monitor,
		validator:   validate,
		logger:      logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the assignment review endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Post("/:id/grade", h.grade)
	router.Get("/:id/grade-history", h.history)
	router.Post("/:id/force-submit", h.forceSubmit)
	router.Post("/:id/expire", h.expire)
	if h.monitor != nil {
		router.Get("/:id/security-events", h.securityEvents)
	}
}

func (h *GradingHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	assignment, err := h.assignments.Get(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid payload")
	}

	assignment, err := h.grading.Grade(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment graded", assignment)
}

func (h *GradingHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	entries, err := h.grading.History(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "grade history", entries)
}

func (h *GradingHandler) forceSubmit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.ForceSubmitRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return badRequest(c, "invalid payload")
		}
	}
	payload.Reason = strings.TrimSpace(payload.Reason)
	if payload.Reason == "" {
		payload.Reason = service.ReasonTeacherIntervention
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	assignment, err := h.assignments.ForceSubmitAs(requestContext(c), actorFromContext(c), id, payload.Reason)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment force submitted", assignment)
}

func (h *GradingHandler) expire(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	expired, err := h.assignments.ExpireIfOverdue(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment expiry checked", fiber.Map{"id": id, "expired": expired})
}

func (h *GradingHandler) securityEvents(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	events, err := h.monitor.ListEvents(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "security events", events)
}
