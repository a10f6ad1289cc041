package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/service"
	"github.com/Soule73/evalium-sub002/internal/utils"
)

// StatsHandler exposes assessment and student progress statistics to staff.
type StatsHandler struct {
	stats      service.StatsService
	authorizer service.Authorizer
	logger     zerolog.Logger
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(stats service.StatsService, authorizer service.Authorizer, logger zerolog.Logger) *StatsHandler {
	if authorizer == nil {
		authorizer = service.NewRoleAuthorizer()
	}
	return &StatsHandler{
		stats:      stats,
		authorizer: authorizer,
		logger:     logger.With().Str("component", "stats_handler").Logger(),
	}
}

// Register attaches statistics endpoints to the router group.
func (h *StatsHandler) Register(router fiber.Router) {
	router.Use(h.requireStatsView)
	router.Get("/assessments/:id", h.assessment)
	router.Get("/assessments/:id/groups", h.withGroups)
	router.Get("/assessments/:id/groups/:groupId", h.group)
	router.Get("/students/:studentId/classrooms/:classroomId", h.student)
}

func (h *StatsHandler) requireStatsView(c *fiber.Ctx) error {
	if !h.authorizer.Can(actorFromContext(c), service.ActionStatsView) {
		return respondError(c, h.logger, service.ErrForbidden)
	}
	return c.Next()
}

func (h *StatsHandler) assessment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.stats.AssessmentStats(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assessment stats", stats)
}

func (h *StatsHandler) withGroups(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.stats.ExamStatsWithGroups(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assessment stats by group", stats)
}

func (h *StatsHandler) group(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	groupID, err := parseUintParam(c, "groupId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.stats.GroupStats(requestContext(c), id, groupID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "group stats", stats)
}

func (h *StatsHandler) student(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	classroomID, err := parseUintParam(c, "classroomId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.stats.StudentStats(requestContext(c), studentID, classroomID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "student stats", stats)
}
