package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/observability"
	"github.com/Soule73/evalium-sub002/internal/service"
)

const (
	monitorAssessmentLocal = "monitor_assessment_id"
	monitorWriteTimeout    = 5 * time.Second
)

// MonitorMessage is one frame pushed to a live monitor socket.
type MonitorMessage struct {
	Type  string               `json:"type"`
	Event *dto.AssignmentEvent `json:"event,omitempty"`
	Stats *dto.AssessmentStats `json:"stats,omitempty"`
}

// MonitorHandler streams assignment events and refreshed statistics for one assessment.
type MonitorHandler struct {
	assessments service.AssessmentService
	stats       service.StatsService
	bus         service.AssignmentEventBus
	logger      zerolog.Logger
}

// NewMonitorHandler constructs the live monitor handler.
func NewMonitorHandler(assessments service.AssessmentService, stats service.StatsService, bus service.AssignmentEventBus, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		assessments: assessments,
		stats:       stats,
		bus:         bus,
		logger:      logger.With().Str("component", "monitor_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *MonitorHandler) Register(router fiber.Router) {
	router.Get("/assessments/:id", h.authorize, websocket.New(h.handleConnection))
}

// authorize runs before the upgrade so access failures still get a JSON error.
func (h *MonitorHandler) authorize(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx := requestContext(c)
	if _, err := h.assessments.Get(ctx, actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}

	c.Locals(monitorAssessmentLocal, id)
	c.Locals("request_ctx", ctx)
	return c.Next()
}

func (h *MonitorHandler) handleConnection(conn *websocket.Conn) {
	assessmentID, _ := conn.Locals(monitorAssessmentLocal).(uint)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	events, unsubscribe := h.bus.Subscribe(assessmentID)
	defer unsubscribe()

	gauge := observability.MonitorConnections()
	gauge.Inc()
	defer gauge.Dec()

	logger := h.logger.With().Uint("assessment_id", assessmentID).Logger()
	logger.Info().Msg("monitor websocket connected")
	defer logger.Info().Msg("monitor websocket disconnected")

	// Reads only detect the client going away; monitors never send data.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.push(conn, MonitorMessage{Type: "snapshot", Stats: h.snapshot(ctx, logger, assessmentID)}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			message := MonitorMessage{Type: "event", Event: &event, Stats: h.snapshot(ctx, logger, assessmentID)}
			if err := h.push(conn, message); err != nil {
				logger.Debug().Err(err).Msg("monitor write failed")
				return
			}
		}
	}
}

func (h *MonitorHandler) snapshot(ctx context.Context, logger zerolog.Logger, assessmentID uint) *dto.AssessmentStats {
	if h.stats == nil {
		return nil
	}
	stats, err := h.stats.AssessmentStats(ctx, assessmentID)
	if err != nil {
		logger.Warn().Err(err).Msg("monitor stats refresh failed")
		return nil
	}
	return &stats
}

func (h *MonitorHandler) push(conn *websocket.Conn, message MonitorMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(monitorWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(message)
}
