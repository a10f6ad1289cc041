package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/Soule73/evalium-sub002/internal/dto"
	"github.com/Soule73/evalium-sub002/internal/models"
	"github.com/Soule73/evalium-sub002/internal/observability"
	"github.com/Soule73/evalium-sub002/internal/repository"
)

// Violation types reported by the exam client.
const (
	ViolationTabSwitch          = "tab_switch"
	ViolationCopyPaste          = "copy_paste"
	ViolationFullscreenExit     = "fullscreen_exit"
	ViolationSuspiciousActivity = "suspicious_activity"
	ViolationBrowserChange      = "browser_change"
	ViolationNetworkDisconnect  = "network_disconnect"
)

// violationTerminal maps every known violation to whether it ends the attempt.
var violationTerminal = map[string]bool{
	ViolationTabSwitch:          true,
	ViolationCopyPaste:          false,
	ViolationFullscreenExit:     true,
	ViolationSuspiciousActivity: false,
	ViolationBrowserChange:      true,
	ViolationNetworkDisconnect:  false,
}

// IsTerminalViolation reports whether the violation type is known and ends the attempt.
func IsTerminalViolation(violationType string) (terminal bool, known bool) {
	terminal, known = violationTerminal[violationType]
	return terminal, known
}

//go:embed schema/violation_details.schema.json
var violationDetailsSchema []byte

const violationDetailsSchemaURL = "mem://evalium/violation_details.schema.json"

// SecurityMonitor records exam-security violations and ends attempts on terminal ones.
type SecurityMonitor interface {
	HandleViolation(ctx context.Context, studentID, assignmentID uint, req dto.ViolationRequest) (dto.ViolationResult, error)
	ListEvents(ctx context.Context, assignmentID uint) ([]dto.SecurityEventResponse, error)
}

type securityMonitor struct {
	events      repository.SecurityEventRepository
	assignments repository.AssignmentRepository
	lifecycle   AssignmentService
	bus         AssignmentEventBus
	schema      *jsonschema.Schema
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSecurityMonitor constructs the monitor. It fails when the embedded details schema does not compile.
func NewSecurityMonitor(events repository.SecurityEventRepository, assignments repository.AssignmentRepository, lifecycle AssignmentService, bus AssignmentEventBus, logger zerolog.Logger) (SecurityMonitor, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(violationDetailsSchemaURL, bytes.NewReader(violationDetailsSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(violationDetailsSchemaURL)
	if err != nil {
		return nil, err
	}

	return &securityMonitor{
		events:      events,
		assignments: assignments,
		lifecycle:   lifecycle,
		bus:         bus,
		schema:      schema,
		logger:      logger.With().Str("component", "security_monitor").Logger(),
		now:         time.Now,
	}, nil
}

func (m *securityMonitor) HandleViolation(ctx context.Context, studentID, assignmentID uint, req dto.ViolationRequest) (dto.ViolationResult, error) {
	terminal, known := IsTerminalViolation(req.Type)
	if !known {
		return dto.ViolationResult{}, ErrUnknownViolation.Withf("unknown violation type %q", req.Type)
	}
	details, err := m.validateDetails(req.Details)
	if err != nil {
		return dto.ViolationResult{}, err
	}

	assignment, err := m.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return dto.ViolationResult{}, mapNotFound(err, ErrAssignmentNotFound)
	}
	if assignment.StudentID != studentID {
		return dto.ViolationResult{}, ErrAssignmentNotFound
	}

	occurredAt := m.now()
	event := models.SecurityEvent{
		AssignmentID: assignment.ID,
		StudentID:    assignment.StudentID,
		Type:         req.Type,
		Terminal:     terminal,
		Details:      details,
		OccurredAt:   occurredAt,
	}
	if err := m.events.Create(ctx, &event); err != nil {
		return dto.ViolationResult{}, err
	}

	m.logger.Warn().
		Uint("assignment_id", assignment.ID).
		Uint("assessment_id", assignment.AssessmentID).
		Uint("student_id", assignment.StudentID).
		Str("type", req.Type).
		Bool("terminal", terminal).
		Msg("security violation reported")
	observability.Violations().WithLabelValues(req.Type, strconv.FormatBool(terminal)).Inc()
	publishAssignmentEvent(ctx, m.bus, dto.EventSecurityViolation, assignment, req.Type, occurredAt)

	result := dto.ViolationResult{Type: req.Type, Terminal: terminal}
	if !terminal {
		return result, nil
	}

	if assignment.SubmittedAt != nil {
		current := dto.NewAssignmentResponse(assignment)
		result.Terminated = true
		result.Assignment = &current
		return result, nil
	}

	// An attempt that never started has nothing to end; the event stays on record.
	if assignment.StartedAt == nil {
		return result, nil
	}

	response, err := m.lifecycle.ForceSubmit(ctx, assignment.ID, req.Type)
	switch {
	case errors.Is(err, ErrAlreadySubmitted):
		response, err = m.lifecycle.Get(ctx, assignment.ID)
	case errors.Is(err, ErrNotStarted):
		return result, nil
	}
	if err != nil {
		return dto.ViolationResult{}, err
	}
	result.Terminated = true
	result.Assignment = &response
	return result, nil
}

func (m *securityMonitor) ListEvents(ctx context.Context, assignmentID uint) ([]dto.SecurityEventResponse, error) {
	if _, err := m.assignments.GetByID(ctx, assignmentID); err != nil {
		return nil, mapNotFound(err, ErrAssignmentNotFound)
	}
	events, err := m.events.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.SecurityEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, dto.NewSecurityEventResponse(event))
	}
	return responses, nil
}

// validateDetails normalises the details through JSON and checks them against the embedded schema.
func (m *securityMonitor) validateDetails(details map[string]interface{}) (datatypes.JSONMap, error) {
	if details == nil {
		details = map[string]interface{}{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, ErrInvalidViolationDetails.Withf("details are not valid JSON: %v", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, ErrInvalidViolationDetails.Withf("details are not valid JSON: %v", err)
	}
	if err := m.schema.Validate(decoded); err != nil {
		return nil, ErrInvalidViolationDetails.Withf("%v", err)
	}
	return datatypes.JSONMap(details), nil
}
