package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func upgradeRequest(path, bearer string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func TestMonitorRequiresUpgrade(t *testing.T) {
	env := newAPIEnv(t, 1)
	quiz := env.quiz(t)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/teacher/monitor/assessments/%d", quiz.ID), nil)
	req.Header.Set("Authorization", "Bearer "+teacherToken(t))
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestMonitorChecksAssessmentBeforeUpgrade(t *testing.T) {
	env := newAPIEnv(t, 1)

	status, payload := env.send(t, upgradeRequest("/api/v1/teacher/monitor/assessments/404", teacherToken(t)))
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, "assessment_not_found", payload.Code)

	status, payload = env.send(t, upgradeRequest("/api/v1/teacher/monitor/assessments/1", env.studentToken(t, 0)))
	require.Equal(t, fiber.StatusForbidden, status)
	require.Equal(t, "forbidden", payload.Code)
}
