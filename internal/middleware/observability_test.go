package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObservabilityLogsRouteTemplate(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(withIdentity(uint(5), "student"))
	app.Use(Observability(logger))
	app.Get("/api/v1/student/assignments/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/student/assignments/42", nil)
	req.Header.Set(HeaderCorrelationID, "corr-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "/api/v1/student/assignments/:id", line["route"])
	require.Equal(t, "corr-1", line["correlation_id"])
	require.Equal(t, float64(5), line["user_id"])
}

func TestObservabilitySkipsNonAPIPaths(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(Observability(zerolog.New(&buf)))
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Zero(t, buf.Len())
}

func TestAccessLogLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, accessLogLevel(fiber.StatusOK))
	require.Equal(t, zerolog.WarnLevel, accessLogLevel(fiber.StatusConflict))
	require.Equal(t, zerolog.ErrorLevel, accessLogLevel(fiber.StatusBadGateway))
}
