package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRegisterRecoversPanicsWithCorrelation(t *testing.T) {
	app := fiber.New()
	Register(app, Config{})
	app.Get("/api/v1/boom", func(*fiber.Ctx) error {
		panic("scoring table corrupted")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil)
	req.Header.Set(HeaderCorrelationID, "corr-7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "corr-7", resp.Header.Get(HeaderCorrelationID))
}

func TestRegisterSetsSecurityHeaders(t *testing.T) {
	app := fiber.New()
	Register(app, Config{AllowOrigins: "https://school.example"})
	app.Get("/api/v1/ping", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Origin", "https://school.example")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "https://school.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
